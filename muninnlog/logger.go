// Package muninnlog builds the structured logger the cmd/muninn CLI logs
// through, adapted from the teacher's
// common/logger.go logger-factory pattern (NewLogger(config)) trimmed to
// the fields a single-process CLI actually needs: level and format.
package muninnlog

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Level is a logging verbosity, mirroring the teacher's LogLevel enum.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config parameterizes New.
type Config struct {
	Level  Level
	Format string // "json" or "text"
}

// DefaultConfig returns text-formatted, info-level logging, the CLI's
// default before --verbose is applied.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "text"}
}

// New builds a *logrus.Logger from cfg.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}

	return logger
}
