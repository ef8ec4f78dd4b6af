// Package config is the archive's layered configuration loader (spec.md
// §6): an INI file located on the MUNINN_CONFIG_PATH search path,
// overridden by MUNINN_-prefixed environment variables, overridden in
// turn by command-line flags. Grounded on the teacher's cli/root.go
// (viper.BindPFlag + viper.AutomaticEnv + flag>env>file>default
// precedence) and on muninn/config.py's typed-field coercion and
// "unrecognized configuration option" strictness, and muninn/__init__.py's
// MUNINN_CONFIG_PATH colon-separated archive-file search.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"eve.evalgo.org/muninn/muninnerr"
)

// EnvConfigPath names the environment variable holding a colon-separated
// list of directories (or direct .cfg file paths) searched for an
// archive's configuration file, matching muninn/__init__.py's
// config_path().
const EnvConfigPath = "MUNINN_CONFIG_PATH"

// knownKeys are the [archive] section keys spec.md §6 recognizes. Any
// other key present in a loaded file is a UserError, matching the
// original's _ConfigParser.visit_Mapping "unrecognized configuration
// option" behavior.
var knownKeys = map[string]bool{
	"database":                  true,
	"storage":                   true,
	"namespace_extensions":      true,
	"product_type_extensions":   true,
	"remote_backend_extensions": true,
	"hook_extensions":           true,
	"cascade_grace_period":      true,
	"max_cascade_cycles":        true,
	"auth_file":                 true,
	"tempdir":                   true,
	"table_prefix":              true,
}

// Config is the parsed, typed [archive] section of a muninn archive
// configuration file.
type Config struct {
	Database                string
	Storage                 string // "" or "none" means storage=None (catalogue-only archive)
	TablePrefix             string
	NamespaceExtensions     []string
	ProductTypeExtensions   []string
	RemoteBackendExtensions []string
	HookExtensions          []string
	CascadeGracePeriod      time.Duration
	MaxCascadeCycles        int
	AuthFile                string
	TempDir                 string
}

// SearchPath splits EnvConfigPath into its non-empty entries.
func SearchPath() []string {
	var paths []string
	for _, p := range strings.Split(os.Getenv(EnvConfigPath), ":") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Locate finds archiveID's configuration file: archiveID itself if it
// already names a ".cfg" file, otherwise "<archiveID>.cfg" searched for
// across SearchPath, matching _locate_archive_config_file.
func Locate(archiveID string) (string, error) {
	if strings.HasSuffix(archiveID, ".cfg") {
		return archiveID, nil
	}
	fileName := archiveID + ".cfg"
	if filepath.Base(fileName) != fileName {
		return "", muninnerr.NewUserError("invalid archive identifier: %q", archiveID)
	}
	for _, p := range SearchPath() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			if filepath.Base(p) == fileName {
				return p, nil
			}
			continue
		}
		candidate := filepath.Join(p, fileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", muninnerr.NewUserError("configuration file %q not found on search path %q", fileName, os.Getenv(EnvConfigPath))
}

// ListArchives returns the archive ids (basenames without ".cfg") found
// across SearchPath, matching muninn/__init__.py's list_archives.
func ListArchives() ([]string, error) {
	var names []string
	for _, p := range SearchPath() {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if strings.HasSuffix(p, ".cfg") {
				names = append(names, strings.TrimSuffix(filepath.Base(p), ".cfg"))
			}
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), ".cfg") {
				names = append(names, strings.TrimSuffix(e.Name(), ".cfg"))
			}
		}
	}
	return names, nil
}

// Load reads path (an INI file; empty means "./muninn.conf") through
// viper, overridden by MUNINN_-prefixed environment variables and, if
// flags is non-nil, by any of its flags bound to a known key. A missing
// file is not an error -- env vars, flags, and defaults still apply,
// matching open(id=None) using an empty configuration.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = "./muninn.conf"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	v.SetEnvPrefix("MUNINN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("archive.max_cascade_cycles", 25)
	v.SetDefault("archive.cascade_grace_period", "0")
	v.SetDefault("archive.tempdir", os.TempDir())

	if flags != nil {
		for key := range knownKeys {
			if flag := flags.Lookup(strings.ReplaceAll(key, "_", "-")); flag != nil {
				if err := v.BindPFlag("archive."+key, flag); err != nil {
					return nil, err
				}
			}
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, muninnerr.NewUserError("reading config file %q: %s", path, err)
		}
	}

	if archive := v.Sub("archive"); archive != nil {
		for _, key := range archive.AllKeys() {
			if !knownKeys[key] {
				return nil, muninnerr.NewUserError("unrecognized configuration option: archive:%s", key)
			}
		}
	}

	graceMinutes, err := parseIntSetting(v.GetString("archive.cascade_grace_period"), "cascade_grace_period")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database:                v.GetString("archive.database"),
		Storage:                 v.GetString("archive.storage"),
		TablePrefix:             v.GetString("archive.table_prefix"),
		NamespaceExtensions:     splitWhitespace(v.GetString("archive.namespace_extensions")),
		ProductTypeExtensions:   splitWhitespace(v.GetString("archive.product_type_extensions")),
		RemoteBackendExtensions: splitWhitespace(v.GetString("archive.remote_backend_extensions")),
		HookExtensions:          splitWhitespace(v.GetString("archive.hook_extensions")),
		CascadeGracePeriod:      time.Duration(graceMinutes) * time.Minute,
		MaxCascadeCycles:        v.GetInt("archive.max_cascade_cycles"),
		AuthFile:                v.GetString("archive.auth_file"),
		TempDir:                 v.GetString("archive.tempdir"),
	}
	return cfg, nil
}

// splitWhitespace parses a whitespace-separated sequence value, matching
// the original's visit_Sequence (value.split()).
func splitWhitespace(s string) []string {
	return strings.Fields(s)
}

func parseIntSetting(value, name string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, muninnerr.NewUserError("invalid value %q for %q: must be an integer", value, name)
	}
	return n, nil
}
