// Command muninn is the archive's operator CLI, a cobra.Command tree
// mirroring spec.md §6's command surface, grounded on the teacher's
// cli/root.go (persistent flags bound through viper, cobra.OnInitialize
// config wiring) generalized from a single long-running server process
// to a batch of short-lived, per-invocation archive operations, and on
// the original implementation's muninn/tools/*.py scripts for flag
// names and per-command semantics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"eve.evalgo.org/muninn/muninnlog"
)

// version is set at build time via -ldflags; it is reported by --version
// in place of the teacher's module-wide version package, which this
// binary does not carry.
var version = "dev"

var (
	verboseFlag   bool
	parallelFlag  bool
	processesFlag int
)

var logger = muninnlog.New(muninnlog.DefaultConfig())

var rootCmd = &cobra.Command{
	Use:     "muninn",
	Short:   "Operate a muninn data product archive",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			logger = muninnlog.New(muninnlog.Config{Level: muninnlog.LevelDebug, Format: "text"})
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "display debug information")
	rootCmd.PersistentFlags().BoolVar(&parallelFlag, "parallel", false, "use multiple goroutines to perform the operation")
	rootCmd.PersistentFlags().IntVar(&processesFlag, "processes", 0, "number of concurrent workers for --parallel (default: number of CPUs)")

	rootCmd.AddCommand(
		prepareCmd,
		destroyCmd,
		ingestCmd,
		attachCmd,
		pullCmd,
		stripCmd,
		removeCmd,
		retrieveCmd,
		searchCmd,
		summaryCmd,
		tagCmd,
		untagCmd,
		listTagsCmd,
		infoCmd,
		hashCmd,
		updateCmd,
		exportCmd,
	)
}

// shutdownContext derives a context cancelled on SIGINT/SIGTERM, adapted
// from the teacher's echo-server graceful shutdown pattern to cancel an
// in-flight archive operation's context instead of draining an HTTP
// server.
func shutdownContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
