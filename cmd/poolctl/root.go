package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joshuapare/poolkit/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose  bool
	quiet    bool
	jsonOut  bool
	logDir   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "poolctl",
	Short: "Drive and inspect poolkit memory pools",
	Long: `poolctl exercises poolkit memory pools from the command line. It replays
scripted allocation workloads, prints the resulting segment layout, and runs
concurrent churn benchmarks across many pools.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().
		StringVar(&logDir, "log-dir", "", "Write allocator logs to a dated file in this directory")
	rootCmd.PersistentFlags().
		StringVar(&logLevel, "log-level", "", "Allocator log level (debug, info, warn, error)")
}

// initLogging enables the allocator logger when a log flag is given.
// Without flags the POOLKIT_LOG_ALLOC default stays in effect.
func initLogging(cmd *cobra.Command, args []string) error {
	if logDir == "" && logLevel == "" {
		return nil
	}
	opts := logger.Options{Enabled: true, LogDir: logDir}
	if logLevel != "" {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		opts.Level = level
	}
	return logger.Init(opts)
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
