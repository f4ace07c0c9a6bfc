package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wemcdonald/sqlseed/pkg/config"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sqlseed",
		Short: "Load demo SQL scripts into a database",
		Long: `sqlseed splits SQL scripts into statements, runs schema statements before
data statements and breaks oversized INSERT statements into batches. Zone DDL
(CREATE ZONE, ... ZONE name) is emulated on top of SQLite.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(newLoadCmd(), newSplitCmd(), newBatchCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger
func setup() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}

	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: cfg.Verbose,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	return cfg, nil
}
