package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wemcdonald/sqlseed/pkg/config"
	"github.com/wemcdonald/sqlseed/pkg/loader"
	"github.com/wemcdonald/sqlseed/pkg/sample"
	"github.com/wemcdonald/sqlseed/pkg/seeddb"
	"github.com/wemcdonald/sqlseed/pkg/workflow"
)

type loadOptions struct {
	database  string
	file      string
	batchSize int
	workers   int
	repeat    int
	dryRun    bool
	grouped   bool
	inspect   bool
	tx        bool
}

func newLoadCmd() *cobra.Command {
	opts := &loadOptions{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a script into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runLoad(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.database, "db", "d", "", "Path to the SQLite database")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Script to load (default: bundled seed script)")
	cmd.Flags().IntVarP(&opts.batchSize, "batch-size", "b", 0, "Maximum tuples per INSERT")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Workers for grouped loads")
	cmd.Flags().IntVar(&opts.repeat, "repeat", 1, "Run the load this many times behind a circuit breaker")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Plan and log statements without executing them")
	cmd.Flags().BoolVar(&opts.grouped, "grouped", false, "Load data by reference, core and business table groups")
	cmd.Flags().BoolVar(&opts.inspect, "inspect", false, "Cross-check statements with the SQL grammar")
	cmd.Flags().BoolVar(&opts.tx, "tx", false, "Run the whole load in one transaction")
	return cmd
}

// apply lets explicitly set flags override the configuration
func (o *loadOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database = o.database
	}
	if flags.Changed("file") {
		cfg.Script = o.file
	}
	if flags.Changed("batch-size") {
		cfg.MaxBatchSize = o.batchSize
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
}

func runLoad(ctx context.Context, cfg *config.Config, opts *loadOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			slog.Warn("Received shutdown signal, cancelling load...")
			cancel()
		case <-ctx.Done():
		}
	}()

	raw := sample.Script()
	source := "embedded:" + sample.SeedFile
	if cfg.Script != "" {
		data, err := os.ReadFile(cfg.Script)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: %s", loader.ErrScriptNotFound, cfg.Script)
			}
			return fmt.Errorf("failed to read script: %w", err)
		}
		raw = string(data)
		source = cfg.Script
	}

	groups := cfg.Groups
	if cfg.Script == "" && len(groups.Reference)+len(groups.Core)+len(groups.Business) == 0 {
		groups = sample.Groups()
	}

	slog.Info("Starting sqlseed load",
		"database", cfg.Database,
		"script", source,
		"max_batch_size", cfg.MaxBatchSize,
		"workers", cfg.Workers,
		"grouped", opts.grouped,
		"transaction", opts.tx,
		"dry_run", cfg.DryRun,
		"inspect", opts.inspect,
	)

	db, err := seeddb.Open(seeddb.Config{DBPath: cfg.Database})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	l := loader.New(loader.Config{
		MaxBatchSize: cfg.MaxBatchSize,
		DryRun:       cfg.DryRun,
		Inspect:      opts.inspect,
		Logger:       slog.Default(),
	})

	once := func(ctx context.Context) error {
		var stats *loader.Stats
		var err error
		switch {
		case opts.tx:
			stats, err = loadInTx(ctx, db, l, raw)
		case opts.grouped:
			stats, err = l.LoadGrouped(ctx, db, raw, groups, cfg.Workers)
		default:
			stats, err = l.Load(ctx, db, raw)
		}
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			return fmt.Errorf("load completed with %d failed statements", stats.Failed)
		}
		return nil
	}

	if opts.repeat <= 1 {
		return once(ctx)
	}

	breaker := workflow.NewBreaker(cfg.Breaker.Threshold, cfg.Breaker.Cooldown)
	var lastErr error
	for i := 1; i <= opts.repeat; i++ {
		err := breaker.Do(ctx, once)
		switch {
		case errors.Is(err, workflow.ErrOpen):
			slog.Warn("Circuit breaker open, skipping remaining runs",
				"run", i,
				"cooldown", cfg.Breaker.Cooldown)
			return fmt.Errorf("stopped after %d runs: %w", i-1, lastErr)
		case err != nil:
			lastErr = err
			slog.Warn("Load run failed", "run", i, "breaker", breaker.State().String(), "error", err)
		default:
			slog.Info("Load run succeeded", "run", i)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

// loadInTx runs the load as a single-step transactional chain so a
// cancelled load leaves the database untouched.
func loadInTx(ctx context.Context, db *seeddb.DB, l *loader.Loader, raw string) (*loader.Stats, error) {
	var stats *loader.Stats
	err := workflow.NewChain().
		Then("load", func(ctx context.Context, tx workflow.Txn) error {
			var err error
			stats, err = l.Load(ctx, tx, raw)
			return err
		}).
		Run(ctx, func(ctx context.Context) (workflow.Txn, error) {
			tx, err := db.BeginTx(ctx)
			if err != nil {
				return nil, err
			}
			return tx, nil
		})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
