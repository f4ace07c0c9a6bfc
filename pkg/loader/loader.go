// Package loader executes demo SQL scripts against a database: schema
// statements first, then data statements, with oversized INSERTs broken
// into batches. Individual statement failures are logged and counted but
// never abort a load.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wemcdonald/sqlseed/pkg/script"
	"github.com/wemcdonald/sqlseed/pkg/seeddb"
	"github.com/wemcdonald/sqlseed/pkg/sqlparser"
)

// DefaultMaxBatchSize is the largest number of tuples an INSERT may carry
// before it is split
const DefaultMaxBatchSize = 1000

// ErrScriptNotFound is returned when a script resource does not exist
var ErrScriptNotFound = errors.New("script not found")

// Executor runs a single SQL statement. *seeddb.DB, *seeddb.Tx, *sql.DB
// and *sql.Tx all satisfy it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Config contains configuration for a Loader
type Config struct {
	MaxBatchSize int
	DryRun       bool
	// Inspect parses each statement with the SQL grammar and logs what it
	// finds, warning when its tuple count disagrees with the estimate.
	Inspect      bool
	Logger       *slog.Logger
	IsIdempotent func(error) bool
}

// Stats describes a load
type Stats struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	Parsed   int
	Skipped  int
	Warnings int
	Schema   int
	Data     int
	Batched  int
	Batches  int

	RowsEstimated int
	Executed      int
	Tolerated     int
	Failed        int

	Inspected  int
	Mismatched int
}

// Duration returns how long the load took
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Loader runs scripts
type Loader struct {
	config    Config
	logger    *slog.Logger
	inspector *sqlparser.SQLParser
}

// New creates a loader, filling in defaults for unset fields
func New(config Config) *Loader {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	if config.IsIdempotent == nil {
		config.IsIdempotent = seeddb.IsIdempotent
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config:    config,
		logger:    logger,
		inspector: sqlparser.NewSQLParser(),
	}
}

// LoadFile loads the script at path
func (l *Loader) LoadFile(ctx context.Context, exec Executor, path string) (*Stats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	l.logger.Info("Loading script", "path", path, "bytes", len(raw))
	return l.Load(ctx, exec, string(raw))
}

// LoadFS loads the script name from fsys
func (l *Loader) LoadFS(ctx context.Context, exec Executor, fsys fs.FS, name string) (*Stats, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, name)
		}
		return nil, fmt.Errorf("failed to read script %s: %w", name, err)
	}
	l.logger.Info("Loading script", "resource", name, "bytes", len(raw))
	return l.Load(ctx, exec, string(raw))
}

// Load plans raw and executes the schema phase then the data phase. It
// returns an error only when ctx is done before every statement has run.
func (l *Loader) Load(ctx context.Context, exec Executor, raw string) (*Stats, error) {
	r := l.start(raw)

	if err := l.runSteps(ctx, exec, r, r.plan.Schema); err != nil {
		return r.finish(), err
	}
	if err := l.runSteps(ctx, exec, r, r.plan.Data); err != nil {
		return r.finish(), err
	}

	stats := r.finish()
	l.logFinalStatistics(ctx, stats)
	return stats, nil
}

// run holds the state of a single load
type run struct {
	plan   *Plan
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

func (l *Loader) start(raw string) *run {
	runID := uuid.NewString()
	logger := l.logger.With("run_id", runID)
	r := &run{logger: logger}
	r.stats.RunID = runID
	r.stats.StartTime = time.Now()

	r.plan = l.Plan(raw)
	r.stats.Parsed = r.plan.Parsed
	r.stats.Skipped = r.plan.Skipped
	r.stats.Warnings = len(r.plan.Warnings)
	r.stats.Schema = len(r.plan.Schema)
	r.stats.Data = len(r.plan.Data)
	r.stats.Batched = r.plan.Batched
	r.stats.Batches = r.plan.Batches
	r.stats.RowsEstimated = r.plan.Rows()

	for _, warning := range r.plan.Warnings {
		logger.Warn("Script parsed with warnings", "warning", warning)
	}
	logger.Info("Parsed script",
		"statements", r.stats.Parsed,
		"skipped", r.stats.Skipped,
		"schema", r.stats.Schema,
		"data", r.stats.Data,
		"batched", r.stats.Batched,
		"batches", r.stats.Batches,
		"rows_estimated", r.stats.RowsEstimated)
	return r
}

func (r *run) finish() *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.EndTime = time.Now()
	stats := r.stats
	return &stats
}

func (r *run) count(fn func(s *Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

func (l *Loader) runSteps(ctx context.Context, exec Executor, r *run, steps []Step) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.runStep(ctx, exec, r, step)
	}
	return nil
}

func (l *Loader) runStep(ctx context.Context, exec Executor, r *run, step Step) {
	if l.config.Inspect {
		l.inspect(r, step)
	}

	if l.config.DryRun {
		r.logger.Debug("Dry run - skipping statement", "label", step.Label, "table", step.Table, "rows", step.Rows)
		return
	}

	if _, err := exec.ExecContext(ctx, step.SQL); err != nil {
		l.fail(r, step, err)
		return
	}
	r.count(func(s *Stats) { s.Executed++ })
	r.logger.Debug("Executed statement", "label", step.Label, "table", step.Table, "rows", step.Rows)
}

// fail records a statement failure. Idempotent schema failures are
// expected when a script is re-run: they are counted as tolerated, and only
// CREATE ZONE and DROP are quiet about it.
func (l *Loader) fail(r *run, step Step, err error) {
	fields := []any{"label", step.Label, "table", step.Table, "error", err}
	zoneOrDrop := step.Kind == script.KindCreateZone || step.Kind == script.KindDrop

	switch {
	case step.Kind.IsSchema() && l.config.IsIdempotent(err):
		r.count(func(s *Stats) { s.Tolerated++ })
		if zoneOrDrop {
			r.logger.Debug("Statement already applied", fields...)
		} else {
			r.logger.Warn("Statement already applied", fields...)
		}
		return
	case zoneOrDrop:
		r.logger.Warn("Schema statement failed", fields...)
	case step.Kind.IsSchema():
		r.logger.Error("Schema statement failed", append(fields, "sql", step.SQL)...)
	default:
		r.logger.Warn("Data statement failed", append(fields, "rows", step.Rows)...)
	}
	r.count(func(s *Stats) { s.Failed++ })
}

func (l *Loader) inspect(r *run, step Step) {
	info, err := l.inspector.Parse(step.SQL)
	if err != nil {
		r.logger.Debug("Statement not inspected", "label", step.Label, "error", err)
		return
	}

	// INSERT ... SELECT has no tuples to compare.
	mismatch := info.Type == sqlparser.StatementInsert && info.Rows > 0 && info.Rows != step.Rows
	r.count(func(s *Stats) {
		s.Inspected++
		if mismatch {
			s.Mismatched++
		}
	})

	if mismatch {
		r.logger.Warn("Row estimate differs from parsed tuples",
			"table", step.Table,
			"estimated", step.Rows,
			"parsed", info.Rows)
		return
	}
	r.logger.Debug("Inspected statement",
		"type", info.Type.String(),
		"tables", info.Tables,
		"columns", info.Columns)
}

func (l *Loader) logFinalStatistics(ctx context.Context, stats *Stats) {
	logLevel := slog.LevelInfo
	if stats.Failed > 0 {
		logLevel = slog.LevelWarn
	}

	logFields := []any{
		"run_id", stats.RunID,
		"duration", stats.Duration(),
		"statements_parsed", stats.Parsed,
		"statements_skipped", stats.Skipped,
		"schema_count", stats.Schema,
		"data_count", stats.Data,
		"batched", stats.Batched,
		"rows_estimated", stats.RowsEstimated,
		"executed", stats.Executed,
		"tolerated", stats.Tolerated,
		"failed", stats.Failed,
	}
	if l.config.DryRun {
		logFields = append(logFields, "dry_run", true)
	}
	if l.config.Inspect {
		logFields = append(logFields, "inspected", stats.Inspected, "mismatched", stats.Mismatched)
	}

	if stats.Failed > 0 {
		l.logger.Log(ctx, logLevel, "Load completed with errors", logFields...)
	} else {
		l.logger.Log(ctx, logLevel, "Load completed successfully", logFields...)
	}
}
