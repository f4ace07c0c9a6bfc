package loader

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wemcdonald/sqlseed/pkg/script"
	"github.com/wemcdonald/sqlseed/pkg/seeddb"
	"github.com/wemcdonald/sqlseed/pkg/workflow"
)

// recorder is an Executor that records statements and fails those
// containing a configured substring.
type recorder struct {
	mu    sync.Mutex
	execs []string
	fail  map[string]error
}

func (r *recorder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for substr, err := range r.fail {
		if strings.Contains(query, substr) {
			return nil, err
		}
	}
	r.execs = append(r.execs, query)
	return nil, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) (*seeddb.DB, func()) {
	tmpDir, err := os.MkdirTemp("", "loader_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := seeddb.Open(seeddb.Config{DBPath: filepath.Join(tmpDir, "test.db")})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}
	return db, cleanup
}

const musicScript = `
-- Music catalog
SET search_path = public;
BEGIN TRANSACTION;
CREATE ZONE IF NOT EXISTS Music WITH REPLICAS=2;
CREATE TABLE Genre (GenreId INT PRIMARY KEY, Name VARCHAR) ZONE Music;
INSERT INTO Genre (GenreId, Name) VALUES (1, 'Rock'), (2, 'Jazz'), (3, 'Rock ''n'' Roll');
CREATE TABLE Artist (ArtistId INT PRIMARY KEY, Name VARCHAR) ZONE Music;
INSERT INTO Artist (ArtistId, Name) VALUES (1, 'AC/DC'), (2, 'Accept');
/* albums */
CREATE TABLE Album (AlbumId INT, ArtistId INT, Title VARCHAR, PRIMARY KEY (AlbumId, ArtistId)) COLOCATE BY (ArtistId) ZONE Music;
CREATE INDEX IF NOT EXISTS idx_album_title ON Album (Title);
INSERT INTO Album (AlbumId, ArtistId, Title) VALUES (1, 1, 'For Those About To Rock (We Salute You)'), (2, 2, 'Balls to the Wall');
UPDATE Genre SET Name = 'Rock; Roll' WHERE GenreId = 3;
COMMIT;
`

func TestPlan(t *testing.T) {
	l := New(Config{MaxBatchSize: 2, Logger: quietLogger()})
	plan := l.Plan(musicScript)

	assert.Equal(t, 9, plan.Parsed)
	assert.Equal(t, 3, plan.Skipped)
	assert.Empty(t, plan.Warnings)

	require.Len(t, plan.Schema, 5)
	assert.Equal(t, script.KindCreateZone, plan.Schema[0].Kind)
	assert.Equal(t, "Music", plan.Schema[0].Table)
	assert.Equal(t, "Album", plan.Schema[3].Table)
	assert.Equal(t, script.KindCreateIndex, plan.Schema[4].Kind)

	// The three-row Genre insert is split into batches of two and one.
	require.Len(t, plan.Data, 5)
	assert.Equal(t, "INSERT INTO Genre (GenreId, Name) VALUES (1, 'Rock'), (2, 'Jazz')", plan.Data[0].SQL)
	assert.Equal(t, "INSERT INTO Genre (GenreId, Name) VALUES (3, 'Rock ''n'' Roll')", plan.Data[1].SQL)
	assert.Equal(t, 2, plan.Data[0].Rows)
	assert.Equal(t, 1, plan.Data[1].Rows)
	assert.Equal(t, "Artist", plan.Data[2].Table)
	assert.Equal(t, script.KindUpdate, plan.Data[4].Kind)
	assert.Equal(t, 1, plan.Batched)
	assert.Equal(t, 2, plan.Batches)
	assert.Equal(t, 7, plan.Rows())

	assert.Len(t, plan.Steps(), 10)
}

func TestPlanDefaults(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, DefaultMaxBatchSize, l.config.MaxBatchSize)

	plan := l.Plan(musicScript)
	assert.Zero(t, plan.Batched)
	assert.Len(t, plan.Data, 4)
}

func TestPlanWarnings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unterminated quote", "INSERT INTO t (a) VALUES (1), (2), ('open"},
		{"stray closing parenthesis", "INSERT INTO t (a) VALUES (1)), (2);"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{MaxBatchSize: 1, Logger: quietLogger()})
			plan := l.Plan(tt.raw)

			assert.NotEmpty(t, plan.Warnings)
			require.Len(t, plan.Data, 1, "malformed VALUES is passed through unchanged")
			assert.Equal(t, strings.TrimSuffix(tt.raw, ";"), plan.Data[0].SQL)
			assert.Zero(t, plan.Batched)
		})
	}
}

func TestLoadOrdersPhases(t *testing.T) {
	rec := &recorder{}
	l := New(Config{MaxBatchSize: 2, Logger: quietLogger()})

	stats, err := l.Load(context.Background(), rec, musicScript)
	require.NoError(t, err)

	require.Len(t, rec.execs, 10)
	for i, stmt := range rec.execs[:5] {
		assert.True(t, script.Classify(stmt).IsSchema(), "statement %d: %s", i, stmt)
	}
	for i, stmt := range rec.execs[5:] {
		assert.False(t, script.Classify(stmt).IsSchema(), "statement %d: %s", i, stmt)
	}

	assert.Equal(t, 10, stats.Executed)
	assert.Equal(t, 9, stats.Parsed)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 5, stats.Schema)
	assert.Equal(t, 5, stats.Data)
	assert.Equal(t, 1, stats.Batched)
	assert.Equal(t, 7, stats.RowsEstimated)
	assert.Zero(t, stats.Failed)
	_, err = uuid.Parse(stats.RunID)
	assert.NoError(t, err)
	assert.False(t, stats.EndTime.Before(stats.StartTime))
}

func TestLoadFailures(t *testing.T) {
	exists := &seeddb.DBError{Code: seeddb.CodeAlreadyExists, Message: "zone exists"}
	missing := &seeddb.DBError{Code: seeddb.CodeNotFound, Message: "no such table"}

	tests := []struct {
		name          string
		fail          map[string]error
		wantTolerated int
		wantFailed    int
		wantLevel     string
	}{
		{
			name:          "already exists on schema is tolerated",
			fail:          map[string]error{"CREATE ZONE": exists},
			wantTolerated: 1,
			wantLevel:     "",
		},
		{
			name:          "already exists on create table is tolerated loudly",
			fail:          map[string]error{"CREATE TABLE Artist": exists},
			wantTolerated: 1,
			wantLevel:     "level=WARN",
		},
		{
			name:       "create zone failure is a warning",
			fail:       map[string]error{"CREATE ZONE": errors.New("cluster unavailable")},
			wantFailed: 1,
			wantLevel:  "level=WARN",
		},
		{
			name:       "create table failure is an error",
			fail:       map[string]error{"CREATE TABLE Artist": errors.New("syntax error")},
			wantFailed: 1,
			wantLevel:  "level=ERROR",
		},
		{
			name:       "missing table on data is not tolerated",
			fail:       map[string]error{"INSERT INTO Artist": missing},
			wantFailed: 1,
			wantLevel:  "level=WARN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
			rec := &recorder{fail: tt.fail}
			l := New(Config{Logger: logger})

			stats, err := l.Load(context.Background(), rec, musicScript)
			require.NoError(t, err, "statement failures never fail the load")
			assert.Equal(t, tt.wantTolerated, stats.Tolerated)
			assert.Equal(t, tt.wantFailed, stats.Failed)
			assert.Equal(t, stats.Schema+stats.Data-tt.wantTolerated-tt.wantFailed, stats.Executed)
			if tt.wantLevel != "" {
				assert.Contains(t, buf.String(), tt.wantLevel)
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoadDryRun(t *testing.T) {
	rec := &recorder{}
	l := New(Config{DryRun: true, Logger: quietLogger()})

	stats, err := l.Load(context.Background(), rec, musicScript)
	require.NoError(t, err)
	assert.Empty(t, rec.execs)
	assert.Zero(t, stats.Executed)
	assert.Equal(t, 9, stats.Parsed)
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	stats, err := New(Config{Logger: quietLogger()}).Load(ctx, rec, musicScript)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Zero(t, stats.Executed)
	assert.Empty(t, rec.execs)
}

func TestLoadInspect(t *testing.T) {
	rec := &recorder{}
	l := New(Config{Inspect: true, DryRun: true, Logger: quietLogger()})

	stats, err := l.Load(context.Background(), rec, musicScript)
	require.NoError(t, err)
	// Zone clauses are outside the MySQL grammar; plain DML is not.
	assert.GreaterOrEqual(t, stats.Inspected, 4)
	assert.Zero(t, stats.Mismatched)
}

func TestLoadResources(t *testing.T) {
	l := New(Config{Logger: quietLogger()})
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, err := l.LoadFile(ctx, &recorder{}, filepath.Join(t.TempDir(), "missing.sql"))
		assert.ErrorIs(t, err, ErrScriptNotFound)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.sql")
		require.NoError(t, os.WriteFile(path, []byte(musicScript), 0o644))
		stats, err := l.LoadFile(ctx, &recorder{}, path)
		require.NoError(t, err)
		assert.Equal(t, 9, stats.Parsed)
	})

	fsys := fstest.MapFS{"seed.sql": &fstest.MapFile{Data: []byte(musicScript)}}

	t.Run("missing resource", func(t *testing.T) {
		_, err := l.LoadFS(ctx, &recorder{}, fsys, "other.sql")
		assert.ErrorIs(t, err, ErrScriptNotFound)
	})

	t.Run("resource", func(t *testing.T) {
		stats, err := l.LoadFS(ctx, &recorder{}, fsys, "seed.sql")
		require.NoError(t, err)
		assert.Equal(t, 9, stats.Executed)
	})
}

func TestLoadIntoDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	l := New(Config{MaxBatchSize: 2, Logger: quietLogger()})

	stats, err := l.Load(ctx, db, musicScript)
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 10, stats.Executed)

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT Name FROM Genre WHERE GenreId = 3").Scan(&name))
	assert.Equal(t, "Rock; Roll", name)

	zone, err := db.TableZone(ctx, "Album")
	require.NoError(t, err)
	assert.Equal(t, "Music", zone)

	// Re-running tolerates the existing schema; the duplicate rows fail.
	stats, err = l.Load(ctx, db, musicScript)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tolerated, "CREATE TABLE x3")
	assert.Equal(t, 4, stats.Failed, "INSERT batches hit primary keys")
	assert.Equal(t, 3, stats.Executed, "zone and index use IF NOT EXISTS, UPDATE is repeatable")

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Genre").Scan(&count))
	assert.Equal(t, 3, count)
}

func TestLoadInTransaction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	l := New(Config{Logger: quietLogger()})

	err := db.WithTx(ctx, func(tx *seeddb.Tx) error {
		_, err := l.Load(ctx, tx, musicScript)
		return err
	})
	require.NoError(t, err)

	exists, err := db.TableExists(ctx, "Artist")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLoadGrouped(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	l := New(Config{MaxBatchSize: 2, Logger: quietLogger()})

	groups := workflow.Groups{
		Reference: []string{"Genre"},
		Business:  []string{"Album"},
	}
	stats, err := l.LoadGrouped(ctx, db, musicScript, groups, 2)
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 10, stats.Executed)

	for table, want := range map[string]int{"Genre": 3, "Artist": 2, "Album": 2} {
		var count int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count))
		assert.Equal(t, want, count, table)
	}
}

func TestLoadGroupedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{Logger: quietLogger()}).LoadGrouped(ctx, &recorder{}, musicScript, workflow.Groups{}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTableSteps(t *testing.T) {
	steps := []Step{
		{Table: "Genre", SQL: "1"},
		{Table: "Artist", SQL: "2"},
		{Table: "genre", SQL: "3"},
	}
	groups := tableSteps(steps)
	require.Len(t, groups, 2)
	assert.Equal(t, "Genre", groups[0].name)
	assert.Equal(t, []Step{steps[0], steps[2]}, groups[0].steps)
	assert.Equal(t, "Artist", groups[1].name)
}
