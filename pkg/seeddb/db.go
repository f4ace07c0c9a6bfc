package seeddb

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// conn is the execution surface shared by *sql.DB and *sql.Tx
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates a new database instance
func Open(config Config) (*DB, error) {
	if config.DBPath == "" {
		return nil, &DBError{
			Code:    CodeInvalidConfig,
			Message: "database path is required",
		}
	}

	sqlDB, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, &DBError{
			Code:    CodeOpenFailed,
			Message: "failed to open database",
			Err:     err,
		}
	}
	// A single connection avoids SQLITE_BUSY between concurrent loaders and
	// keeps ":memory:" databases from splitting across connections.
	sqlDB.SetMaxOpenConns(1)

	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{sqlDB: sqlDB}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// SQL returns the underlying database connection
func (db *DB) SQL() *sql.DB {
	return db.sqlDB
}

// Ping checks the database connection
func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// ExecContext executes a single statement. Zone DDL and zone clauses on
// CREATE TABLE are handled by the catalog; everything else goes to SQLite.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return execStatement(ctx, db.sqlDB, query, args...)
}

// QueryContext executes a query that returns rows
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := db.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to execute query",
			Err:     err,
		}
	}
	return rows, nil
}

// QueryRowContext executes a query that returns at most one row
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.sqlDB.QueryRowContext(ctx, query, args...)
}

// initSchema creates the catalog tables
func initSchema(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seed_zones (
			name TEXT PRIMARY KEY COLLATE NOCASE,
			replicas INTEGER NOT NULL,
			partitions INTEGER NOT NULL,
			storage_profiles TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seed_table_zones (
			table_name TEXT PRIMARY KEY COLLATE NOCASE,
			zone_name TEXT NOT NULL COLLATE NOCASE,
			colocate_by TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (zone_name) REFERENCES seed_zones(name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_seed_table_zones_zone ON seed_table_zones(zone_name)`,
	}

	for _, query := range queries {
		_, err := db.Exec(query)
		if err != nil {
			return &DBError{
				Code:    CodeSchemaInitFailed,
				Message: "failed to initialize catalog schema",
				Err:     err,
			}
		}
	}

	return nil
}
