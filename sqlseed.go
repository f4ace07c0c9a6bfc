// Package sqlseed loads demo SQL scripts into a SQLite database that
// emulates distribution zones.
package sqlseed

import (
	"context"

	"github.com/wemcdonald/sqlseed/pkg/loader"
	"github.com/wemcdonald/sqlseed/pkg/sample"
	"github.com/wemcdonald/sqlseed/pkg/seeddb"
)

// Open opens the database at dataSourceName
func Open(dataSourceName string) (*seeddb.DB, error) {
	return seeddb.Open(seeddb.Config{DBPath: dataSourceName})
}

// Seed loads the bundled seed script into db with default settings
func Seed(ctx context.Context, db *seeddb.DB) (*loader.Stats, error) {
	return loader.New(loader.Config{}).LoadFS(ctx, db, sample.FS, sample.SeedFile)
}

// Re-export types for convenience
type (
	DB      = seeddb.DB
	DBError = seeddb.DBError
	Loader  = loader.Loader
	Stats   = loader.Stats
)
