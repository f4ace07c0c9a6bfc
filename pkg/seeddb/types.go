package seeddb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Error codes carried by DBError
const (
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeOpenFailed       = "DB_OPEN_FAILED"
	CodeSchemaInitFailed = "SCHEMA_INIT_FAILED"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeNotFound         = "NOT_FOUND"
	CodeZoneInUse        = "ZONE_IN_USE"
	CodeInvalidStatement = "INVALID_STATEMENT"
	CodeExecFailed       = "EXEC_FAILED"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeTxFailed         = "TX_FAILED"
)

// Config holds the configuration for the database
type Config struct {
	// DBPath is the sqlite3 data source name, a file path or ":memory:".
	DBPath string
}

// DB wraps a SQLite database and emulates the catalog objects demo
// scripts rely on: distribution zones and tables bound to them.
type DB struct {
	sqlDB *sql.DB

	gormOnce sync.Once
	gormDB   *gorm.DB
	gormErr  error
}

// Zone describes a distribution zone
type Zone struct {
	Name            string
	Replicas        int
	Partitions      int
	StorageProfiles string
	CreatedAt       time.Time
}

// DBError represents a database error
type DBError struct {
	Code    string
	Message string
	Err     error
}

func (e *DBError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// IsAlreadyExists reports whether err says the object being created exists.
func IsAlreadyExists(err error) bool {
	var dbErr *DBError
	return errors.As(err, &dbErr) && dbErr.Code == CodeAlreadyExists
}

// IsNotFound reports whether err says the object being dropped or used is missing.
func IsNotFound(err error) bool {
	var dbErr *DBError
	return errors.As(err, &dbErr) && dbErr.Code == CodeNotFound
}

// IsIdempotent reports whether err is expected when a script is re-run
// against an already provisioned database.
func IsIdempotent(err error) bool {
	return IsAlreadyExists(err) || IsNotFound(err)
}

// translate maps sqlite3 catalog errors onto DBError codes.
func translate(err error, message string) error {
	if err == nil {
		return nil
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return err
	}

	code := CodeExecFailed
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		msg := sqliteErr.Error()
		switch {
		case strings.Contains(msg, "already exists"):
			code = CodeAlreadyExists
		case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such index"):
			code = CodeNotFound
		}
	}
	return &DBError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
