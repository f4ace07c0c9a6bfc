package seeddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wemcdonald/sqlseed/pkg/script"
)

// Zone defaults applied when a definition leaves a field empty
const (
	DefaultReplicas        = 1
	DefaultPartitions      = 25
	DefaultStorageProfiles = "default"
)

// ZoneDef is a declarative zone definition
type ZoneDef struct {
	Name            string
	Replicas        int
	Partitions      int
	StorageProfiles string
}

// catalogResult is the sql.Result of an emulated catalog statement
type catalogResult int64

func (r catalogResult) LastInsertId() (int64, error) { return 0, nil }
func (r catalogResult) RowsAffected() (int64, error) { return int64(r), nil }

// execStatement routes catalog DDL to the emulation and everything else to SQLite.
func execStatement(ctx context.Context, c conn, query string, args ...any) (sql.Result, error) {
	switch script.Classify(query) {
	case script.KindCreateZone:
		def, ifNotExists, err := parseCreateZone(query)
		if err != nil {
			return nil, err
		}
		return createZone(ctx, c, def, ifNotExists)
	case script.KindCreateTable:
		return createTableStatement(ctx, c, query, args...)
	case script.KindDrop:
		switch script.Label(query) {
		case "DROP ZONE":
			name, ifExists := parseDrop(query)
			if name == "" {
				return nil, &DBError{Code: CodeInvalidStatement, Message: "zone name is required"}
			}
			return dropZone(ctx, c, name, ifExists)
		case "DROP TABLE":
			return dropTableStatement(ctx, c, query, args...)
		}
	}

	result, err := c.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "failed to execute statement")
	}
	return result, nil
}

// CreateZone creates a distribution zone. An existing zone yields an
// ALREADY_EXISTS error.
func (db *DB) CreateZone(ctx context.Context, def ZoneDef) error {
	_, err := createZone(ctx, db.sqlDB, def, false)
	return err
}

// DropZone removes a zone that no table is bound to
func (db *DB) DropZone(ctx context.Context, name string) error {
	_, err := dropZone(ctx, db.sqlDB, name, false)
	return err
}

// Zone retrieves a zone by name
func (db *DB) Zone(ctx context.Context, name string) (*Zone, error) {
	var zone Zone
	err := db.sqlDB.QueryRowContext(ctx, `
		SELECT name, replicas, partitions, storage_profiles, created_at
		FROM seed_zones
		WHERE name = ?
	`, name).Scan(&zone.Name, &zone.Replicas, &zone.Partitions, &zone.StorageProfiles, &zone.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &DBError{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("zone not found: %s", name),
			}
		}
		return nil, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to get zone",
			Err:     err,
		}
	}
	return &zone, nil
}

// Zones lists all zones ordered by name
func (db *DB) Zones(ctx context.Context) ([]Zone, error) {
	rows, err := db.sqlDB.QueryContext(ctx, `
		SELECT name, replicas, partitions, storage_profiles, created_at
		FROM seed_zones
		ORDER BY name
	`)
	if err != nil {
		return nil, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to list zones",
			Err:     err,
		}
	}
	defer rows.Close()

	zones := make([]Zone, 0)
	for rows.Next() {
		var zone Zone
		if err := rows.Scan(&zone.Name, &zone.Replicas, &zone.Partitions, &zone.StorageProfiles, &zone.CreatedAt); err != nil {
			return nil, &DBError{
				Code:    CodeQueryFailed,
				Message: "failed to scan zone",
				Err:     err,
			}
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// TableZone returns the zone a table is bound to, or "" for unbound tables.
func (db *DB) TableZone(ctx context.Context, table string) (string, error) {
	var zone string
	err := db.sqlDB.QueryRowContext(ctx, `
		SELECT zone_name FROM seed_table_zones WHERE table_name = ?
	`, table).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to get table zone",
			Err:     err,
		}
	}
	return zone, nil
}

func createZone(ctx context.Context, c conn, def ZoneDef, ifNotExists bool) (sql.Result, error) {
	if def.Name == "" {
		return nil, &DBError{
			Code:    CodeInvalidStatement,
			Message: "zone name is required",
		}
	}
	if def.Replicas <= 0 {
		def.Replicas = DefaultReplicas
	}
	if def.Partitions <= 0 {
		def.Partitions = DefaultPartitions
	}
	if def.StorageProfiles == "" {
		def.StorageProfiles = DefaultStorageProfiles
	}

	// OR IGNORE keeps concurrent creators from racing on the primary key.
	result, err := c.ExecContext(ctx, `
		INSERT OR IGNORE INTO seed_zones (name, replicas, partitions, storage_profiles, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, def.Name, def.Replicas, def.Partitions, def.StorageProfiles, time.Now())
	if err != nil {
		return nil, &DBError{
			Code:    CodeExecFailed,
			Message: "failed to create zone",
			Err:     err,
		}
	}
	created, err := result.RowsAffected()
	if err != nil {
		return nil, &DBError{
			Code:    CodeExecFailed,
			Message: "failed to create zone",
			Err:     err,
		}
	}
	if created == 0 {
		if ifNotExists {
			return catalogResult(0), nil
		}
		return nil, &DBError{
			Code:    CodeAlreadyExists,
			Message: fmt.Sprintf("zone already exists: %s", def.Name),
		}
	}
	return catalogResult(1), nil
}

func dropZone(ctx context.Context, c conn, name string, ifExists bool) (sql.Result, error) {
	exists, err := zoneExists(ctx, c, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		if ifExists {
			return catalogResult(0), nil
		}
		return nil, &DBError{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("zone not found: %s", name),
		}
	}

	var tables int
	err = c.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM seed_table_zones WHERE zone_name = ?
	`, name).Scan(&tables)
	if err != nil {
		return nil, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to count zone tables",
			Err:     err,
		}
	}
	if tables > 0 {
		return nil, &DBError{
			Code:    CodeZoneInUse,
			Message: fmt.Sprintf("zone %s is used by %d table(s)", name, tables),
		}
	}

	if _, err := c.ExecContext(ctx, `DELETE FROM seed_zones WHERE name = ?`, name); err != nil {
		return nil, &DBError{
			Code:    CodeExecFailed,
			Message: "failed to drop zone",
			Err:     err,
		}
	}
	return catalogResult(1), nil
}

func zoneExists(ctx context.Context, c conn, name string) (bool, error) {
	var count int
	err := c.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM seed_zones WHERE name = ?
	`, name).Scan(&count)
	if err != nil {
		return false, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to look up zone",
			Err:     err,
		}
	}
	return count > 0, nil
}

// parseCreateZone reads both zone DDL forms:
//
//	CREATE ZONE [IF NOT EXISTS] name [WITH REPLICAS=2, PARTITIONS=10, STORAGE_PROFILES='default']
//	CREATE ZONE [IF NOT EXISTS] name [(REPLICAS 2, PARTITIONS 10)] [STORAGE PROFILES ['default']]
func parseCreateZone(stmt string) (ZoneDef, bool, error) {
	def := ZoneDef{Name: script.ObjectName(stmt)}
	if def.Name == "" {
		return def, false, &DBError{
			Code:    CodeInvalidStatement,
			Message: "zone name is required",
		}
	}
	ifNotExists := strings.HasPrefix(strings.Join(strings.Fields(strings.ToUpper(stmt)), " "), "CREATE ZONE IF NOT EXISTS")

	// Everything after the zone name holds the options.
	upper := strings.ToUpper(stmt)
	offset := strings.Index(upper, "ZONE") + len("ZONE")
	if ifNotExists {
		offset += strings.Index(upper[offset:], "EXISTS") + len("EXISTS")
	}
	offset += strings.Index(upper[offset:], strings.ToUpper(def.Name)) + len(def.Name)
	rest := strings.TrimSpace(strings.TrimLeft(stmt[offset:], "\"`"))

	opts := make(map[string]string)
	for rest != "" {
		head := strings.ToUpper(rest)
		switch {
		case hasWordPrefix(head, "WITH"):
			mergeOptions(opts, rest[len("WITH"):])
			rest = ""
		case strings.HasPrefix(head, "("):
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return def, false, &DBError{Code: CodeInvalidStatement, Message: "unterminated zone options"}
			}
			mergeOptions(opts, rest[1:end])
			rest = strings.TrimSpace(rest[end+1:])
		case hasWordPrefix(head, "STORAGE"):
			fields := strings.Fields(rest)
			if len(fields) < 3 {
				return def, false, &DBError{Code: CodeInvalidStatement, Message: "storage profiles are required"}
			}
			opts["STORAGE_PROFILES"] = trimValue(strings.Join(fields[2:], " "))
			rest = ""
		default:
			return def, false, &DBError{
				Code:    CodeInvalidStatement,
				Message: fmt.Sprintf("unexpected zone clause: %s", rest),
			}
		}
	}

	var err error
	if v, ok := opts["REPLICAS"]; ok {
		if def.Replicas, err = strconv.Atoi(v); err != nil {
			return def, false, &DBError{Code: CodeInvalidStatement, Message: "invalid REPLICAS", Err: err}
		}
	}
	if v, ok := opts["PARTITIONS"]; ok {
		if def.Partitions, err = strconv.Atoi(v); err != nil {
			return def, false, &DBError{Code: CodeInvalidStatement, Message: "invalid PARTITIONS", Err: err}
		}
	}
	def.StorageProfiles = opts["STORAGE_PROFILES"]

	return def, ifNotExists, nil
}

// parseDrop returns the object name of a DROP statement and whether it
// carries IF EXISTS.
func parseDrop(stmt string) (string, bool) {
	fields := strings.Fields(strings.ToUpper(stmt))
	ifExists := len(fields) > 3 && fields[2] == "IF" && fields[3] == "EXISTS"
	return script.ObjectName(stmt), ifExists
}

// mergeOptions parses "KEY=value" or "KEY value" pairs separated by commas.
func mergeOptions(opts map[string]string, text string) {
	for _, part := range splitTopLevel(text, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			fields := strings.Fields(part)
			if len(fields) < 2 {
				continue
			}
			key, value = fields[0], strings.Join(fields[1:], " ")
		}
		opts[strings.ToUpper(strings.TrimSpace(key))] = trimValue(value)
	}
}

func trimValue(value string) string {
	return strings.Trim(strings.TrimSpace(value), `'"[] `)
}

// splitTopLevel splits text on sep outside quotes and brackets
func splitTopLevel(text string, sep byte) []string {
	parts := make([]string, 0)
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, text[start:i])
			start = i + 1
		}
	}
	return append(parts, text[start:])
}

func hasWordPrefix(upper, word string) bool {
	if !strings.HasPrefix(upper, word) {
		return false
	}
	if len(upper) == len(word) {
		return true
	}
	c := upper[len(word)]
	return !(c == '_' || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9'))
}
