package seeddb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wemcdonald/sqlseed/pkg/script"
)

// Column is one column of a declarative table definition
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

// TableDef is a declarative table definition
type TableDef struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	// Zone binds the table to a distribution zone; empty means unbound.
	Zone string
	// ColocateBy lists the key columns rows are colocated by.
	ColocateBy []string
}

// SQL renders the definition as a CREATE TABLE statement
func (d TableDef) SQL() (string, error) {
	if d.Name == "" {
		return "", &DBError{Code: CodeInvalidStatement, Message: "table name is required"}
	}
	if len(d.Columns) == 0 {
		return "", &DBError{Code: CodeInvalidStatement, Message: fmt.Sprintf("table %s has no columns", d.Name)}
	}

	defs := make([]string, 0, len(d.Columns)+1)
	for _, col := range d.Columns {
		def := col.Name + " " + col.Type
		if col.NotNull {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(d.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(d.PrimaryKey, ", ")))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", d.Name, strings.Join(defs, ", "))
	if len(d.ColocateBy) > 0 {
		stmt += fmt.Sprintf(" COLOCATE BY (%s)", strings.Join(d.ColocateBy, ", "))
	}
	if d.Zone != "" {
		stmt += " ZONE " + d.Zone
	}
	return stmt, nil
}

// CreateTable creates a table from a declarative definition. An existing
// table yields an ALREADY_EXISTS error.
func (db *DB) CreateTable(ctx context.Context, def TableDef) error {
	stmt, err := def.SQL()
	if err != nil {
		return err
	}
	_, err = createTableStatement(ctx, db.sqlDB, stmt)
	return err
}

// DropTable drops a table and its zone binding
func (db *DB) DropTable(ctx context.Context, name string) error {
	_, err := dropTableStatement(ctx, db.sqlDB, "DROP TABLE "+name)
	return err
}

// TableExists checks whether a user table exists
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := db.sqlDB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = ? COLLATE NOCASE
	`, name).Scan(&count)
	if err != nil {
		return false, &DBError{
			Code:    CodeQueryFailed,
			Message: "failed to look up table",
			Err:     err,
		}
	}
	return count > 0, nil
}

// createTableStatement strips zone and colocation clauses, which SQLite does
// not understand, and records them in the catalog.
func createTableStatement(ctx context.Context, c conn, query string, args ...any) (sql.Result, error) {
	table := tableClauses(query)
	if table.zone != "" {
		exists, err := zoneExists(ctx, c, table.zone)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &DBError{
				Code:    CodeNotFound,
				Message: fmt.Sprintf("zone not found: %s", table.zone),
			}
		}
	}

	result, err := c.ExecContext(ctx, table.body, args...)
	if err != nil {
		return nil, translate(err, "failed to create table")
	}

	if table.zone != "" {
		_, err := c.ExecContext(ctx, `
			INSERT OR IGNORE INTO seed_table_zones (table_name, zone_name, colocate_by)
			VALUES (?, ?, ?)
		`, script.ObjectName(query), table.zone, table.colocateBy)
		if err != nil {
			return nil, &DBError{
				Code:    CodeExecFailed,
				Message: "failed to bind table to zone",
				Err:     err,
			}
		}
	}
	return result, nil
}

func dropTableStatement(ctx context.Context, c conn, query string, args ...any) (sql.Result, error) {
	result, err := c.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "failed to drop table")
	}
	name, _ := parseDrop(query)
	if _, err := c.ExecContext(ctx, `DELETE FROM seed_table_zones WHERE table_name = ?`, name); err != nil {
		return nil, &DBError{
			Code:    CodeExecFailed,
			Message: "failed to unbind table from zone",
			Err:     err,
		}
	}
	return result, nil
}

type tableStatement struct {
	body       string
	zone       string
	colocateBy string
}

// tableClauses splits the trailing clauses off a CREATE TABLE statement:
//
//	CREATE TABLE t (...) [COLOCATE BY (cols)] [ZONE name | WITH PRIMARY_ZONE='name'] [STORAGE PROFILE 'p']
//
// Statements with any other trailing clause are returned unchanged.
func tableClauses(stmt string) tableStatement {
	unchanged := tableStatement{body: stmt}

	end := columnListEnd(stmt)
	if end < 0 {
		return unchanged
	}
	result := tableStatement{body: stmt[:end+1]}

	rest := strings.TrimSpace(stmt[end+1:])
	for rest != "" {
		head := strings.ToUpper(rest)
		switch {
		case hasWordPrefix(head, "COLOCATE"):
			open := strings.IndexByte(rest, '(')
			closing := strings.IndexByte(rest, ')')
			if open < 0 || closing < open {
				return unchanged
			}
			result.colocateBy = strings.Join(strings.Fields(rest[open+1:closing]), " ")
			rest = strings.TrimSpace(rest[closing+1:])
		case hasWordPrefix(head, "ZONE"):
			fields := strings.Fields(rest)
			if len(fields) < 2 {
				return unchanged
			}
			result.zone = strings.Trim(fields[1], "\"`")
			rest = strings.Join(fields[2:], " ")
		case hasWordPrefix(head, "WITH"):
			opts := make(map[string]string)
			mergeOptions(opts, rest[len("WITH"):])
			zone, ok := opts["PRIMARY_ZONE"]
			if !ok {
				return unchanged
			}
			result.zone = zone
			rest = ""
		case hasWordPrefix(head, "STORAGE"):
			fields := strings.Fields(rest)
			if len(fields) < 3 {
				return unchanged
			}
			rest = strings.Join(fields[3:], " ")
		default:
			return unchanged
		}
	}
	return result
}

// columnListEnd returns the offset of the parenthesis closing the column
// list, or -1.
func columnListEnd(stmt string) int {
	depth := 0
	inQuote := false
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
