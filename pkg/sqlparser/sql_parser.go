// Package sqlparser inspects individual statements with a full SQL grammar.
// The loader uses it to cross-check what the script scanner recovered.
package sqlparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// ErrEmptyQuery is returned when an empty query is provided
var ErrEmptyQuery = errors.New("empty query")

// ErrUnsupportedStatement is returned when the grammar does not cover a statement,
// such as zone DDL.
var ErrUnsupportedStatement = errors.New("unsupported SQL statement")

// SQLParser handles the parsing of SQL statements into a structured format
type SQLParser struct{}

// NewSQLParser creates a new SQL parser instance
func NewSQLParser() *SQLParser {
	return &SQLParser{}
}

// Parse parses a SQL query and returns a SQLStatement containing the parsed information.
// It extracts the statement type, tables, columns, row count and where clause from the query.
func (p *SQLParser) Parse(query string) (*SQLStatement, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	ast, err := sqlparser.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedStatement, err)
	}

	result := &SQLStatement{
		Tables:  make([]string, 0),
		Columns: make([]string, 0),
		AST:     ast,
	}

	switch stmt := ast.(type) {
	case *sqlparser.Select:
		result.Type = StatementSelect
		if stmt.From != nil {
			result.Tables = p.extractTablesFromTableExprs(stmt.From)
		}
		for _, expr := range stmt.SelectExprs {
			switch e := expr.(type) {
			case *sqlparser.StarExpr:
				result.Columns = append(result.Columns, "*")
			case *sqlparser.AliasedExpr:
				if col, ok := e.Expr.(*sqlparser.ColName); ok {
					result.Columns = append(result.Columns, col.Name.String())
				}
			}
		}
		if stmt.Where != nil {
			result.Where = strings.TrimSpace(sqlparser.String(stmt.Where))
		}

	case *sqlparser.Insert:
		result.Type = StatementInsert
		result.Tables = append(result.Tables, stmt.Table.Name.String())
		for _, col := range stmt.Columns {
			result.Columns = append(result.Columns, col.String())
		}
		if rows, ok := stmt.Rows.(sqlparser.Values); ok {
			result.Rows = len(rows)
		}

	case *sqlparser.Update:
		result.Type = StatementUpdate
		if stmt.TableExprs != nil {
			result.Tables = p.extractTablesFromTableExprs(stmt.TableExprs)
		}
		for _, expr := range stmt.Exprs {
			result.Columns = append(result.Columns, expr.Name.Name.String())
		}
		if stmt.Where != nil {
			result.Where = strings.TrimSpace(sqlparser.String(stmt.Where))
		}

	case *sqlparser.Delete:
		result.Type = StatementDelete
		if stmt.TableExprs != nil {
			result.Tables = p.extractTablesFromTableExprs(stmt.TableExprs)
		}
		if stmt.Where != nil {
			result.Where = strings.TrimSpace(sqlparser.String(stmt.Where))
		}

	case *sqlparser.DDL:
		switch stmt.Action {
		case sqlparser.CreateStr:
			result.Type = StatementCreate
		case sqlparser.AlterStr:
			result.Type = StatementAlter
		case sqlparser.DropStr:
			result.Type = StatementDrop
		default:
			return nil, fmt.Errorf("%w: DDL action %s", ErrUnsupportedStatement, stmt.Action)
		}
		// CREATE TABLE names the new table in NewName, DROP in Table.
		if name := stmt.NewName.Name.String(); name != "" {
			result.Tables = append(result.Tables, name)
		} else if name := stmt.Table.Name.String(); name != "" {
			result.Tables = append(result.Tables, name)
		}
		if stmt.TableSpec != nil {
			for _, col := range stmt.TableSpec.Columns {
				result.Columns = append(result.Columns, col.Name.String())
			}
		}

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStatement, ast)
	}

	return result, nil
}

// extractTablesFromTableExprs extracts table names from a list of table expressions
func (p *SQLParser) extractTablesFromTableExprs(tableExprs sqlparser.TableExprs) []string {
	tables := make([]string, 0)
	for _, tableExpr := range tableExprs {
		switch table := tableExpr.(type) {
		case *sqlparser.AliasedTableExpr:
			if name, ok := table.Expr.(sqlparser.TableName); ok {
				tables = append(tables, name.Name.String())
			}
		case *sqlparser.JoinTableExpr:
			tables = append(tables, p.extractTablesFromTableExprs(sqlparser.TableExprs{table.LeftExpr, table.RightExpr})...)
		case *sqlparser.ParenTableExpr:
			tables = append(tables, p.extractTablesFromTableExprs(table.Exprs)...)
		}
	}
	return tables
}
