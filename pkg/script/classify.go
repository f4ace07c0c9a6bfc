package script

import (
	"strings"
)

// Kind represents the category of a SQL statement
type Kind int

const (
	KindOther Kind = iota
	KindCreateZone
	KindCreateTable
	KindCreateIndex
	KindDrop
	KindInsert
	KindUpdate
	KindDelete
	KindSelect
)

// String implements the Stringer interface for Kind
func (k Kind) String() string {
	switch k {
	case KindCreateZone:
		return "CREATE ZONE"
	case KindCreateTable:
		return "CREATE TABLE"
	case KindCreateIndex:
		return "CREATE INDEX"
	case KindDrop:
		return "DROP"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindSelect:
		return "SELECT"
	default:
		return "OTHER"
	}
}

// IsSchema reports whether statements of this kind run in the schema phase.
func (k Kind) IsSchema() bool {
	switch k {
	case KindCreateZone, KindCreateTable, KindCreateIndex, KindDrop:
		return true
	default:
		return false
	}
}

// Order matters: the first matching prefix wins.
var kindPrefixes = []struct {
	prefix string
	kind   Kind
}{
	{"CREATE ZONE", KindCreateZone},
	{"CREATE TABLE", KindCreateTable},
	{"CREATE INDEX", KindCreateIndex},
	{"CREATE UNIQUE INDEX", KindCreateIndex},
	{"DROP TABLE", KindDrop},
	{"DROP ZONE", KindDrop},
	{"DROP INDEX", KindDrop},
	{"INSERT", KindInsert},
	{"UPDATE", KindUpdate},
	{"DELETE", KindDelete},
	{"SELECT", KindSelect},
}

// Classify determines the kind of stmt from its leading keywords.
// Matching is case-insensitive and tolerates any run of whitespace
// between keywords.
func Classify(stmt string) Kind {
	head := normalizeHead(stmt)
	for _, kp := range kindPrefixes {
		if strings.HasPrefix(head, kp.prefix) {
			return kp.kind
		}
	}
	return KindOther
}

// Label returns a diagnostic type string for stmt. DROP statements are
// reported by object type even though they share KindDrop.
func Label(stmt string) string {
	kind := Classify(stmt)
	if kind != KindDrop {
		return kind.String()
	}
	head := normalizeHead(stmt)
	for _, label := range []string{"DROP TABLE", "DROP ZONE", "DROP INDEX"} {
		if strings.HasPrefix(head, label) {
			return label
		}
	}
	return kind.String()
}

// Phases partitions stmts into schema and data statements. Relative order
// within each phase matches the input order.
func Phases(stmts []string) (schema, data []string) {
	schema = make([]string, 0)
	data = make([]string, 0)
	for _, stmt := range stmts {
		if Classify(stmt).IsSchema() {
			schema = append(schema, stmt)
		} else {
			data = append(data, stmt)
		}
	}
	return schema, data
}

// normalizeHead uppercases the first few words of stmt and joins them
// with single spaces.
func normalizeHead(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.ToUpper(strings.Join(fields, " "))
}
