package script

import (
	"strings"
)

const valuesKeyword = "VALUES"

// Values is the VALUES clause of an INSERT statement broken into tuples
type Values struct {
	// Prefix is the statement text up to and including the VALUES keyword.
	Prefix string
	// Tuples are the top-level parenthesized rows, in source order.
	Tuples []string
	// Suffix is any clause following the last tuple, such as ON CONFLICT.
	Suffix string
	// Residual holds trailing content that could not be scanned because a
	// quote or parenthesis was left open, or a parenthesis closed nothing.
	Residual string
}

// CountRows estimates the number of value tuples in an INSERT statement:
// the complete tuples of the VALUES list, plus one for a tuple left open at
// the end. Parentheses in a clause following the list are not counted.
// Statements without a VALUES keyword count as one row.
func CountRows(stmt string) int {
	idx := indexKeyword(stmt, valuesKeyword)
	if idx < 0 {
		return 1
	}

	values := &Values{}
	values.scan(stmt[idx+len(valuesKeyword):])
	count := len(values.Tuples)
	if strings.HasPrefix(values.Residual, "(") {
		count++
	}
	if count < 1 {
		return 1
	}
	return count
}

// ParseValues splits an INSERT statement into its prefix and value tuples.
// It returns false when stmt is not an INSERT or has no VALUES keyword.
func ParseValues(stmt string) (*Values, bool) {
	if Classify(stmt) != KindInsert {
		return nil, false
	}
	idx := indexKeyword(stmt, valuesKeyword)
	if idx < 0 {
		return nil, false
	}

	cut := idx + len(valuesKeyword)
	values := &Values{
		Prefix: strings.TrimSpace(stmt[:cut]),
		Tuples: make([]string, 0),
	}
	values.scan(stmt[cut:])
	return values, true
}

// scan collects the tuples of rest, the text following the VALUES keyword
func (v *Values) scan(rest string) {
	depth := 0
	inQuote := false
	start := -1
	last := 0 // end of the last recovered tuple

	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '\'' && (i == 0 || rest[i-1] != '\\') {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}

		switch c {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			if depth == 0 {
				// A parenthesis closing nothing leaves the list unreadable.
				v.Residual = strings.TrimSpace(rest[i:])
				return
			}
			depth--
			if depth == 0 {
				v.Tuples = append(v.Tuples, strings.TrimRight(rest[start:i+1], ","))
				last = i + 1
				start = -1
				i = skipSeparators(rest, i+1) - 1
			}
		default:
			if depth == 0 && !isSeparator(c) {
				// Anything but a separator between tuples ends the list.
				v.Suffix = strings.TrimSpace(rest[i:])
				return
			}
		}
	}

	if inQuote || depth > 0 {
		v.Residual = strings.TrimLeft(strings.TrimSpace(rest[last:]), ", \t\r\n")
	}
}

// SplitBatch splits an INSERT statement into statements carrying at most n
// tuples each. Concatenating the tuples of every batch, in order, gives back
// the tuples of stmt. Statements that are not multi-row INSERTs, or whose
// VALUES clause cannot be fully scanned, are returned unchanged.
func SplitBatch(stmt string, n int) []string {
	values, ok := ParseValues(stmt)
	if !ok || n <= 0 || values.Residual != "" || len(values.Tuples) == 0 {
		return []string{stmt}
	}

	batches := make([]string, 0, (len(values.Tuples)+n-1)/n)
	for i := 0; i < len(values.Tuples); i += n {
		end := i + n
		if end > len(values.Tuples) {
			end = len(values.Tuples)
		}
		batches = append(batches, values.Build(values.Tuples[i:end]))
	}
	return batches
}

// Build assembles an INSERT statement from the prefix, the given tuples and
// the suffix.
func (v *Values) Build(tuples []string) string {
	var b strings.Builder
	b.WriteString(v.Prefix)
	b.WriteByte(' ')
	b.WriteString(strings.Join(tuples, ", "))
	if v.Suffix != "" {
		b.WriteByte(' ')
		b.WriteString(v.Suffix)
	}
	return b.String()
}

func isSeparator(c byte) bool {
	return c == ',' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func skipSeparators(s string, i int) int {
	for i < len(s) && isSeparator(s[i]) {
		i++
	}
	return i
}

// indexKeyword returns the byte offset of the first occurrence of keyword
// that is outside string literals and not part of a longer identifier.
func indexKeyword(s, keyword string) int {
	inQuote := false
	for i := 0; i+len(keyword) <= len(s); i++ {
		c := s[i]
		if c == '\'' && (i == 0 || s[i-1] != '\\') {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		if !strings.EqualFold(s[i:i+len(keyword)], keyword) {
			continue
		}
		if i > 0 && isIdentByte(s[i-1]) {
			continue
		}
		if end := i + len(keyword); end < len(s) && isIdentByte(s[end]) {
			continue
		}
		return i
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
