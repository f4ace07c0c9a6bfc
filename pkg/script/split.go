// Package script splits demo SQL scripts into statements and reshapes
// multi-row INSERT statements into bounded batches.
//
// The functions here work on plain strings. They hold no state and are
// safe to call concurrently on independent inputs.
package script

import (
	"strings"
)

// ignoredPrefixes are statement prefixes that are never emitted.
var ignoredPrefixes = []string{
	"SET",
	"BEGIN TRANSACTION",
	"COMMIT",
	"--",
	"/*",
}

// Result holds the output of Parse
type Result struct {
	Statements []string
	// Skipped counts statements dropped by the ignored-prefix filter.
	Skipped int
	// Warnings describes content that could only be recovered on a best-effort basis.
	Warnings []string
}

// Split returns the statements of raw in source order.
func Split(raw string) []string {
	return Parse(raw).Statements
}

// Parse scans raw line by line and splits it into statements on semicolons
// found outside single-quoted strings. Comment lines are dropped, and
// statements spanning several lines are joined with a single space.
func Parse(raw string) *Result {
	result := &Result{Statements: make([]string, 0)}

	var current strings.Builder
	inComment := false
	inQuote := false

	emit := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt == "" {
			return
		}
		if hasIgnoredPrefix(stmt) {
			result.Skipped++
			return
		}
		result.Statements = append(result.Statements, stmt)
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)

		if inComment {
			if strings.Contains(line, "*/") {
				inComment = false
			}
			continue
		}

		// Comment and blank lines only count between statements; inside a
		// string literal every line is content.
		if !inQuote {
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			line = trimmed
			if strings.HasPrefix(trimmed, "/*") {
				end := strings.Index(trimmed, "*/")
				if end < 0 {
					inComment = true
					continue
				}
				line = trimmed[end+2:]
				if strings.TrimSpace(line) == "" {
					continue
				}
			}
		}

		for i := 0; i < len(line); i++ {
			c := line[i]
			if c == '\'' && (i == 0 || line[i-1] != '\\') {
				inQuote = !inQuote
				current.WriteByte(c)
				continue
			}
			if inQuote {
				current.WriteByte(c)
				continue
			}
			if c == ';' {
				emit()
				continue
			}
			if c == '-' && i+1 < len(line) && line[i+1] == '-' {
				// trailing comment
				break
			}
			if c == '/' && i+1 < len(line) && line[i+1] == '*' {
				end := strings.Index(line[i+2:], "*/")
				if end < 0 {
					inComment = true
					break
				}
				i += end + 3
				current.WriteByte(' ')
				continue
			}
			current.WriteByte(c)
		}

		if current.Len() > 0 {
			current.WriteByte(' ')
		}
	}

	if inComment {
		result.Warnings = append(result.Warnings, "unterminated block comment at end of script")
	}
	if inQuote {
		result.Warnings = append(result.Warnings, "unterminated string literal at end of script")
	}
	emit()

	return result
}

func hasIgnoredPrefix(stmt string) bool {
	upper := strings.ToUpper(stmt)
	for _, prefix := range ignoredPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
