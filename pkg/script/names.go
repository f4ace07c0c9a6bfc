package script

import (
	"strings"
)

// ObjectName returns the name of the table, zone or index a statement
// targets, or "" when it cannot be determined. Identifier quotes are removed.
func ObjectName(stmt string) string {
	words := tokens(stmt, 8)
	if len(words) == 0 {
		return ""
	}

	pos := 0
	next := func() string {
		if pos >= len(words) {
			return ""
		}
		w := words[pos]
		pos++
		return w
	}
	accept := func(keywords ...string) bool {
		start := pos
		for _, kw := range keywords {
			if !strings.EqualFold(next(), kw) {
				pos = start
				return false
			}
		}
		return true
	}

	switch strings.ToUpper(next()) {
	case "INSERT":
		accept("INTO")
	case "DELETE":
		accept("FROM")
	case "UPDATE":
	case "CREATE":
		accept("UNIQUE")
		switch strings.ToUpper(next()) {
		case "TABLE", "ZONE", "INDEX":
			accept("IF", "NOT", "EXISTS")
		default:
			return ""
		}
	case "DROP":
		switch strings.ToUpper(next()) {
		case "TABLE", "ZONE", "INDEX":
			accept("IF", "EXISTS")
		default:
			return ""
		}
	default:
		return ""
	}

	return unquoteIdent(next())
}

// tokens returns up to limit leading words of stmt. A word ends at
// whitespace or at a character that cannot be part of a (possibly
// quoted or schema-qualified) identifier.
func tokens(stmt string, limit int) []string {
	words := make([]string, 0, limit)
	i := 0
	for i < len(stmt) && len(words) < limit {
		c := stmt[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '`':
			end := strings.IndexByte(stmt[i+1:], c)
			if end < 0 {
				words = append(words, stmt[i:])
				return words
			}
			j := i + end + 2
			for j < len(stmt) && (isIdentByte(stmt[j]) || stmt[j] == '.') {
				j++
			}
			words = append(words, stmt[i:j])
			i = j
		case isIdentByte(c):
			j := i
			for j < len(stmt) && (isIdentByte(stmt[j]) || stmt[j] == '.' || stmt[j] == '"' || stmt[j] == '`') {
				j++
			}
			words = append(words, stmt[i:j])
			i = j
		default:
			// Punctuation such as "(" ends the identifier run.
			words = append(words, string(c))
			i++
		}
	}
	return words
}

func unquoteIdent(word string) string {
	if word == "" || !(isIdentByte(word[0]) || word[0] == '"' || word[0] == '`') {
		return ""
	}
	return strings.NewReplacer(`"`, "", "`", "").Replace(word)
}
