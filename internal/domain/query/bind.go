package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Placeholder is the bind-parameter syntax of a database driver.
type Placeholder int

const (
	// Question is used by MySQL and SQLite: "?".
	Question Placeholder = iota
	// Dollar is used by PostgreSQL: "$1", "$2", ...
	Dollar
)

// PlaceholderFor maps a database/sql driver name to its placeholder style.
func PlaceholderFor(driver string) Placeholder {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Dollar
	default:
		return Question
	}
}

// setDeclaration matches the "SET @StartDate = '...';" lines left over from
// multi-statement templates. Only the final SELECT is executed.
var setDeclaration = regexp.MustCompile(`(?im)^[ \t]*SET[ \t]+@(StartDate|EndDate|PreviousEndDate)[ \t]*=[^\n]*\n?`)

// StripDeclarations removes the date variable declarations from sql.
func StripDeclarations(sql string) string {
	return setDeclaration.ReplaceAllString(sql, "")
}

// Bind rewrites every recognised @Name/:Name token into a driver placeholder
// and returns the values in placeholder order. List values expand to one
// placeholder per element. Unknown tokens are left untouched, so a template
// using an unsupported token fails in the database, not here.
func Bind(sql string, p Params, style Placeholder) (string, []any) {
	var args []any
	out := rewriteTokens(StripDeclarations(sql), p, func(v any) string {
		if list, ok := v.([]string); ok {
			if len(list) == 0 {
				args = append(args, nil)
				return placeholder(style, len(args))
			}
			marks := make([]string, len(list))
			for i, item := range list {
				args = append(args, item)
				marks[i] = placeholder(style, len(args))
			}
			return strings.Join(marks, ", ")
		}
		args = append(args, v)
		return placeholder(style, len(args))
	})
	return out, args
}

// Inline renders the values as SQL literals. String values have single
// quotes doubled so they cannot terminate the literal; this is for display
// and offline rendering only, execution always goes through Bind.
func Inline(sql string, p Params) string {
	return rewriteTokens(StripDeclarations(sql), p, Literal)
}

func placeholder(style Placeholder, n int) string {
	if style == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Literal formats one value as a SQL literal.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(x)
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = quote(s)
		}
		return strings.Join(parts, ",")
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// rewriteTokens walks sql, skipping quoted strings, quoted identifiers and
// comments, and replaces each known token with emit(value).
func rewriteTokens(sql string, p Params, emit func(any) string) string {
	var b strings.Builder
	b.Grow(len(sql))

	n := len(sql)
	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			j := skipQuoted(sql, i, c)
			b.WriteString(sql[i:j])
			i = j
		case c == '-' && i+1 < n && sql[i+1] == '-', c == '#':
			j := strings.IndexByte(sql[i:], '\n')
			if j < 0 {
				j = n - i
			}
			b.WriteString(sql[i : i+j])
			i += j
		case c == '/' && i+1 < n && sql[i+1] == '*':
			j := strings.Index(sql[i+2:], "*/")
			end := n
			if j >= 0 {
				end = i + 2 + j + 2
			}
			b.WriteString(sql[i:end])
			i = end
		case (c == '@' || c == ':') && i+1 < n && isIdentStart(sql[i+1]) && !tokenBlocked(sql, i):
			j := i + 1
			for j < n && isIdentChar(sql[j]) {
				j++
			}
			if v, ok := p.Value(sql[i+1 : j]); ok {
				b.WriteString(emit(v))
			} else {
				b.WriteString(sql[i:j])
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// tokenBlocked rejects "::type" casts, "@@system" variables and tokens glued
// to a preceding identifier.
func tokenBlocked(sql string, i int) bool {
	if i == 0 {
		return false
	}
	prev := sql[i-1]
	return prev == ':' || prev == '@' || isIdentChar(prev)
}

// skipQuoted returns the index just past the literal starting at i. Doubled
// quotes and backslash escapes stay inside the literal.
func skipQuoted(sql string, i int, q byte) int {
	n := len(sql)
	j := i + 1
	for j < n {
		switch sql[j] {
		case '\\':
			j += 2
			continue
		case q:
			if j+1 < n && sql[j+1] == q {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return n
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
