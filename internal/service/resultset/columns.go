// Package resultset infers result column names and turns the store's raw row
// rendering into named records.
package resultset

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"sec-agent/internal/domain"
)

// ColumnsFromQuery infers the projected column names of a SELECT statement.
// A wildcard projection, or a query it cannot read, yields an empty spec.
func ColumnsFromQuery(query string) domain.ColumnSpec {
	items := projection(query)
	if items == nil {
		return domain.ColumnSpec{}
	}
	cols := make(domain.ColumnSpec, 0, len(items))
	for _, item := range items {
		item = stripDistinct(strings.TrimSpace(item))
		if item == "*" || strings.HasSuffix(item, ".*") {
			return domain.ColumnSpec{}
		}
		if name := columnName(item); name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// schemaColumn matches "name (" the way the store renders a column.
var schemaColumn = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s+\(`)

// ColumnsFromSchema collects every "identifier (" occurrence, line by line.
// It reads the "name (TYPE), name (TYPE)" text returned by TableSchema.
func ColumnsFromSchema(schema string) domain.ColumnSpec {
	cols := domain.ColumnSpec{}
	for _, line := range strings.Split(schema, "\n") {
		if !strings.Contains(line, "(") {
			continue
		}
		for _, m := range schemaColumn.FindAllStringSubmatch(line, -1) {
			cols = append(cols, m[1])
		}
	}
	return cols
}

// Resolve fits spec to a row of width cells: missing names become
// column_<i>, surplus names are dropped.
func Resolve(spec domain.ColumnSpec, width int) domain.ColumnSpec {
	if width < 0 {
		width = 0
	}
	out := make(domain.ColumnSpec, width)
	for i := range out {
		if i < len(spec) && spec[i] != "" {
			out[i] = spec[i]
		} else {
			out[i] = fmt.Sprintf("column_%d", i)
		}
	}
	return out
}

// projection returns the top-level comma separated items between the main
// SELECT and its FROM, or nil when there is no SELECT. After a leading WITH
// the main SELECT is the first one outside the CTE bodies.
func projection(query string) []string {
	start := mainSelect(query)
	if start < 0 {
		return nil
	}
	body := query[start+len("select"):]

	var (
		items []string
		depth int
		quote rune
		last  int
	)
	for i, r := range body {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '[':
			quote = ']'
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && r == ',':
			items = append(items, body[last:i])
			last = i + 1
		case depth == 0 && (r == 'f' || r == 'F') && isKeyword(body, i, "from"):
			return append(items, body[last:i])
		case depth == 0 && r == ';':
			return append(items, body[last:i])
		}
	}
	return append(items, body[last:])
}

func mainSelect(query string) int {
	lead := len(query) - len(strings.TrimLeft(query, " \t\r\n("))
	if isKeyword(query, lead, "with") {
		return topLevelKeyword(query, "select", lead+len("with"))
	}
	return keywordAt(query, "select", 0)
}

// topLevelKeyword is keywordAt restricted to text outside parentheses opened
// at or after from.
func topLevelKeyword(s, kw string, from int) int {
	var (
		quote rune
		depth int
	)
	for i, r := range s {
		if i < from {
			continue
		}
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && isKeyword(s, i, kw):
			return i
		}
	}
	return -1
}

// keywordAt finds the first whole-word, unquoted, case-insensitive kw in s at
// or after from.
func keywordAt(s, kw string, from int) int {
	var quote rune
	for i, r := range s {
		if i < from {
			continue
		}
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case isKeyword(s, i, kw):
			return i
		}
	}
	return -1
}

func isKeyword(s string, i int, kw string) bool {
	if len(s)-i < len(kw) || !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	if j := i + len(kw); j < len(s) && isIdentByte(s[j]) {
		return false
	}
	return true
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func stripDistinct(item string) string {
	for _, kw := range []string{"distinct", "all"} {
		if isKeyword(item, 0, kw) {
			return strings.TrimSpace(item[len(kw):])
		}
	}
	return item
}

// columnName derives the result name of one projection item.
func columnName(item string) string {
	if alias := aliasOf(item); alias != "" {
		return unquote(alias)
	}
	switch open := strings.IndexByte(item, '('); {
	case open > 0:
		if fn := lastIdent(strings.TrimSpace(item[:open])); fn != "" {
			return fn
		}
	case open == 0 && strings.HasSuffix(item, ")"):
		// Parenthesised expression: use what it wraps.
		return columnName(strings.TrimSpace(item[1 : len(item)-1]))
	}
	return unqualify(item)
}

// aliasOf returns the alias of item: the text after the last top-level AS,
// or a trailing bare identifier following a closing token.
func aliasOf(item string) string {
	var (
		depth int
		quote rune
		asAt  = -1
	)
	for i, r := range item {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (r == 'a' || r == 'A') && isKeyword(item, i, "as"):
			asAt = i
		}
	}
	if asAt >= 0 {
		return strings.TrimSpace(item[asAt+2:])
	}

	// Implicit alias: "count(*) total", "t.src_ip src".
	cut := strings.LastIndexFunc(item, unicode.IsSpace)
	if cut <= 0 {
		return ""
	}
	head := strings.TrimSpace(item[:cut])
	tail := strings.TrimSpace(item[cut+1:])
	if head == "" || !isPlainIdent(unquote(tail)) || isReservedTail(tail) {
		return ""
	}
	switch head[len(head)-1] {
	case ')', '`', '"', ']':
	default:
		if !isIdentByte(head[len(head)-1]) || strings.ContainsAny(head, " \t\n") {
			return ""
		}
	}
	return tail
}

func isReservedTail(w string) bool {
	switch strings.ToLower(w) {
	case "end", "desc", "asc", "null", "and", "or", "not", "else", "then":
		return true
	}
	return false
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

// lastIdent returns the trailing identifier of s with qualifiers removed.
func lastIdent(s string) string {
	s = unqualify(s)
	if isPlainIdent(s) {
		return s
	}
	return ""
}

// unqualify strips table qualifiers and identifier quotes.
func unqualify(s string) string {
	s = strings.TrimSpace(s)
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 && dot < len(s)-1 && !isNumeric(s) {
		s = s[dot+1:]
	}
	return unquote(s)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '\'' && s[len(s)-1] == '\'',
			s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return strings.Trim(s, "`\"'")
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+') {
			return false
		}
	}
	return s != ""
}
