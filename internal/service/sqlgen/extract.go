package sqlgen

import (
	"regexp"
	"strings"
)

var (
	// ```sql ... ``` with the tag matched case-insensitively. Only blanks
	// separate the tag from the statement, which may start on the tag line.
	sqlFence = regexp.MustCompile("(?is)```[ \\t]*sql\\b[ \\t]*\\n?(.*?)```")
	// Any fenced block; a tag is only dropped when it sits on its own line.
	anyFence = regexp.MustCompile("(?s)```(?:[ \\t]*[A-Za-z0-9_-]+[ \\t]*\\n|[ \\t]*\\n?)(.*?)```")
	// SQLQuery: or Query: at the start of a line, so a literal such as
	// '%query: x%' inside an extracted statement is never a marker.
	queryMarker = regexp.MustCompile(`(?im)^[ \t]*(?:SQLQuery|Query)[ \t]*:`)
	// Trailing sections some models append after the statement.
	trailerMarker = regexp.MustCompile(`(?i)\n\s*(?:SQLResult|Answer|Question)\s*:`)
)

// ExtractQuery recovers the statement from a free-form model answer. The
// first matching rule wins:
//
//  1. a fenced block tagged sql
//  2. the text after a "SQLQuery:" or "Query:" marker, preferring a fenced
//     block inside it
//  3. the trimmed input
//
// ExtractQuery is pure and idempotent.
func ExtractQuery(raw string) string {
	if m := sqlFence.FindStringSubmatch(raw); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}

	if loc := queryMarker.FindStringIndex(raw); loc != nil {
		rest := raw[loc[1]:]
		if m := anyFence.FindStringSubmatch(rest); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				return s
			}
		}
		if t := trailerMarker.FindStringIndex(rest); t != nil {
			rest = rest[:t[0]]
		}
		if s := strings.TrimSpace(rest); s != "" {
			return s
		}
	}

	return strings.TrimSpace(raw)
}
