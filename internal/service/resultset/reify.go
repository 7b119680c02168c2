package resultset

import (
	"fmt"
	"strings"

	"sec-agent/internal/domain"
)

// RawResultField holds the unparsed store output when it is not a row
// sequence.
const RawResultField = "result"

// Reify maps the store's row rendering onto records named by spec. It never
// fails: unreadable output becomes a single {"result": raw} record and
// column-count mismatches are resolved per row.
func Reify(raw string, spec domain.ColumnSpec) domain.RecordSet {
	if strings.TrimSpace(raw) == "" {
		return domain.RecordSet{}
	}

	v, err := ParseLiteral(raw)
	if err != nil {
		return domain.RecordSet{{RawResultField: raw}}
	}
	rows, ok := v.([]any)
	if !ok {
		return domain.RecordSet{{RawResultField: raw}}
	}

	out := make(domain.RecordSet, 0, len(rows))
	for _, row := range rows {
		cells, ok := row.([]any)
		if !ok {
			// Single-column projection rendered as a bare scalar.
			out = append(out, domain.Record{Resolve(spec, 1)[0]: row})
			continue
		}
		names := dedupe(Resolve(spec, len(cells)))
		rec := make(domain.Record, len(cells))
		for i, cell := range cells {
			rec[names[i]] = cell
		}
		out = append(out, rec)
	}
	return out
}

// dedupe renames repeated names so no cell overwrites another:
// [COUNT, COUNT] becomes [COUNT, COUNT_1].
func dedupe(names domain.ColumnSpec) domain.ColumnSpec {
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if seen[n] {
			n = fmt.Sprintf("%s_%d", n, i)
			names[i] = n
		}
		seen[n] = true
	}
	return names
}
