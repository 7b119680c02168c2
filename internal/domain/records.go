package domain

// QueryText is a single statement believed executable by the target store.
type QueryText = string

// ColumnSpec is an ordered list of column names, one per positional slot in a
// result row. It is inferred and may not match the real row width.
type ColumnSpec []string

// Record is one reified result row keyed by column name.
type Record map[string]any

// RecordSet is an ordered sequence of records. An empty set means no
// matching events and is not an error.
type RecordSet []Record

// Head returns at most the first n records.
func (rs RecordSet) Head(n int) RecordSet {
	if n < 0 {
		n = 0
	}
	if len(rs) <= n {
		return rs
	}
	return rs[:n]
}

// Well-known security log fields used by the statistics fallback.
const (
	FieldEventType     = "event_type"
	FieldSourceIP      = "source_ip"
	FieldDestinationIP = "destination_ip"
)
