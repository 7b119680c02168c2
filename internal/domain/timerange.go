package domain

import (
	"fmt"
	"time"
)

// TimeLayout is the wall-clock layout used for every time bound exchanged with
// the model and the store.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultWindow is the window substituted when a time expression cannot be resolved.
const DefaultWindow = 24 * time.Hour

// DefaultRangeDescription labels the substituted default window.
const DefaultRangeDescription = "default time range (last 24h)"

// TimeRange is an explicit pair of time bounds resolved from a natural-language
// expression. Error is set when the bounds are the default substitute.
type TimeRange struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Description    string `json:"description"`
	FormattedRange string `json:"formatted_range"`
	Error          string `json:"error,omitempty"`
}

// Bounds parses StartTime and EndTime using TimeLayout.
func (t TimeRange) Bounds() (start, end time.Time, err error) {
	start, err = time.ParseInLocation(TimeLayout, t.StartTime, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start_time %q: %w", t.StartTime, err)
	}
	end, err = time.ParseInLocation(TimeLayout, t.EndTime, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end_time %q: %w", t.EndTime, err)
	}
	return start, end, nil
}

// NewTimeRange builds a TimeRange covering [start, end].
func NewTimeRange(start, end time.Time, description string) TimeRange {
	s := start.Format(TimeLayout)
	e := end.Format(TimeLayout)
	return TimeRange{
		StartTime:      s,
		EndTime:        e,
		Description:    description,
		FormattedRange: FormatRange(s, e),
	}
}

// DefaultTimeRange returns the [now-24h, now] window carrying cause as its error.
func DefaultTimeRange(now time.Time, cause error) TimeRange {
	tr := NewTimeRange(now.Add(-DefaultWindow), now, DefaultRangeDescription)
	if cause != nil {
		tr.Error = cause.Error()
	} else {
		tr.Error = "time range could not be resolved"
	}
	return tr
}

// FormatRange renders a human readable "<start> to <end>" label.
func FormatRange(start, end string) string {
	return start + " to " + end
}
