package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeRange(t *testing.T) {
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.Local)

	tr := DefaultTimeRange(now, errors.New("llm unavailable"))

	assert.Equal(t, "2025-03-03 12:00:00", tr.StartTime)
	assert.Equal(t, "2025-03-04 12:00:00", tr.EndTime)
	assert.Equal(t, DefaultRangeDescription, tr.Description)
	assert.Equal(t, "2025-03-03 12:00:00 to 2025-03-04 12:00:00", tr.FormattedRange)
	assert.Equal(t, "llm unavailable", tr.Error)

	start, end, err := tr.Bounds()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestDefaultTimeRange_NilCause(t *testing.T) {
	tr := DefaultTimeRange(time.Now(), nil)
	assert.NotEmpty(t, tr.Error)
}

func TestTimeRange_BoundsInvalid(t *testing.T) {
	_, _, err := TimeRange{StartTime: "yesterday", EndTime: "2025-03-04 12:00:00"}.Bounds()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_time")

	_, _, err = TimeRange{StartTime: "2025-03-04 12:00:00", EndTime: ""}.Bounds()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_time")
}

func TestRecordSet_Head(t *testing.T) {
	rs := RecordSet{{"a": 1}, {"a": 2}, {"a": 3}}

	assert.Len(t, rs.Head(2), 2)
	assert.Len(t, rs.Head(10), 3)
	assert.Empty(t, rs.Head(-1))
	assert.Empty(t, RecordSet(nil).Head(50))
}

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   RiskLevel
		wantOK bool
	}{
		{"high", RiskHigh, true},
		{" High ", RiskHigh, true},
		{"高", RiskHigh, true},
		{"medium", RiskMedium, true},
		{"中", RiskMedium, true},
		{"low", RiskLow, true},
		{"none", RiskNone, true},
		{"无", RiskNone, true},
		{"unknown", RiskUnknown, true},
		{"catastrophic", RiskUnknown, false},
		{"", RiskUnknown, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseRiskLevel(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}
