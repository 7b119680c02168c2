package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange(t *testing.T) {
	out, err := TimeRange(TimeRangeData{CurrentTime: "2025-03-04 12:00:00", Query: "last 8 hours", Layout: "YYYY-MM-DD HH:MM:SS"})
	require.NoError(t, err)
	assert.Contains(t, out, "Current time: 2025-03-04 12:00:00")
	assert.Contains(t, out, "User query: last 8 hours")
	assert.Contains(t, out, "start_time")
	assert.Contains(t, out, "formatted_range")
}

func TestSQLPrompts(t *testing.T) {
	out, err := SQLTemplated(SQLTemplatedData{Table: "security_logs", TimeColumn: "timestamp", StartTime: "a", EndTime: "b", Limit: 10000})
	require.NoError(t, err)
	assert.Contains(t, out, "Table: security_logs")
	assert.Contains(t, out, "limited to 10000 rows")

	out, err = SQLFreeform(SQLFreeformData{Dialect: "SQLite", Question: "who scanned ports?", Table: "security_logs", Schema: "id (INTEGER)", Limit: 100})
	require.NoError(t, err)
	assert.Contains(t, out, "Question: who scanned ports?")
	assert.Contains(t, out, "id (INTEGER)")
	assert.NotContains(t, out, "refers to the period", "period line only rendered with bounds")
}

func TestSummaryPrompt_SampleNote(t *testing.T) {
	out, err := Summary(SummaryData{TimeRange: "r", Total: 5000, Sampled: 1000, LogsJSON: "[]", TopN: 5})
	require.NoError(t, err)
	assert.Contains(t, out, "a uniform sample of 1000")

	out, err = Summary(SummaryData{TimeRange: "r", Total: 3, Sampled: 3, LogsJSON: "[]", TopN: 5})
	require.NoError(t, err)
	assert.NotContains(t, out, "uniform sample")
}

func TestAnalysisAndAnswer(t *testing.T) {
	out, err := Analysis(AnalysisData{TimeRange: "r", SummaryJSON: "{}", SampleLogs: "no log data"})
	require.NoError(t, err)
	assert.Contains(t, out, `"has_risk"`)

	out, err = Answer(AnswerData{Question: "q", Query: "SELECT 1", Result: "[]"})
	require.NoError(t, err)
	assert.Contains(t, out, "SQL query: SELECT 1")
}
