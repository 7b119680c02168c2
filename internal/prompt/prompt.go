// Package prompt renders the text prompts sent to the language model by each
// pipeline stage.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"
)

// TimeRangeData feeds the time expression prompt.
type TimeRangeData struct {
	CurrentTime string
	Query       string
	Layout      string
}

// SQLTemplatedData feeds the fixed-shape SQL prompt.
type SQLTemplatedData struct {
	Table      string
	TimeColumn string
	StartTime  string
	EndTime    string
	Limit      int
}

// SQLFreeformData feeds the free-form SQL prompt.
type SQLFreeformData struct {
	Dialect    string
	Question   string
	Table      string
	Schema     string
	TimeColumn string
	StartTime  string
	EndTime    string
	Limit      int
}

// SummaryData feeds the log statistics prompt.
type SummaryData struct {
	TimeRange string
	Total     int
	Sampled   int
	LogsJSON  string
	TopN      int
}

// AnalysisData feeds the risk analysis prompt.
type AnalysisData struct {
	TimeRange   string
	SummaryJSON string
	SampleLogs  string
}

// AnswerData feeds the free-form answer prompt.
type AnswerData struct {
	Question string
	Query    string
	Result   string
}

var templates = template.Must(template.New("prompts").Parse(`
{{define "time_range"}}You resolve time expressions in security questions.
Extract the time range the user refers to (for example "the last 8 hours",
"yesterday", "from last Friday to this Monday") and convert it into explicit bounds.

Current time: {{.CurrentTime}}
User query: {{.Query}}

Return a JSON object with exactly these fields:
1. start_time: start of the range, format "{{.Layout}}"
2. end_time: end of the range, format "{{.Layout}}"
3. description: a short description of the range
4. formatted_range: a human readable rendering of the range

If the query has no explicit time range, use the 24 hours ending at the current time.
Return only the JSON object, with no other text.{{end}}

{{define "sql_templated"}}You are a SQL expert. Write one SQL query for these parameters:

Table: {{.Table}}
Time range: from {{.StartTime}} to {{.EndTime}}

Select every column of every record whose {{.TimeColumn}} falls in the range,
ordered by {{.TimeColumn}} descending, limited to {{.Limit}} rows.

Return only the SQL statement, with no explanation.{{end}}

{{define "sql_freeform"}}You are a {{.Dialect}} expert. Given a question, write one syntactically
correct {{.Dialect}} query that answers it. Unless the question asks for a specific
number of rows, limit the result to at most {{.Limit}} rows. Only use columns listed
in the schema below, and quote identifiers when needed.
{{if .StartTime}}The question refers to the period from {{.StartTime}} to {{.EndTime}} ({{.TimeColumn}} column).
{{end}}
Table {{.Table}} has these columns:
{{.Schema}}

Use this format:

Question: the question
SQLQuery: the query to run

Question: {{.Question}}
SQLQuery: {{end}}

{{define "summary"}}You are a security log processing expert. Analyse the JSON security
log records below and produce summary statistics.

Time range: {{.TimeRange}}
Total records: {{.Total}}{{if lt .Sampled .Total}} (a uniform sample of {{.Sampled}} is shown){{end}}
Records: {{.LogsJSON}}

Return a JSON object with exactly these fields:
- total: number of records
- event_type_distribution: object mapping each event type to its count
- unique_source_ip_count: number of distinct source IPs
- unique_dest_ip_count: number of distinct destination IPs
- top_source_ips: up to {{.TopN}} most active source IPs as [{"key": ip, "count": n}]
- top_event_types: up to {{.TopN}} most common event types as [{"key": type, "count": n}]

Return only the JSON object, with no other text.{{end}}

{{define "analysis"}}You are a network security expert analysing the security logs of a time
window to identify possible intrusion risk.

Time range: {{.TimeRange}}

Log statistics:
{{.SummaryJSON}}

Log sample:
{{.SampleLogs}}

Assess the security posture. In particular determine:
1. whether there is a possible intrusion risk
2. the risk level (none, low, medium, high)
3. the suspicious activity found, if any
4. the risk type, if any
5. a detailed analysis, describing the suspicious activity
6. recommended responses

Return a JSON object with exactly these fields:
{"has_risk": true/false, "risk_level": "none/low/medium/high", "risk_type": "..." or null, "analysis": "...", "recommendations": ["..."]}
Return only the JSON object, with no other text.{{end}}

{{define "answer"}}Answer the user's question from the information below.

Question: {{.Question}}
SQL query: {{.Query}}
Query result: {{.Result}}

The result is JSON: a list of records, each an object of field names and values.
Explain what the result means. If it is empty, explain possible reasons.
Point out patterns and trends in the data and give useful insight.{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

// TimeRange renders the time expression prompt.
func TimeRange(d TimeRangeData) (string, error) { return render("time_range", d) }

// SQLTemplated renders the fixed-shape SQL prompt.
func SQLTemplated(d SQLTemplatedData) (string, error) { return render("sql_templated", d) }

// SQLFreeform renders the free-form SQL prompt.
func SQLFreeform(d SQLFreeformData) (string, error) { return render("sql_freeform", d) }

// Summary renders the log statistics prompt.
func Summary(d SummaryData) (string, error) { return render("summary", d) }

// Analysis renders the risk analysis prompt.
func Analysis(d AnalysisData) (string, error) { return render("analysis", d) }

// Answer renders the free-form answer prompt.
func Answer(d AnswerData) (string, error) { return render("answer", d) }
