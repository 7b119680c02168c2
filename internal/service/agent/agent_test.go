package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sec-agent/internal/domain"
	"sec-agent/internal/metrics"
	"sec-agent/internal/service/analysis"
	"sec-agent/internal/service/sqlgen"
	"sec-agent/internal/service/summary"
	"sec-agent/internal/service/timeparse"
	"sec-agent/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 4, 12, 0, 0, 0, time.Local)

const schemaText = "id (INTEGER), timestamp (DATETIME), source_ip (TEXT), destination_ip (TEXT), event_type (TEXT)"

func newAgent(llm *testutil.MockCompleter, store *testutil.MockStore, strategy sqlgen.Strategy) *Agent {
	log := testutil.DiscardLogger()
	m := metrics.New()
	return New(
		timeparse.NewResolver(llm, 0, log, m),
		sqlgen.NewSynthesizer(llm, sqlgen.Options{Strategy: strategy, Table: "security_logs", TimeColumn: "timestamp"}, log, m),
		store,
		summary.New(llm, log, m),
		analysis.New(llm, 0, log, m),
		Options{Table: "security_logs", Now: func() time.Time { return fixedNow }},
		log,
		m,
	)
}

func schemaStore(execute func(context.Context, string) (string, error)) *testutil.MockStore {
	return &testutil.MockStore{
		ExecuteFn:     execute,
		TableSchemaFn: func(context.Context, string) (string, error) { return schemaText, nil },
	}
}

func TestRun_ModelUnavailable(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{}
	store := schemaStore(func(context.Context, string) (string, error) {
		return `[(1, '2025-03-04 11:00:00', '203.0.113.37', '10.0.0.5', 'login_failure')]`, nil
	})
	a := newAgent(llm, store, sqlgen.StrategyTemplated)

	res, env := a.Run(context.Background(), "are there attack risks in the last 8 hours")

	require.Nil(t, env)
	require.NotNil(t, res)
	assert.False(t, res.HasRisk)
	assert.Equal(t, domain.RiskUnknown, res.RiskLevel)
	assert.Equal(t, analysis.DefaultRecommendations, res.Recommendations)

	parts := strings.Split(res.TimeRange, " to ")
	require.Len(t, parts, 2)
	start, err := time.ParseInLocation(domain.TimeLayout, parts[0], time.Local)
	require.NoError(t, err)
	end, err := time.ParseInLocation(domain.TimeLayout, parts[1], time.Local)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	queries := store.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, sqlgen.Templated("security_logs", "timestamp", domain.DefaultTimeRange(fixedNow, nil)), queries[0])
	assert.Equal(t, 4, llm.Calls(), "one attempt per model stage")
}

func TestRun_HappyPath(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{CompleteFn: testutil.Route(
		"You resolve time expressions", `{"start_time":"2025-03-04 04:00:00","end_time":"2025-03-04 12:00:00","description":"last 8 hours","formatted_range":"2025-03-04 04:00:00 to 2025-03-04 12:00:00"}`,
		"You are a SQL expert", "```sql\nSELECT source_ip, event_type FROM security_logs WHERE timestamp >= '2025-03-04 04:00:00'\n```",
		"security log processing expert", `{"total":2,"event_type_distribution":{"login_failure":2},"unique_source_ip_count":1,"unique_dest_ip_count":0,"top_source_ips":[{"key":"203.0.113.37","count":2}],"top_event_types":[{"key":"login_failure","count":2}]}`,
		"network security expert", `{"has_risk":true,"risk_level":"高","risk_type":"brute force","analysis":"repeated failures","recommendations":["block the source"]}`,
	)}
	store := schemaStore(func(context.Context, string) (string, error) {
		return `[('203.0.113.37', 'login_failure'), ('203.0.113.37', 'login_failure')]`, nil
	})
	a := newAgent(llm, store, sqlgen.StrategyTemplated)

	res, env := a.Run(context.Background(), "any brute force in the last 8 hours?")

	require.Nil(t, env)
	assert.True(t, res.HasRisk)
	assert.Equal(t, domain.RiskHigh, res.RiskLevel)
	assert.Equal(t, "2025-03-04 04:00:00 to 2025-03-04 12:00:00", res.TimeRange)
	assert.Equal(t, fixedNow, res.Timestamp)
	assert.Equal(t, []string{"SELECT source_ip, event_type FROM security_logs WHERE timestamp >= '2025-03-04 04:00:00'"}, store.Queries())

	prompts := llm.Prompts()
	require.Len(t, prompts, 4)
	assert.Contains(t, prompts[3], `{"event_type":"login_failure","source_ip":"203.0.113.37"}`, "records named from the projection")
}

func TestRun_WildcardUsesSchemaColumns(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{CompleteFn: testutil.Route("network security expert", "not json")}
	store := schemaStore(func(context.Context, string) (string, error) {
		return `[(7, '2025-03-04 11:00:00', '1.2.3.4', '5.6.7.8', 'port_scan')]`, nil
	})
	a := newAgent(llm, store, sqlgen.StrategyTemplated)

	res, env := a.Run(context.Background(), "q")
	require.Nil(t, env)
	assert.Equal(t, domain.RiskUnknown, res.RiskLevel)

	prompts := llm.Prompts()
	assert.Contains(t, prompts[len(prompts)-1], `"event_type":"port_scan"`)
	assert.Contains(t, prompts[len(prompts)-1], `"source_ip":"1.2.3.4"`)
}

func TestRun_ExecutionFailure(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{}
	store := schemaStore(func(_ context.Context, q string) (string, error) {
		return "", &domain.ExecutionError{Query: q, Err: errors.New("no such column: event_time")}
	})
	a := newAgent(llm, store, sqlgen.StrategyTemplated)

	res, env := a.Run(context.Background(), "what happened yesterday")

	assert.Nil(t, res)
	require.NotNil(t, env)
	assert.Equal(t, "what happened yesterday", env.Query)
	assert.Contains(t, env.Statement, "SELECT * FROM security_logs")
	assert.Contains(t, env.Error, "no such column")
	assert.Equal(t, 2, llm.Calls(), "summary and analysis never run")
}

func TestRun_FreeformSchemaFailure(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{}
	store := &testutil.MockStore{}
	a := newAgent(llm, store, sqlgen.StrategyFreeform)

	res, env := a.Run(context.Background(), "q")

	assert.Nil(t, res)
	require.NotNil(t, env)
	assert.Contains(t, env.Error, "not found")
	assert.Empty(t, store.Queries())
}

func TestRun_TemplatedToleratesSchemaFailure(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{}
	store := &testutil.MockStore{ExecuteFn: func(context.Context, string) (string, error) { return "[(1, 2)]", nil }}
	a := newAgent(llm, store, sqlgen.StrategyTemplated)

	res, env := a.Run(context.Background(), "q")
	require.Nil(t, env)
	assert.NotNil(t, res)
}

func TestRun_PanicBecomesEnvelope(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{}
	store := schemaStore(func(context.Context, string) (string, error) { panic("driver exploded") })
	a := newAgent(llm, store, sqlgen.StrategyTemplated)

	var (
		res *domain.FinalResult
		env *domain.ErrorEnvelope
	)
	assert.NotPanics(t, func() { res, env = a.Run(context.Background(), "q") })
	assert.Nil(t, res)
	require.NotNil(t, env)
	assert.Contains(t, env.Error, "driver exploded")
	assert.Contains(t, env.Error, string(StateQuerySynthesized))
}

func TestRunWindow_SkipsResolution(t *testing.T) {
	t.Parallel()
	llm := &testutil.MockCompleter{}
	store := schemaStore(func(context.Context, string) (string, error) { return "[]", nil })
	a := newAgent(llm, store, sqlgen.StrategyTemplated)
	tr := domain.NewTimeRange(fixedNow.Add(-8*time.Hour), fixedNow, "last 8 hours")

	res, env := a.RunWindow(context.Background(), "report", tr)

	require.Nil(t, env)
	assert.Equal(t, tr.FormattedRange, res.TimeRange)
	assert.Equal(t, 3, llm.Calls(), "no time resolution call")
	for _, p := range llm.Prompts() {
		assert.NotContains(t, p, "You resolve time expressions")
	}
}
