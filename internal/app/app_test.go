package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sec-agent/internal/config"
	"sec-agent/internal/domain"
	"sec-agent/internal/llm"
	"sec-agent/internal/metrics"
	"sec-agent/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "security_logs.db")
	return cfg
}

func openTestApp(t *testing.T, cfg *config.Config, completer domain.Completer) *App {
	t.Helper()
	ctx := context.Background()
	database, err := OpenDatabase(ctx, cfg, testutil.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	a, err := New(Deps{
		Cfg:       cfg,
		ReadDB:    database.ReadDB,
		Logger:    testutil.DiscardLogger(),
		Metrics:   metrics.New(),
		Completer: completer,
	})
	require.NoError(t, err)
	return a
}

func TestNewCompleter(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	assert.IsType(t, llm.Disabled{}, NewCompleter(cfg, nil))

	cfg.LLM.APIKey = "sk-test"
	assert.IsType(t, &llm.Client{}, NewCompleter(cfg, testutil.DiscardLogger()))
}

func TestOpenDatabase_SeedsOnce(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := OpenDatabase(ctx, cfg, testutil.DiscardLogger())
	require.NoError(t, err)
	var n int
	require.NoError(t, first.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_logs").Scan(&n))
	assert.Equal(t, 1085, n)
	require.NoError(t, first.Close())

	second, err := OpenDatabase(ctx, cfg, testutil.DiscardLogger())
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck
	require.NoError(t, second.ReadDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_logs").Scan(&n))
	assert.Equal(t, 1085, n)
}

func TestNew_InvalidStrategy(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Agent.SQLStrategy = "magic"
	_, err := New(Deps{Cfg: cfg, Logger: testutil.DiscardLogger()})
	assert.Error(t, err)
}

// With the model unavailable every stage falls back, which still yields a
// complete result from the seeded data.
func TestAgent_EndToEndWithoutModel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	a := openTestApp(t, cfg, llm.Disabled{})

	result, env := a.Agent.Run(context.Background(), "were there attacks in the last 8 hours?")

	require.Nil(t, env)
	assert.False(t, result.HasRisk)
	assert.Equal(t, domain.RiskUnknown, result.RiskLevel)
	assert.Contains(t, result.TimeRange, " to ")
}

func TestAgent_EndToEndWithModel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	now := time.Now()
	mock := &testutil.MockCompleter{CompleteFn: testutil.Route(
		"You resolve time expressions", `{"start_time":"`+now.Add(-8*time.Hour).Format(domain.TimeLayout)+`","end_time":"`+now.Format(domain.TimeLayout)+`","description":"last 8 hours","formatted_range":"last 8 hours"}`,
		"You are a SQL expert", "```sql\nSELECT source_ip, event_type FROM security_logs WHERE source_ip = '203.0.113.37'\n```",
		"You are a security log processing expert", `{"total":30,"event_type_distribution":{"login_failure":30},"unique_source_ip_count":1,"unique_dest_ip_count":1,"top_source_ips":[{"key":"203.0.113.37","count":30}],"top_event_types":[{"key":"login_failure","count":30}]}`,
		"You are a network security expert", `{"has_risk":true,"risk_level":"high","risk_type":"brute force","analysis":"30 failed root logins.","recommendations":["block 203.0.113.37"]}`,
	)}
	a := openTestApp(t, cfg, mock)

	result, env := a.Agent.Run(context.Background(), "any brute force in the last 8 hours?")

	require.Nil(t, env)
	assert.True(t, result.HasRisk)
	assert.Equal(t, domain.RiskHigh, result.RiskLevel)
	require.NotNil(t, result.RiskType)
	assert.Equal(t, "brute force", *result.RiskType)

	prompts := mock.Prompts()
	require.Len(t, prompts, 4)
	assert.Contains(t, prompts[2], "Total records: 30")
}

func TestRouter_Report(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	a := openTestApp(t, cfg, llm.Disabled{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(a.Router(ctx))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/security/scheduled_report/login_failure?hours=8") //nolint:gosec,noctx // test server URL
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))
}
