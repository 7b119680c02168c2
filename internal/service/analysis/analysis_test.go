package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sec-agent/internal/domain"
	"sec-agent/internal/testutil"
)

func TestAnalyze_Success(t *testing.T) {
	t.Parallel()
	mock := &testutil.MockCompleter{CompleteFn: testutil.Reply("```json\n" + `{
		"has_risk": true,
		"risk_level": "High",
		"risk_type": "brute force",
		"analysis": "30 failed SSH logins for root from 203.0.113.37",
		"recommendations": ["block 203.0.113.37", "disable root SSH login"]
	}` + "\n```")}
	a := New(mock, 0, testutil.DiscardLogger(), nil)

	v := a.Analyze(context.Background(), domain.Summary{Total: 1}, domain.RecordSet{{"event_type": "login_failure"}}, "last 8 hours")

	assert.True(t, v.HasRisk)
	assert.Equal(t, domain.RiskHigh, v.RiskLevel)
	require.NotNil(t, v.RiskType)
	assert.Equal(t, "brute force", *v.RiskType)
	assert.Len(t, v.Recommendations, 2)

	p := mock.Prompts()[0]
	assert.Contains(t, p, `"total": 1`)
	assert.Contains(t, p, `{"event_type":"login_failure"}`)
}

func TestAnalyze_NullRiskType(t *testing.T) {
	t.Parallel()
	mock := &testutil.MockCompleter{CompleteFn: testutil.Reply(`{"has_risk": false, "risk_level": "无", "risk_type": null, "analysis": "quiet", "recommendations": []}`)}

	v := New(mock, 0, nil, nil).Analyze(context.Background(), domain.Summary{}, nil, "r")

	assert.False(t, v.HasRisk)
	assert.Equal(t, domain.RiskNone, v.RiskLevel)
	assert.Nil(t, v.RiskType)
	assert.Equal(t, []string{}, v.Recommendations)
	assert.Contains(t, mock.Prompts()[0], NoLogData)
}

func TestAnalyze_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(context.Context, string) (string, error)
		wantErr string
	}{
		{"upstream failure", nil, "model unavailable"},
		{"prose", testutil.Reply("Everything looks fine."), "malformed"},
		{"missing has_risk", testutil.Reply(`{"risk_level":"low","analysis":"a","recommendations":[]}`), "missing has_risk"},
		{"unknown level", testutil.Reply(`{"has_risk":true,"risk_level":"spicy","analysis":"a","recommendations":[]}`), "unknown risk_level"},
		{"risky answer still ignored on failure", testutil.Reply(`{"has_risk":true}`), "missing risk_level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := New(&testutil.MockCompleter{CompleteFn: tc.fn}, 0, testutil.DiscardLogger(), nil)

			v := a.Analyze(context.Background(), domain.Summary{Total: 500}, nil, "r")

			assert.False(t, v.HasRisk)
			assert.Equal(t, domain.RiskUnknown, v.RiskLevel)
			assert.Nil(t, v.RiskType)
			assert.Contains(t, v.Analysis, tc.wantErr)
			assert.Equal(t, DefaultRecommendations, v.Recommendations)
		})
	}
}

func TestAnalyze_SampleCapped(t *testing.T) {
	t.Parallel()
	rs := make(domain.RecordSet, 120)
	for i := range rs {
		rs[i] = domain.Record{"id": i}
	}
	mock := &testutil.MockCompleter{}

	New(mock, 0, testutil.DiscardLogger(), nil).Analyze(context.Background(), domain.Summary{}, rs, "r")

	p := mock.Prompts()[0]
	assert.Equal(t, SampleSize, strings.Count(p, `{"id":`))
}

func TestDefaultVerdict_CopiesRecommendations(t *testing.T) {
	t.Parallel()
	v := DefaultVerdict(assert.AnError)
	v.Recommendations[0] = "changed"
	assert.Equal(t, "check system logs", DefaultRecommendations[0])
}
