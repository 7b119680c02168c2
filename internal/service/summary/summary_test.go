package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sec-agent/internal/domain"
	"sec-agent/internal/testutil"
)

func records(eventTypes ...string) domain.RecordSet {
	rs := make(domain.RecordSet, 0, len(eventTypes))
	for i, et := range eventTypes {
		rs = append(rs, domain.Record{
			"event_type":     et,
			"source_ip":      fmt.Sprintf("10.0.0.%d", i%2),
			"destination_ip": "192.168.1.1",
		})
	}
	return rs
}

func TestFallback(t *testing.T) {
	t.Parallel()

	s := Fallback(records("A", "A", "B"))

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, s.EventTypeDistribution)
	assert.Equal(t, 2, s.UniqueSourceIPCount)
	assert.Equal(t, 1, s.UniqueDestIPCount)
	assert.Equal(t, []domain.KeyCount{{Key: "A", Count: 2}, {Key: "B", Count: 1}}, s.TopEventTypes)
	assert.Equal(t, []domain.KeyCount{{Key: "10.0.0.0", Count: 2}, {Key: "10.0.0.1", Count: 1}}, s.TopSourceIPs)
}

func TestFallback_MissingFields(t *testing.T) {
	t.Parallel()

	s := Fallback(domain.RecordSet{{"result": "ERROR: timeout"}, {"event_type": nil}})

	assert.Equal(t, 2, s.Total)
	assert.Empty(t, s.EventTypeDistribution)
	assert.NotNil(t, s.EventTypeDistribution)
	assert.Zero(t, s.UniqueSourceIPCount)
	assert.Zero(t, s.UniqueDestIPCount)
	assert.Empty(t, s.TopSourceIPs)
}

func TestTop_OrderAndLimit(t *testing.T) {
	t.Parallel()

	got := Top(map[string]int{"f": 1, "e": 3, "d": 3, "c": 2, "b": 5, "a": 1}, 5)
	assert.Equal(t, []domain.KeyCount{
		{Key: "b", Count: 5},
		{Key: "d", Count: 3},
		{Key: "e", Count: 3},
		{Key: "c", Count: 2},
		{Key: "a", Count: 1},
	}, got)
}

func TestSummarize_ModelAnswer(t *testing.T) {
	t.Parallel()
	mock := &testutil.MockCompleter{CompleteFn: testutil.Reply(`{
		"total": 999,
		"event_type_distribution": {"A": 2, "B": 1},
		"unique_source_ip_count": 2,
		"unique_dest_ip_count": 1,
		"top_source_ips": [{"key": "10.0.0.0", "count": 2}],
		"top_event_types": [{"key":"A","count":2},{"key":"B","count":1},{"key":"C","count":1},{"key":"D","count":1},{"key":"E","count":1},{"key":"F","count":1}]
	}`)}
	z := New(mock, testutil.DiscardLogger(), nil)

	s := z.Summarize(context.Background(), records("A", "A", "B"), "last 8 hours")

	assert.Empty(t, s.Error)
	assert.Equal(t, 3, s.Total, "total is the true count")
	assert.Len(t, s.TopEventTypes, domain.TopN)
	assert.Contains(t, mock.Prompts()[0], "Time range: last 8 hours")
}

func TestSummarize_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(context.Context, string) (string, error)
		wantErr string
	}{
		{"upstream failure", nil, "model unavailable"},
		{"not json", testutil.Reply("lots of logins"), "malformed"},
		{"missing fields", testutil.Reply(`{"total": 3}`), "missing event_type_distribution"},
		{"wrong types", testutil.Reply(`{"total": "three"}`), "malformed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			z := New(&testutil.MockCompleter{CompleteFn: tc.fn}, testutil.DiscardLogger(), nil)

			s := z.Summarize(context.Background(), records("A", "A", "B"), "r")

			assert.Contains(t, s.Error, tc.wantErr)
			assert.Equal(t, 3, s.Total)
			assert.Equal(t, map[string]int{"A": 2, "B": 1}, s.EventTypeDistribution)
		})
	}
}

func TestSummarize_SamplesLargeSets(t *testing.T) {
	t.Parallel()

	big := make([]string, 2500)
	for i := range big {
		big[i] = "E"
	}
	var sampledWith int
	sampler := func(rs domain.RecordSet, k int) domain.RecordSet {
		sampledWith = k
		return rs[:k]
	}
	mock := &testutil.MockCompleter{}
	z := New(mock, testutil.DiscardLogger(), nil, WithSampler(sampler))

	s := z.Summarize(context.Background(), records(big...), "r")

	assert.Equal(t, MaxSample, sampledWith)
	assert.Equal(t, 2500, s.Total)
	require.Equal(t, 1, mock.Calls())
	p := mock.Prompts()[0]
	assert.Contains(t, p, "Total records: 2500 (a uniform sample of 1000 is shown)")

	start := strings.Index(p, "Records: ") + len("Records: ")
	end := strings.Index(p[start:], "\n")
	var sent []map[string]any
	require.NoError(t, json.Unmarshal([]byte(p[start:start+end]), &sent))
	assert.Len(t, sent, MaxSample)
}

func TestRandomSample(t *testing.T) {
	t.Parallel()

	rs := records(make([]string, 50)...)
	for i := range rs {
		rs[i]["id"] = i
	}
	got := RandomSample(rs, 10)
	require.Len(t, got, 10)

	seen := map[any]bool{}
	for _, r := range got {
		assert.False(t, seen[r["id"]], "sampled without replacement")
		seen[r["id"]] = true
	}
	assert.Equal(t, 0, rs[0]["id"], "input order untouched")
	assert.Len(t, RandomSample(rs, 100), 50)
}
