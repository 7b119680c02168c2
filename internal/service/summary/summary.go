// Package summary computes aggregate statistics over reified security log
// records, asking the model first and counting locally when it cannot.
package summary

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/llm"
	"sec-agent/internal/metrics"
	"sec-agent/internal/prompt"
)

// MaxSample is the largest number of records sent to the model.
const MaxSample = 1000

// Sampler picks k of rs uniformly without replacement.
type Sampler func(rs domain.RecordSet, k int) domain.RecordSet

// Summarizer produces a domain.Summary for a record set.
type Summarizer struct {
	llm     domain.Completer
	sample  Sampler
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithSampler replaces the default random sampler.
func WithSampler(s Sampler) Option {
	return func(z *Summarizer) { z.sample = s }
}

// WithTimeout bounds the model call.
func WithTimeout(d time.Duration) Option {
	return func(z *Summarizer) { z.timeout = d }
}

// New creates a Summarizer.
func New(completer domain.Completer, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	z := &Summarizer{llm: completer, sample: RandomSample, logger: logger.With("component", "summary"), metrics: m}
	for _, o := range opts {
		o(z)
	}
	return z
}

// RandomSample draws k records with a partial Fisher-Yates shuffle over a
// copy of rs.
func RandomSample(rs domain.RecordSet, k int) domain.RecordSet {
	if k >= len(rs) {
		return rs
	}
	cp := slices.Clone(rs)
	for i := 0; i < k; i++ {
		j := i + rand.IntN(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:k]
}

// modelSummary is the JSON shape requested from the model.
type modelSummary struct {
	Total                 *int              `json:"total"`
	EventTypeDistribution map[string]int    `json:"event_type_distribution"`
	UniqueSourceIPCount   *int              `json:"unique_source_ip_count"`
	UniqueDestIPCount     *int              `json:"unique_dest_ip_count"`
	TopSourceIPs          []domain.KeyCount `json:"top_source_ips"`
	TopEventTypes         []domain.KeyCount `json:"top_event_types"`
}

// Summarize returns statistics for records. label describes the time window
// in the prompt. Total always reflects len(records).
func (z *Summarizer) Summarize(ctx context.Context, records domain.RecordSet, label string) domain.Summary {
	start := time.Now()
	defer func() { z.metrics.ObserveStage(metrics.StageSummary, time.Since(start)) }()

	s, err := z.fromModel(ctx, records, label)
	if err != nil {
		z.logger.Warn("log summary failed, computing locally", "records", len(records), "error", err)
		z.metrics.StageFallback(metrics.StageSummary)
		fb := Fallback(records)
		fb.Error = err.Error()
		return fb
	}
	return s
}

func (z *Summarizer) fromModel(ctx context.Context, records domain.RecordSet, label string) (domain.Summary, error) {
	sample := records
	if len(records) > MaxSample {
		sample = z.sample(records, MaxSample)
		z.logger.Info("sampling records for summary", "total", len(records), "sampled", len(sample))
	}

	logsJSON, err := json.Marshal(sample)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("encode records: %w", err)
	}
	p, err := prompt.Summary(prompt.SummaryData{
		TimeRange: label,
		Total:     len(records),
		Sampled:   len(sample),
		LogsJSON:  string(logsJSON),
		TopN:      domain.TopN,
	})
	if err != nil {
		return domain.Summary{}, err
	}

	if z.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, z.timeout)
		defer cancel()
	}
	text, err := z.llm.Complete(ctx, p)
	if err != nil {
		return domain.Summary{}, err
	}
	return parse(text, len(records))
}

func parse(text string, total int) (domain.Summary, error) {
	var raw modelSummary
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return domain.Summary{}, domain.ErrMalformed(metrics.StageSummary, "%v", err)
	}
	switch {
	case raw.Total == nil:
		return domain.Summary{}, domain.ErrMalformed(metrics.StageSummary, "missing total")
	case raw.EventTypeDistribution == nil:
		return domain.Summary{}, domain.ErrMalformed(metrics.StageSummary, "missing event_type_distribution")
	case raw.UniqueSourceIPCount == nil || raw.UniqueDestIPCount == nil:
		return domain.Summary{}, domain.ErrMalformed(metrics.StageSummary, "missing unique ip counts")
	case raw.TopSourceIPs == nil || raw.TopEventTypes == nil:
		return domain.Summary{}, domain.ErrMalformed(metrics.StageSummary, "missing top lists")
	}
	return domain.Summary{
		Total:                 total,
		EventTypeDistribution: raw.EventTypeDistribution,
		UniqueSourceIPCount:   *raw.UniqueSourceIPCount,
		UniqueDestIPCount:     *raw.UniqueDestIPCount,
		TopSourceIPs:          clip(raw.TopSourceIPs),
		TopEventTypes:         clip(raw.TopEventTypes),
	}, nil
}

func clip(kc []domain.KeyCount) []domain.KeyCount {
	if len(kc) > domain.TopN {
		return kc[:domain.TopN]
	}
	return kc
}

// Fallback computes the summary locally. Records missing a field do not
// contribute to that field's counts.
func Fallback(records domain.RecordSet) domain.Summary {
	events := map[string]int{}
	sources := map[string]int{}
	dests := map[string]int{}
	for _, r := range records {
		if v, ok := field(r, domain.FieldEventType); ok {
			events[v]++
		}
		if v, ok := field(r, domain.FieldSourceIP); ok {
			sources[v]++
		}
		if v, ok := field(r, domain.FieldDestinationIP); ok {
			dests[v]++
		}
	}
	return domain.Summary{
		Total:                 len(records),
		EventTypeDistribution: events,
		UniqueSourceIPCount:   len(sources),
		UniqueDestIPCount:     len(dests),
		TopSourceIPs:          Top(sources, domain.TopN),
		TopEventTypes:         Top(events, domain.TopN),
	}
}

// Top returns the n most frequent keys, count descending then key ascending.
func Top(counts map[string]int, n int) []domain.KeyCount {
	out := make([]domain.KeyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, domain.KeyCount{Key: k, Count: c})
	}
	slices.SortFunc(out, func(a, b domain.KeyCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func field(r domain.Record, name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}
