// Package timeparse resolves natural-language time expressions into explicit
// time bounds with the help of the language model.
package timeparse

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/llm"
	"sec-agent/internal/metrics"
	"sec-agent/internal/prompt"
)

const stage = "time_range"

// Layouts accepted for model supplied bounds; results are normalised to
// domain.TimeLayout.
var acceptedLayouts = []string{
	domain.TimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// Resolver turns a question into a TimeRange. It never fails: any problem
// yields the default 24h window with Error populated.
type Resolver struct {
	llm     domain.Completer
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a Resolver. timeout bounds the single model call; zero
// means the caller's context alone applies.
func NewResolver(completer domain.Completer, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{llm: completer, timeout: timeout, logger: logger.With("component", "timeparse"), metrics: m}
}

// modelRange is the JSON shape requested from the model. Pointers
// distinguish absent fields from empty ones.
type modelRange struct {
	StartTime      *string `json:"start_time"`
	EndTime        *string `json:"end_time"`
	Description    *string `json:"description"`
	FormattedRange *string `json:"formatted_range"`
}

// Resolve makes exactly one model call for query relative to now.
func (r *Resolver) Resolve(ctx context.Context, query string, now time.Time) domain.TimeRange {
	start := time.Now()
	defer func() { r.metrics.ObserveStage(metrics.StageTimeRange, time.Since(start)) }()

	tr, err := r.resolve(ctx, query, now)
	if err != nil {
		r.logger.Warn("time range resolution failed, using default window", "error", err)
		r.metrics.StageFallback(metrics.StageTimeRange)
		return domain.DefaultTimeRange(now, err)
	}
	r.logger.Info("time range resolved", "start", tr.StartTime, "end", tr.EndTime, "description", tr.Description)
	return tr
}

func (r *Resolver) resolve(ctx context.Context, query string, now time.Time) (domain.TimeRange, error) {
	p, err := prompt.TimeRange(prompt.TimeRangeData{
		CurrentTime: now.Format(domain.TimeLayout),
		Query:       query,
		Layout:      "YYYY-MM-DD HH:MM:SS",
	})
	if err != nil {
		return domain.TimeRange{}, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.llm.Complete(ctx, p)
	if err != nil {
		return domain.TimeRange{}, err
	}
	return Parse(text, now.Location())
}

// Parse decodes and validates a model answer into a TimeRange. All four
// fields are required and start must not be after end.
func Parse(text string, loc *time.Location) (domain.TimeRange, error) {
	var raw modelRange
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return domain.TimeRange{}, domain.ErrMalformed(stage, "%v", err)
	}

	var missing []string
	for name, v := range map[string]*string{
		"start_time":      raw.StartTime,
		"end_time":        raw.EndTime,
		"description":     raw.Description,
		"formatted_range": raw.FormattedRange,
	} {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return domain.TimeRange{}, domain.ErrMalformed(stage, "missing required fields: %s", strings.Join(missing, ", "))
	}

	if loc == nil {
		loc = time.Local
	}
	startT, err := parseTimestamp(*raw.StartTime, loc)
	if err != nil {
		return domain.TimeRange{}, domain.ErrMalformed(stage, "start_time: %v", err)
	}
	endT, err := parseTimestamp(*raw.EndTime, loc)
	if err != nil {
		return domain.TimeRange{}, domain.ErrMalformed(stage, "end_time: %v", err)
	}
	if startT.After(endT) {
		return domain.TimeRange{}, domain.ErrMalformed(stage, "start_time %s is after end_time %s", *raw.StartTime, *raw.EndTime)
	}

	return domain.TimeRange{
		StartTime:      startT.Format(domain.TimeLayout),
		EndTime:        endT.Format(domain.TimeLayout),
		Description:    strings.TrimSpace(*raw.Description),
		FormattedRange: strings.TrimSpace(*raw.FormattedRange),
	}, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range acceptedLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t.In(loc), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
