// Package sqlgen synthesizes the store query for a security question and
// recovers executable statements from model answers.
package sqlgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/metrics"
	"sec-agent/internal/prompt"
)

// DefaultLimit caps result rows for synthesized queries.
const DefaultLimit = 10000

// Strategy selects how the model is asked for a query.
type Strategy string

// Supported strategies.
const (
	// StrategyTemplated asks for the fixed time-window query shape.
	StrategyTemplated Strategy = "templated"
	// StrategyFreeform asks for any query answering the question, given the schema.
	StrategyFreeform Strategy = "freeform"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyTemplated, "":
		return StrategyTemplated, nil
	case StrategyFreeform, "free-form", "free_form":
		return StrategyFreeform, nil
	default:
		return "", domain.ErrValidation("unknown sql strategy %q", s)
	}
}

// Templated returns the fixed time-window query for table. It needs no model.
func Templated(table, timeColumn string, tr domain.TimeRange) domain.QueryText {
	return fmt.Sprintf(
		"SELECT * FROM %s WHERE %s >= '%s' AND %s <= '%s' ORDER BY %s DESC LIMIT %d",
		table, timeColumn, quoteLiteral(tr.StartTime), timeColumn, quoteLiteral(tr.EndTime), timeColumn, DefaultLimit,
	)
}

func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Request carries what one synthesis needs. Schema is only read by the
// free-form strategy.
type Request struct {
	Question  string
	TimeRange domain.TimeRange
	Schema    string
}

// Synthesizer asks the model for a query and falls back to Templated.
type Synthesizer struct {
	llm        domain.Completer
	strategy   Strategy
	table      string
	timeColumn string
	dialect    string
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Options configures a Synthesizer.
type Options struct {
	Strategy   Strategy
	Table      string
	TimeColumn string
	// Dialect names the query language in free-form prompts, e.g. "SQLite".
	Dialect string
	Timeout time.Duration
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(completer domain.Completer, opts Options, logger *slog.Logger, m *metrics.Metrics) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyTemplated
	}
	if opts.Dialect == "" {
		opts.Dialect = "SQLite"
	}
	return &Synthesizer{
		llm:        completer,
		strategy:   opts.Strategy,
		table:      opts.Table,
		timeColumn: opts.TimeColumn,
		dialect:    opts.Dialect,
		timeout:    opts.Timeout,
		logger:     logger.With("component", "sqlgen"),
		metrics:    m,
	}
}

// Strategy reports the configured strategy.
func (s *Synthesizer) Strategy() Strategy { return s.strategy }

// Table reports the table queries are written against.
func (s *Synthesizer) Table() string { return s.table }

// Synthesize returns a query for req. It never fails: a model failure or an
// empty extraction yields the templated query for req.TimeRange.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) domain.QueryText {
	start := time.Now()
	defer func() { s.metrics.ObserveStage(metrics.StageQuery, time.Since(start)) }()

	q, err := s.generate(ctx, req)
	if err != nil {
		s.logger.Warn("query synthesis failed, using templated query", "strategy", s.strategy, "error", err)
		s.metrics.StageFallback(metrics.StageQuery)
		return Templated(s.table, s.timeColumn, req.TimeRange)
	}
	s.logger.Info("query synthesized", "strategy", s.strategy, "query", q)
	return q
}

func (s *Synthesizer) generate(ctx context.Context, req Request) (string, error) {
	p, err := s.render(req)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.llm.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	q := ExtractQuery(raw)
	if q == "" {
		return "", domain.ErrMalformed(metrics.StageQuery, "no statement found in model answer")
	}
	return q, nil
}

func (s *Synthesizer) render(req Request) (string, error) {
	if s.strategy == StrategyFreeform {
		return prompt.SQLFreeform(prompt.SQLFreeformData{
			Dialect:    s.dialect,
			Question:   req.Question,
			Table:      s.table,
			Schema:     req.Schema,
			TimeColumn: s.timeColumn,
			StartTime:  req.TimeRange.StartTime,
			EndTime:    req.TimeRange.EndTime,
			Limit:      DefaultLimit,
		})
	}
	return prompt.SQLTemplated(prompt.SQLTemplatedData{
		Table:      s.table,
		TimeColumn: s.timeColumn,
		StartTime:  req.TimeRange.StartTime,
		EndTime:    req.TimeRange.EndTime,
		Limit:      DefaultLimit,
	})
}
