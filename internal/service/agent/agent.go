// Package agent sequences the pipeline stages for one security question and
// contains their failures.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/metrics"
	"sec-agent/internal/service/analysis"
	"sec-agent/internal/service/resultset"
	"sec-agent/internal/service/sqlgen"
	"sec-agent/internal/service/summary"
	"sec-agent/internal/service/timeparse"
)

// State names a pipeline position.
type State string

// Pipeline states in order; Assembled and Failed are terminal.
const (
	StateStart            State = "start"
	StateTimeResolved     State = "time_resolved"
	StateQuerySynthesized State = "query_synthesized"
	StateExecuted         State = "executed"
	StateReified          State = "reified"
	StateSummarized       State = "summarized"
	StateAnalyzed         State = "analyzed"
	StateAssembled        State = "assembled"
	StateFailed           State = "failed"
)

// Options holds the non-stage settings of an Agent.
type Options struct {
	// Table is the security log table; its schema feeds column inference.
	Table string
	// QueryTimeout bounds each store call when non-zero.
	QueryTimeout time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Agent runs the pipeline. It holds no per-request state and is safe for
// concurrent use.
type Agent struct {
	resolver   *timeparse.Resolver
	synth      *sqlgen.Synthesizer
	store      domain.Store
	summarizer *summary.Summarizer
	analyzer   *analysis.Analyzer

	table        string
	queryTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New creates an Agent from its stages.
func New(
	resolver *timeparse.Resolver,
	synth *sqlgen.Synthesizer,
	store domain.Store,
	summarizer *summary.Summarizer,
	analyzer *analysis.Analyzer,
	opts Options,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Agent{
		resolver:     resolver,
		synth:        synth,
		store:        store,
		summarizer:   summarizer,
		analyzer:     analyzer,
		table:        opts.Table,
		queryTimeout: opts.QueryTimeout,
		now:          opts.Now,
		logger:       logger.With("component", "agent"),
		metrics:      m,
	}
}

// Run answers question. Exactly one of the results is non-nil: the
// assembled result, or an envelope when a stage failed without a fallback.
func (a *Agent) Run(ctx context.Context, question string) (*domain.FinalResult, *domain.ErrorEnvelope) {
	return a.run(ctx, question, nil)
}

// RunWindow answers question over an explicit window, skipping time
// resolution.
func (a *Agent) RunWindow(ctx context.Context, question string, tr domain.TimeRange) (*domain.FinalResult, *domain.ErrorEnvelope) {
	return a.run(ctx, question, &tr)
}

// tracker records the state so a failure or panic can report where it happened.
type tracker struct {
	agent    *Agent
	logger   *slog.Logger
	question string
	state    State
}

func (r *tracker) advance(s State, args ...any) {
	r.state = s
	r.logger.Info("pipeline state", append([]any{"state", s}, args...)...)
}

func (r *tracker) fail(err error) *domain.ErrorEnvelope {
	r.logger.Error("pipeline failed", "state", r.state, "error", err)
	r.state = StateFailed
	r.agent.metrics.PipelineRun(string(StateFailed))
	env := &domain.ErrorEnvelope{Error: err.Error(), Query: r.question}
	var exec *domain.ExecutionError
	if errors.As(err, &exec) {
		env.Statement = exec.Query
	}
	return env
}

func (a *Agent) run(ctx context.Context, question string, window *domain.TimeRange) (res *domain.FinalResult, env *domain.ErrorEnvelope) {
	r := &tracker{agent: a, logger: a.logger, question: question, state: StateStart}
	r.logger.Info("pipeline started", "question", question)

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("pipeline panic", "panic", p, "stack", string(debug.Stack()))
			res, env = nil, r.fail(fmt.Errorf("internal error in %s stage: %v", r.state, p))
		}
	}()

	now := a.now()
	var tr domain.TimeRange
	if window != nil {
		tr = *window
	} else {
		tr = a.resolver.Resolve(ctx, question, now)
	}
	r.advance(StateTimeResolved, "range", tr.FormattedRange, "defaulted", tr.Error != "")

	schema, err := a.schema(ctx)
	if err != nil {
		if a.synth.Strategy() == sqlgen.StrategyFreeform {
			return nil, r.fail(fmt.Errorf("read schema of %s: %w", a.table, err))
		}
		r.logger.Warn("schema unavailable, result columns may be positional", "table", a.table, "error", err)
	}

	query := a.synth.Synthesize(ctx, sqlgen.Request{Question: question, TimeRange: tr, Schema: schema})
	r.advance(StateQuerySynthesized, "query", query)

	raw, err := a.execute(ctx, query)
	if err != nil {
		return nil, r.fail(err)
	}
	r.advance(StateExecuted, "bytes", len(raw))

	start := time.Now()
	cols := resultset.ColumnsFromQuery(query)
	if len(cols) == 0 {
		cols = resultset.ColumnsFromSchema(schema)
	}
	records := resultset.Reify(raw, cols)
	a.metrics.ObserveStage(metrics.StageReify, time.Since(start))
	r.advance(StateReified, "records", len(records), "columns", len(cols))

	label := tr.FormattedRange
	sum := a.summarizer.Summarize(ctx, records, label)
	r.advance(StateSummarized, "total", sum.Total, "fallback", sum.Error != "")

	verdict := a.analyzer.Analyze(ctx, sum, records.Head(analysis.SampleSize), label)
	r.advance(StateAnalyzed, "has_risk", verdict.HasRisk, "risk_level", verdict.RiskLevel)

	res = &domain.FinalResult{
		Timestamp:   a.now(),
		TimeRange:   label,
		RiskVerdict: verdict,
	}
	r.advance(StateAssembled)
	a.metrics.PipelineRun(string(StateAssembled))
	return res, nil
}

func (a *Agent) schema(ctx context.Context) (string, error) {
	ctx, cancel := a.storeContext(ctx)
	defer cancel()
	return a.store.TableSchema(ctx, a.table)
}

func (a *Agent) execute(ctx context.Context, query string) (string, error) {
	start := time.Now()
	defer func() { a.metrics.ObserveStage(metrics.StageExecute, time.Since(start)) }()

	ctx, cancel := a.storeContext(ctx)
	defer cancel()
	raw, err := a.store.Execute(ctx, query)
	if err != nil {
		return "", err
	}
	return raw, nil
}

func (a *Agent) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.queryTimeout > 0 {
		return context.WithTimeout(ctx, a.queryTimeout)
	}
	return context.WithCancel(ctx)
}
