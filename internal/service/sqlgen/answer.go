package sqlgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/metrics"
	"sec-agent/internal/prompt"
	"sec-agent/internal/service/resultset"
	"sec-agent/internal/service/timeparse"
)

// Answer is the result of one free-form question.
type Answer struct {
	Question string           `json:"question"`
	Query    string           `json:"query"`
	Records  domain.RecordSet `json:"records"`
	Answer   string           `json:"answer"`
}

// AnswererOptions configures an Answerer.
type AnswererOptions struct {
	Table        string
	QueryTimeout time.Duration
	LLMTimeout   time.Duration
	Now          func() time.Time
}

// Answerer runs a free-form question against the store and explains the
// result in prose.
type Answerer struct {
	resolver *timeparse.Resolver
	synth    *Synthesizer
	store    domain.Store
	llm      domain.Completer
	opts     AnswererOptions
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewAnswerer creates an Answerer. synth should use StrategyFreeform.
func NewAnswerer(resolver *timeparse.Resolver, synth *Synthesizer, store domain.Store, completer domain.Completer, opts AnswererOptions, logger *slog.Logger, m *metrics.Metrics) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Answerer{
		resolver: resolver,
		synth:    synth,
		store:    store,
		llm:      completer,
		opts:     opts,
		logger:   logger.With("component", "answer"),
		metrics:  m,
	}
}

// Ask answers question. Schema lookup and execution failures are returned;
// a failed explanation falls back to a plain record count.
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrValidation("question is required")
	}

	schema, err := a.withStore(ctx, func(ctx context.Context) (string, error) {
		return a.store.TableSchema(ctx, a.opts.Table)
	})
	if err != nil {
		return nil, fmt.Errorf("read schema of %s: %w", a.opts.Table, err)
	}

	tr := a.resolver.Resolve(ctx, question, a.opts.Now())
	query := a.synth.Synthesize(ctx, Request{Question: question, TimeRange: tr, Schema: schema})

	raw, err := a.withStore(ctx, func(ctx context.Context) (string, error) {
		return a.store.Execute(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	cols := resultset.ColumnsFromQuery(query)
	if len(cols) == 0 {
		cols = resultset.ColumnsFromSchema(schema)
	}
	records := resultset.Reify(raw, cols)

	return &Answer{
		Question: question,
		Query:    query,
		Records:  records,
		Answer:   a.explain(ctx, question, query, records),
	}, nil
}

func (a *Answerer) explain(ctx context.Context, question, query string, records domain.RecordSet) string {
	start := time.Now()
	defer func() { a.metrics.ObserveStage(metrics.StageAnswer, time.Since(start)) }()

	text, err := a.complete(ctx, question, query, records)
	if err != nil {
		a.logger.Warn("answer generation failed, using record count", "error", err)
		a.metrics.StageFallback(metrics.StageAnswer)
		return FallbackAnswer(len(records))
	}
	return text
}

func (a *Answerer) complete(ctx context.Context, question, query string, records domain.RecordSet) (string, error) {
	result, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	p, err := prompt.Answer(prompt.AnswerData{Question: question, Query: query, Result: string(result)})
	if err != nil {
		return "", err
	}
	if a.opts.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.LLMTimeout)
		defer cancel()
	}
	text, err := a.llm.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", domain.ErrMalformed(metrics.StageAnswer, "empty answer")
	}
	return text, nil
}

// FallbackAnswer describes a result without the model.
func FallbackAnswer(n int) string {
	switch n {
	case 0:
		return "The query returned no records."
	case 1:
		return "The query returned 1 record."
	default:
		return fmt.Sprintf("The query returned %d records.", n)
	}
}

func (a *Answerer) withStore(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if a.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.QueryTimeout)
		defer cancel()
	}
	return fn(ctx)
}
