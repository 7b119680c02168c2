// Package analysis asks the model for a risk verdict over log statistics and
// a record sample.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sec-agent/internal/domain"
	"sec-agent/internal/llm"
	"sec-agent/internal/metrics"
	"sec-agent/internal/prompt"
)

// SampleSize is how many leading records accompany the statistics.
const SampleSize = 50

// NoLogData stands in for the sample when there are no records.
const NoLogData = "no log data"

// DefaultRecommendations accompany a verdict that could not be produced.
var DefaultRecommendations = []string{"check system logs", "contact the security team"}

// Analyzer produces a domain.RiskVerdict.
type Analyzer struct {
	llm     domain.Completer
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Analyzer. timeout bounds the model call when non-zero.
func New(completer domain.Completer, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{llm: completer, timeout: timeout, logger: logger.With("component", "analysis"), metrics: m}
}

// DefaultVerdict is returned whenever analysis fails.
func DefaultVerdict(cause error) domain.RiskVerdict {
	return domain.RiskVerdict{
		HasRisk:         false,
		RiskLevel:       domain.RiskUnknown,
		RiskType:        nil,
		Analysis:        fmt.Sprintf("The analysis result could not be produced, please retry later. Error: %v", cause),
		Recommendations: append([]string(nil), DefaultRecommendations...),
	}
}

type modelVerdict struct {
	HasRisk         *bool     `json:"has_risk"`
	RiskLevel       *string   `json:"risk_level"`
	RiskType        *string   `json:"risk_type"`
	Analysis        *string   `json:"analysis"`
	Recommendations *[]string `json:"recommendations"`
}

// Analyze grades summary and sample. Pass at most SampleSize records as
// sample; RecordSet.Head does that.
func (a *Analyzer) Analyze(ctx context.Context, summary domain.Summary, sample domain.RecordSet, label string) domain.RiskVerdict {
	start := time.Now()
	defer func() { a.metrics.ObserveStage(metrics.StageAnalysis, time.Since(start)) }()

	v, err := a.analyze(ctx, summary, sample, label)
	if err != nil {
		a.logger.Warn("risk analysis failed, using default verdict", "error", err)
		a.metrics.StageFallback(metrics.StageAnalysis)
		return DefaultVerdict(err)
	}
	a.logger.Info("risk analysis complete", "has_risk", v.HasRisk, "risk_level", v.RiskLevel)
	return v
}

func (a *Analyzer) analyze(ctx context.Context, summary domain.Summary, sample domain.RecordSet, label string) (domain.RiskVerdict, error) {
	summaryJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return domain.RiskVerdict{}, fmt.Errorf("encode summary: %w", err)
	}
	sampleText, err := RenderSample(sample.Head(SampleSize))
	if err != nil {
		return domain.RiskVerdict{}, err
	}
	p, err := prompt.Analysis(prompt.AnalysisData{
		TimeRange:   label,
		SummaryJSON: string(summaryJSON),
		SampleLogs:  sampleText,
	})
	if err != nil {
		return domain.RiskVerdict{}, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	text, err := a.llm.Complete(ctx, p)
	if err != nil {
		return domain.RiskVerdict{}, err
	}
	return Parse(text)
}

// RenderSample writes one JSON object per record, or NoLogData.
func RenderSample(sample domain.RecordSet) (string, error) {
	if len(sample) == 0 {
		return NoLogData, nil
	}
	var b strings.Builder
	for i, r := range sample {
		line, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("encode sample record %d: %w", i, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// Parse validates a model answer into a RiskVerdict.
func Parse(text string) (domain.RiskVerdict, error) {
	var raw modelVerdict
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return domain.RiskVerdict{}, domain.ErrMalformed(metrics.StageAnalysis, "%v", err)
	}
	switch {
	case raw.HasRisk == nil:
		return domain.RiskVerdict{}, domain.ErrMalformed(metrics.StageAnalysis, "missing has_risk")
	case raw.RiskLevel == nil:
		return domain.RiskVerdict{}, domain.ErrMalformed(metrics.StageAnalysis, "missing risk_level")
	case raw.Analysis == nil:
		return domain.RiskVerdict{}, domain.ErrMalformed(metrics.StageAnalysis, "missing analysis")
	case raw.Recommendations == nil:
		return domain.RiskVerdict{}, domain.ErrMalformed(metrics.StageAnalysis, "missing recommendations")
	}
	level, ok := domain.ParseRiskLevel(*raw.RiskLevel)
	if !ok {
		return domain.RiskVerdict{}, domain.ErrMalformed(metrics.StageAnalysis, "unknown risk_level %q", *raw.RiskLevel)
	}

	var riskType *string
	if raw.RiskType != nil {
		if s := strings.TrimSpace(*raw.RiskType); s != "" {
			riskType = &s
		}
	}
	recs := *raw.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return domain.RiskVerdict{
		HasRisk:         *raw.HasRisk,
		RiskLevel:       level,
		RiskType:        riskType,
		Analysis:        *raw.Analysis,
		Recommendations: recs,
	}, nil
}
