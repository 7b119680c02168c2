// Package report builds the periodic security reports served to the
// scheduled report invoker.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"sec-agent/internal/domain"
)

// Type names a report kind.
type Type string

// Report types.
const (
	TypeGeneral      Type = "general"
	TypeHighRisk     Type = "high_risk"
	TypeLoginFailure Type = "login_failure"
	TypeAttack       Type = "attack"
)

// Window limits in hours.
const (
	DefaultHours = 8
	MaxHours     = 720
)

var questions = map[Type]string{
	TypeGeneral:      "Summarize all security events in the last %d hours and assess the overall security posture.",
	TypeHighRisk:     "Identify high risk and critical severity security events in the last %d hours.",
	TypeLoginFailure: "Analyze failed login attempts in the last %d hours and look for brute force patterns.",
	TypeAttack:       "Detect attack activity such as port scans, malware and DDoS in the last %d hours.",
}

// Types lists the supported report types in a stable order.
func Types() []Type {
	out := make([]Type, 0, len(questions))
	for t := range questions {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// ParseType validates a report type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := questions[t]; !ok {
		return "", domain.ErrValidation("unknown report type %q", s)
	}
	return t, nil
}

// Runner runs the pipeline over an explicit window.
type Runner interface {
	RunWindow(ctx context.Context, question string, tr domain.TimeRange) (*domain.FinalResult, *domain.ErrorEnvelope)
}

// Report is one generated security report.
type Report struct {
	ID            string              `json:"id"`
	Type          Type                `json:"type"`
	Timestamp     time.Time           `json:"timestamp"`
	TimeRange     string              `json:"time_range"`
	Summary       string              `json:"summary"`
	ReportContent string              `json:"report_content"`
	Result        *domain.FinalResult `json:"result"`
}

// Generator produces reports.
type Generator struct {
	runner Runner
	now    func() time.Time
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil now uses time.Now.
func NewGenerator(runner Runner, now func() time.Time, logger *slog.Logger) *Generator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{runner: runner, now: now, logger: logger.With("component", "report")}
}

// Generate runs the report question for typ over [now-hours, now]. A
// pipeline failure is returned as a *domain.PipelineError.
func (g *Generator) Generate(ctx context.Context, typ Type, hours int) (*Report, error) {
	tmpl, ok := questions[typ]
	if !ok {
		return nil, domain.ErrValidation("unknown report type %q", typ)
	}
	if hours < 1 || hours > MaxHours {
		return nil, domain.ErrValidation("hours must be between 1 and %d, got %d", MaxHours, hours)
	}

	now := g.now()
	tr := domain.NewTimeRange(now.Add(-time.Duration(hours)*time.Hour), now, fmt.Sprintf("last %d hours", hours))
	question := fmt.Sprintf(tmpl, hours)

	result, env := g.runner.RunWindow(ctx, question, tr)
	if env != nil {
		g.logger.Error("report generation failed", "type", typ, "hours", hours, "error", env.Error)
		return nil, &domain.PipelineError{Envelope: *env}
	}

	g.logger.Info("report generated", "type", typ, "hours", hours, "risk_level", result.RiskLevel)
	return &Report{
		ID:            uuid.NewString(),
		Type:          typ,
		Timestamp:     result.Timestamp,
		TimeRange:     result.TimeRange,
		Summary:       Headline(result.RiskVerdict),
		ReportContent: Render(typ, result),
		Result:        result,
	}, nil
}

// Headline is a one-line summary of a verdict.
func Headline(v domain.RiskVerdict) string {
	if !v.HasRisk {
		return fmt.Sprintf("No risk detected (level: %s)", v.RiskLevel)
	}
	if v.RiskType != nil {
		return fmt.Sprintf("Risk detected: %s (level: %s)", *v.RiskType, v.RiskLevel)
	}
	return fmt.Sprintf("Risk detected (level: %s)", v.RiskLevel)
}

// Render formats the report body.
func Render(typ Type, r *domain.FinalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Report type: %s\n", typ)
	fmt.Fprintf(&b, "Time range: %s\n", r.TimeRange)
	fmt.Fprintf(&b, "Risk detected: %t\n", r.HasRisk)
	fmt.Fprintf(&b, "Risk level: %s\n", r.RiskLevel)
	if r.RiskType != nil {
		fmt.Fprintf(&b, "Risk type: %s\n", *r.RiskType)
	}
	b.WriteString("\nAnalysis:\n")
	b.WriteString(strings.TrimSpace(r.Analysis))
	b.WriteString("\n")
	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations:\n")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec)
		}
	}
	return b.String()
}
