// Package api serves the security agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sec-agent/internal/domain"
	"sec-agent/internal/middleware"
	"sec-agent/internal/service/report"
	"sec-agent/internal/service/sqlgen"
)

const maxBodyBytes = 1 << 20

// Analyzer runs the security pipeline.
type Analyzer interface {
	Run(ctx context.Context, question string) (*domain.FinalResult, *domain.ErrorEnvelope)
	RunWindow(ctx context.Context, question string, tr domain.TimeRange) (*domain.FinalResult, *domain.ErrorEnvelope)
}

// Asker answers free-form questions against the store.
type Asker interface {
	Ask(ctx context.Context, question string) (*sqlgen.Answer, error)
}

// Reporter generates scheduled reports.
type Reporter interface {
	Generate(ctx context.Context, typ report.Type, hours int) (*report.Report, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler implements the HTTP endpoints.
type Handler struct {
	analyzer Analyzer
	asker    Asker
	reporter Reporter
	pinger   Pinger
	logger   *slog.Logger
}

// NewHandler creates a Handler. pinger may be nil.
func NewHandler(analyzer Analyzer, asker Asker, reporter Reporter, pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{analyzer: analyzer, asker: asker, reporter: reporter, pinger: pinger, logger: logger}
}

// AnalyzeRequest is the body of POST /api/security/analyze. StartTime and
// EndTime, when both set, replace time resolution.
type AnalyzeRequest struct {
	Query     string `json:"query"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// QueryRequest is the body of POST /api/security/query.
type QueryRequest struct {
	Query string `json:"query"`
}

// Health answers GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Analyze answers POST /api/security/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, r, domain.ErrValidation("query is required"))
		return
	}
	tr, explicit, err := windowFromRequest(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var (
		result *domain.FinalResult
		env    *domain.ErrorEnvelope
	)
	if explicit {
		result, env = h.analyzer.RunWindow(r.Context(), req.Query, tr)
	} else {
		result, env = h.analyzer.Run(r.Context(), req.Query)
	}
	if env != nil {
		writeJSON(w, http.StatusInternalServerError, env)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Query answers POST /api/security/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ans, err := h.asker.Ask(r.Context(), req.Query)
	if err != nil {
		h.writeQuestionError(w, r, err, req.Query)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

// ScheduledReport answers GET /api/security/scheduled_report/{type}?hours=N.
func (h *Handler) ScheduledReport(w http.ResponseWriter, r *http.Request) {
	typ, err := report.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hours := report.DefaultHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		hours, err = strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, domain.ErrValidation("hours must be an integer, got %q", raw))
			return
		}
	}

	rep, err := h.reporter.Generate(r.Context(), typ, hours)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func windowFromRequest(req AnalyzeRequest) (domain.TimeRange, bool, error) {
	start, end := strings.TrimSpace(req.StartTime), strings.TrimSpace(req.EndTime)
	if start == "" && end == "" {
		return domain.TimeRange{}, false, nil
	}
	if start == "" || end == "" {
		return domain.TimeRange{}, false, domain.ErrValidation("start_time and end_time must be given together")
	}
	tr := domain.TimeRange{StartTime: start, EndTime: end}
	s, e, err := tr.Bounds()
	if err != nil {
		return domain.TimeRange{}, false, domain.ErrValidation("invalid time bounds: %v", err)
	}
	if s.After(e) {
		return domain.TimeRange{}, false, domain.ErrValidation("start_time %s is after end_time %s", start, end)
	}
	return domain.NewTimeRange(s, e, "requested time range"), true, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeQuestionError(w, r, err, "")
}

func (h *Handler) writeQuestionError(w http.ResponseWriter, r *http.Request, err error, question string) {
	status := httpStatusFromDomainError(err)
	logger := middleware.LoggerFromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, envelopeFromError(err, question))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrValidation("request body is required")
		}
		return domain.ErrValidation("invalid JSON body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("encode response", "error", err)
	}
}
