// Package app wires the security agent from configuration and database
// handles.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sec-agent/internal/api"
	"sec-agent/internal/config"
	"sec-agent/internal/domain"
	"sec-agent/internal/llm"
	"sec-agent/internal/metrics"
	"sec-agent/internal/middleware"
	"sec-agent/internal/service/agent"
	"sec-agent/internal/service/analysis"
	"sec-agent/internal/service/report"
	"sec-agent/internal/service/sqlgen"
	"sec-agent/internal/service/summary"
	"sec-agent/internal/service/timeparse"
	"sec-agent/internal/store"
)

// Deps holds what main must provide.
type Deps struct {
	Cfg    *config.Config
	ReadDB *sql.DB
	Logger *slog.Logger
	// Metrics may be nil, which disables instrumentation.
	Metrics *metrics.Metrics
	// Completer overrides the model client built from Cfg.LLM.
	Completer domain.Completer
	// Now overrides the clock.
	Now func() time.Time
}

// App is the wired application.
type App struct {
	Agent    *agent.Agent
	Answerer *sqlgen.Answerer
	Reports  *report.Generator
	Store    *store.Store
	Handler  *api.Handler

	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New wires every stage from deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics

	st, err := store.New(deps.ReadDB, cfg.Store.Driver, logger)
	if err != nil {
		return nil, err
	}

	completer := deps.Completer
	if completer == nil {
		completer = NewCompleter(cfg, logger)
	}

	strategy, err := sqlgen.ParseStrategy(cfg.Agent.SQLStrategy)
	if err != nil {
		return nil, fmt.Errorf("sql strategy: %w", err)
	}
	dialect := "SQLite"
	if cfg.Store.Driver == config.DriverDuckDB {
		dialect = "DuckDB"
	}
	synthOpts := sqlgen.Options{
		Strategy:   strategy,
		Table:      cfg.Store.Table,
		TimeColumn: cfg.Store.TimeColumn,
		Dialect:    dialect,
		Timeout:    cfg.LLM.Timeout,
	}

	resolver := timeparse.NewResolver(completer, cfg.LLM.Timeout, logger, m)
	synth := sqlgen.NewSynthesizer(completer, synthOpts, logger, m)
	summarizer := summary.New(completer, logger, m, summary.WithTimeout(cfg.LLM.Timeout))
	analyzer := analysis.New(completer, cfg.LLM.Timeout, logger, m)

	ag := agent.New(resolver, synth, st, summarizer, analyzer, agent.Options{
		Table:        cfg.Store.Table,
		QueryTimeout: cfg.Store.QueryTimeout,
		Now:          deps.Now,
	}, logger, m)

	// Free-form questions always need the schema-aware strategy.
	freeOpts := synthOpts
	freeOpts.Strategy = sqlgen.StrategyFreeform
	answerer := sqlgen.NewAnswerer(resolver, sqlgen.NewSynthesizer(completer, freeOpts, logger, m), st, completer, sqlgen.AnswererOptions{
		Table:        cfg.Store.Table,
		QueryTimeout: cfg.Store.QueryTimeout,
		LLMTimeout:   cfg.LLM.Timeout,
		Now:          deps.Now,
	}, logger, m)

	reports := report.NewGenerator(ag, deps.Now, logger)

	logger.Info("agent wired",
		"sql_strategy", strategy,
		"table", cfg.Store.Table,
		"driver", cfg.Store.Driver,
		"llm_enabled", cfg.LLMEnabled(),
	)

	return &App{
		Agent:    ag,
		Answerer: answerer,
		Reports:  reports,
		Store:    st,
		Handler:  api.NewHandler(ag, answerer, reports, st, logger),
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}, nil
}

// NewCompleter builds the model client, or llm.Disabled when no API key is
// configured.
func NewCompleter(cfg *config.Config, logger *slog.Logger) domain.Completer {
	if !cfg.LLMEnabled() {
		return llm.Disabled{}
	}
	return llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithLogger(logger),
	)
}

// Router returns the HTTP handler for the API server.
func (a *App) Router(ctx context.Context) http.Handler {
	return api.NewRouter(ctx, a.Handler, api.RouterConfig{
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			Burst:             a.cfg.RateLimitBurst,
		},
		RequestTimeout: a.cfg.RequestTimeout,
	}, a.metrics, a.logger)
}
