// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// SQL generation strategies.
const (
	StrategyTemplated = "templated"
	StrategyFreeform  = "freeform"
)

// Store drivers.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// LLMConfig holds the OpenAI-compatible model endpoint settings.
type LLMConfig struct {
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model"`
	BaseURL     string        `koanf:"base_url"`
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"` // bound on a single model call
}

// StoreConfig holds the security log store settings.
type StoreConfig struct {
	Driver       string        `koanf:"driver"` // sqlite3 or duckdb
	Path         string        `koanf:"path"`
	Table        string        `koanf:"table"`
	TimeColumn   string        `koanf:"time_column"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
	SeedSample   bool          `koanf:"seed_sample"`
}

// AgentConfig holds pipeline behaviour switches.
type AgentConfig struct {
	SQLStrategy string `koanf:"sql_strategy"` // templated or freeform
}

// Config holds the configuration for the HTTP API, the model client, and the store.
type Config struct {
	ListenAddr string `koanf:"listen_addr"`
	LogLevel   string `koanf:"log_level"` // debug, info, warn, error
	Env        string `koanf:"env"`       // development or production

	// Rate limiting
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RequestTimeout bounds each /api request; zero leaves requests unbounded.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	LLM   LLMConfig   `koanf:"llm"`
	Store StoreConfig `koanf:"store"`
	Agent AgentConfig `koanf:"agent"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `koanf:"-"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		ListenAddr:         ":8000",
		LogLevel:           "info",
		Env:                "development",
		RateLimitRPS:       20,
		RateLimitBurst:     40,
		CORSAllowedOrigins: []string{"*"},
		LLM: LLMConfig{
			Model:       "qwen-plus",
			BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Temperature: 0,
			Timeout:     60 * time.Second,
		},
		Store: StoreConfig{
			Driver:       DriverSQLite,
			Path:         "security_logs.db",
			Table:        "security_logs",
			TimeColumn:   "timestamp",
			QueryTimeout: 30 * time.Second,
			SeedSample:   true,
		},
		Agent: AgentConfig{
			SQLStrategy: StrategyTemplated,
		},
	}
}

// envKeys maps environment variables to config keys. Later entries in the
// environment win, so the TONGYI_* names act as aliases.
var envKeys = map[string]string{
	"LISTEN_ADDR":          "listen_addr",
	"LOG_LEVEL":            "log_level",
	"ENV":                  "env",
	"RATE_LIMIT_RPS":       "rate_limit_rps",
	"RATE_LIMIT_BURST":     "rate_limit_burst",
	"CORS_ALLOWED_ORIGINS": "cors_allowed_origins",
	"REQUEST_TIMEOUT":      "request_timeout",
	"LLM_API_KEY":          "llm.api_key",
	"TONGYI_API_KEY":       "llm.api_key",
	"LLM_MODEL":            "llm.model",
	"TONGYI_MODEL_NAME":    "llm.model",
	"LLM_BASE_URL":         "llm.base_url",
	"TONGYI_BASE_URL":      "llm.base_url",
	"LLM_TEMPERATURE":      "llm.temperature",
	"LLM_TIMEOUT":          "llm.timeout",
	"DB_DRIVER":            "store.driver",
	"DB_PATH":              "store.path",
	"DB_CONNECTION_STRING": "store.path",
	"SECURITY_LOGS_TABLE":  "store.table",
	"SECURITY_TIME_COLUMN": "store.time_column",
	"DB_QUERY_TIMEOUT":     "store.query_timeout",
	"SEED_SAMPLE_DATA":     "store.seed_sample",
	"SQL_STRATEGY":         "agent.sql_strategy",
}

// Load builds a Config from defaults, an optional YAML file, and environment
// variables, in that order of precedence (environment wins). An empty path
// falls back to CONFIG_FILE; a missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Empty variables are skipped so that KEY= does not blank a default.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.CORSAllowedOrigins = compactNonEmpty(splitList(cfg.CORSAllowedOrigins))
	cfg.Store.Path = normalizeDBPath(cfg.Store.Path)

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finalize fills derived defaults, collects warnings, and validates.
func (c *Config) finalize() error {
	if c.LLM.APIKey == "" {
		c.Warnings = append(c.Warnings, "LLM_API_KEY not set: every model-assisted stage will use its fallback")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	if err := c.Validate(); err != nil {
		return err
	}

	// Production mode: insecure defaults are fatal errors.
	if c.IsProduction() {
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY must be set in production (ENV=production)")
		}
		if len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "*" {
			return fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Agent.SQLStrategy {
	case StrategyTemplated, StrategyFreeform:
	default:
		return fmt.Errorf("invalid SQL_STRATEGY %q: must be %q or %q", c.Agent.SQLStrategy, StrategyTemplated, StrategyFreeform)
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverDuckDB:
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: must be %q or %q", c.Store.Driver, DriverSQLite, DriverDuckDB)
	}
	if c.Store.Table == "" {
		return fmt.Errorf("SECURITY_LOGS_TABLE must not be empty")
	}
	if c.Store.TimeColumn == "" {
		return fmt.Errorf("SECURITY_TIME_COLUMN must not be empty")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive (rps=%v, burst=%d)", c.RateLimitRPS, c.RateLimitBurst)
	}
	if c.LLM.Timeout <= 0 || c.Store.QueryTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LLMEnabled reports whether a model endpoint is configured.
func (c *Config) LLMEnabled() bool {
	return c.LLM.APIKey != ""
}

// normalizeDBPath accepts SQLAlchemy style "sqlite:///./file.db" URLs.
func normalizeDBPath(p string) string {
	p = strings.TrimSpace(p)
	for _, prefix := range []string{"sqlite:///", "sqlite://"} {
		if strings.HasPrefix(p, prefix) {
			return strings.TrimPrefix(p, prefix)
		}
	}
	return p
}

// splitList expands comma separated entries, which is how list values arrive
// from the environment.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			out = append(out, strings.TrimSpace(part))
		}
	}
	return out
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
