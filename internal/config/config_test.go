package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads. Blank values are ignored
// by Load, so this isolates tests from the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("CONFIG_FILE", "")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "qwen-plus", cfg.LLM.Model)
	assert.Equal(t, "https://dashscope.aliyuncs.com/compatible-mode/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "security_logs.db", cfg.Store.Path)
	assert.Equal(t, "security_logs", cfg.Store.Table)
	assert.Equal(t, "timestamp", cfg.Store.TimeColumn)
	assert.Equal(t, StrategyTemplated, cfg.Agent.SQLStrategy)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.RequestTimeout)
	assert.False(t, cfg.LLMEnabled())
	assert.NotEmpty(t, cfg.Warnings, "missing API key is reported as a warning")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "qwen-max")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("DB_PATH", "/tmp/logs.db")
	t.Setenv("SQL_STRATEGY", "freeform")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SEED_SAMPLE_DATA", "false")
	t.Setenv("REQUEST_TIMEOUT", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "qwen-max", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "/tmp/logs.db", cfg.Store.Path)
	assert.Equal(t, StrategyFreeform, cfg.Agent.SQLStrategy)
	assert.Equal(t, 7, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.Store.SeedSample)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.LLMEnabled())
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_LegacyAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("TONGYI_API_KEY", "sk-legacy")
	t.Setenv("TONGYI_MODEL_NAME", "qwen-turbo")
	t.Setenv("DB_CONNECTION_STRING", "sqlite:///./security_logs.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-legacy", cfg.LLM.APIKey)
	assert.Equal(t, "qwen-turbo", cfg.LLM.Model)
	assert.Equal(t, "./security_logs.db", cfg.Store.Path)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `listen_addr: ":9000"
log_level: debug
llm:
  model: from-file
  timeout: 10s
store:
  table: events
agent:
  sql_strategy: freeform
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LLM_MODEL", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "from-env", cfg.LLM.Model, "environment wins over file")
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "events", cfg.Store.Table)
	assert.Equal(t, StrategyFreeform, cfg.Agent.SQLStrategy)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.ListenAddr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown strategy", map[string]string{"SQL_STRATEGY": "magic"}, "SQL_STRATEGY"},
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}, "DB_DRIVER"},
		{"non-positive rate", map[string]string{"RATE_LIMIT_RPS": "-1"}, "rate limit"},
		{"negative request timeout", map[string]string{"REQUEST_TIMEOUT": "-1s"}, "REQUEST_TIMEOUT"},
		{"production without key", map[string]string{"ENV": "production"}, "LLM_API_KEY"},
		{"production with wildcard cors", map[string]string{"ENV": "production", "LLM_API_KEY": "k"}, "CORS wildcard"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_ProductionValid(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("LLM_API_KEY", "k")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://soc.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestNormalizeDBPath(t *testing.T) {
	assert.Equal(t, "./security_logs.db", normalizeDBPath("sqlite:///./security_logs.db"))
	assert.Equal(t, "/var/lib/logs.db", normalizeDBPath("sqlite:////var/lib/logs.db"))
	assert.Equal(t, "logs.db", normalizeDBPath(" logs.db "))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nDOTENV_TEST_A=plain\nexport DOTENV_TEST_B=\"quoted\"\nDOTENV_TEST_C='single'\nnot-a-pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOTENV_TEST_A", "")
	t.Setenv("DOTENV_TEST_B", "")
	t.Setenv("DOTENV_TEST_C", "preset")

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "plain", os.Getenv("DOTENV_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("DOTENV_TEST_B"))
	assert.Equal(t, "preset", os.Getenv("DOTENV_TEST_C"), "existing values take precedence")
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
