package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 300, cfg.Cache.ListingTTLSecs)
	assert.Equal(t, 3600, cfg.Cache.ResultTTLSecs)
	assert.Equal(t, "doctype_01", cfg.DocIntel.ClassifierModel)
	assert.Equal(t, 500, cfg.DocIntel.PollIntervalMS)
	assert.Equal(t, 3, cfg.DocSource.MaxRetries)
	assert.Equal(t, "invoice", cfg.Pipeline.DefaultType)
	assert.InDelta(t, 0.10, cfg.Pipeline.FallbackConfidence, 0.001)
	assert.Equal(t, "inovice_01", cfg.Pipeline.Profiles["invoice"])
	assert.Equal(t, "inovice_01", cfg.Pipeline.Profiles["packlist"])
	assert.Equal(t, "transport_01", cfg.Pipeline.Profiles["transport"])
	assert.Equal(t, 4, cfg.Batch.Concurrency)
	assert.Equal(t, []string{"content", "contenido", "file"}, cfg.Batch.ContentFields)
	assert.Equal(t, int64(20<<20), cfg.Batch.MaxDocumentBytes)
	assert.Equal(t, 3600, cfg.Auth.TokenTTLSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
redis:
  addr: redis.internal:6380
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  concurrency: 8
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 300, cfg.Cache.ListingTTLSecs)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("DOCFLOW_SERVER_PORT", "3000")
	t.Setenv("DOCFLOW_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

// validDefaults returns a Config populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Redis.Addr = "localhost:6379"
	cfg.DocIntel.Key = "key"
	cfg.DocIntel.BaseURL = "https://docintel.example"
	cfg.DocSource.Token = "token"
	cfg.DocSource.BaseURL = "https://docsource.example"
	cfg.Auth.Secret = "secret"
	cfg.Batch.Concurrency = 4
	cfg.Pipeline.FallbackConfidence = 0.1
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Auth.Secret = ""
	cfg.DocIntel.Key = ""

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.secret is required")
	assert.Contains(t, err.Error(), "docintel.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateWorker_RequiresRedis(t *testing.T) {
	cfg := validDefaults()
	cfg.Redis.Addr = ""

	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr is required")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 50")

	cfg.Batch.Concurrency = 51
	err = cfg.Validate("serve")
	require.Error(t, err)

	cfg.Batch.Concurrency = 50
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
