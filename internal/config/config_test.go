package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv supplies the credentials validate() demands.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OKX_API_KEY", "test-key")
	t.Setenv("OKX_SECRET_KEY", "test-secret")
	t.Setenv("OKX_PASSPHRASE", "test-pass")
	t.Setenv("OPENROUTER_API_KEY", "test-or-key")
	t.Setenv("ANALYZER_CONFIG", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Store.Backend)
	assert.Equal(t, "data/analyzer.db", cfg.Store.Bolt.Path)
	assert.Equal(t, 25, cfg.Store.DB.MaxOpenConns)
	assert.Equal(t, "https://web3.okx.com", cfg.OKX.BaseURL)
	assert.Equal(t, "test-key", cfg.OKX.APIKey)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "1", cfg.Pipeline.Chains)
	assert.Equal(t, 20, cfg.Pipeline.SummaryLimit)
	assert.Equal(t, 8, cfg.Pipeline.AnalysisWorkers)
	assert.Equal(t, 1100*time.Millisecond, cfg.Pipeline.DetailFetchInterval)
	assert.Equal(t, "analyzer.runs", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("ANALYSIS_WORKERS", "10")
	t.Setenv("CHAINS", "1,56")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Store.Redis.URL)
	assert.Equal(t, 10, cfg.Pipeline.AnalysisWorkers)
	assert.Equal(t, "1,56", cfg.Pipeline.Chains)
	assert.Equal(t, "kafka-1:9092,kafka-2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: postgres
  db:
    url: postgres://file-host/analyzer
pipeline:
  chains: "56"
  summaryLimit: 50
  analysisWorkers: 6
`), 0o600))
	t.Setenv("ANALYZER_CONFIG", path)
	// Env beats file.
	t.Setenv("CHAINS", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://file-host/analyzer", cfg.Store.DB.URL)
	assert.Equal(t, 50, cfg.Pipeline.SummaryLimit)
	assert.Equal(t, 6, cfg.Pipeline.AnalysisWorkers)
	assert.Equal(t, "1", cfg.Pipeline.Chains)
}

func TestLoad_MissingCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OKX_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OKX_SECRET_KEY")
}

func TestLoad_WorkerBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ANALYSIS_WORKERS", "4")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYSIS_WORKERS")
}

func TestLoad_UnknownBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "dynamo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DB_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")
}
