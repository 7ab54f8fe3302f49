// Package config loads runtime settings from an optional YAML file and
// the environment. Environment variables always win so deployments can
// override a checked-in file. Credentials are only ever read from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	OKX      OKXConfig      `yaml:"okx"`
	Arkham   ArkhamConfig   `yaml:"arkham"`
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Server   ServerConfig   `yaml:"server"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "postgres", "bolt" or "redis".
	Backend string `yaml:"backend"`

	DB    DBConfig    `yaml:"db"`
	Bolt  BoltConfig  `yaml:"bolt"`
	Redis RedisConfig `yaml:"redis"`
}

type DBConfig struct {
	URL                string        `yaml:"url"`
	MaxOpenConns       int           `yaml:"maxOpenConns"`
	MaxIdleConns       int           `yaml:"maxIdleConns"`
	ConnMaxLifetime    time.Duration `yaml:"connMaxLifetime"`
	StatementTimeoutMS int           `yaml:"statementTimeoutMs"`
	MigrationsDir      string        `yaml:"migrationsDir"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type OKXConfig struct {
	BaseURL    string        `yaml:"baseUrl"`
	Timeout    time.Duration `yaml:"timeout"`
	APIKey     string        `yaml:"-"`
	SecretKey  string        `yaml:"-"`
	Passphrase string        `yaml:"-"`
}

type ArkhamConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	ActorID string        `yaml:"actorId"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"-"`
}

type LLMConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	AnalysisModel string        `yaml:"analysisModel"`
	ReportModel   string        `yaml:"reportModel"`
	Referer       string        `yaml:"referer"`
	Title         string        `yaml:"title"`
	Timeout       time.Duration `yaml:"timeout"`
	APIKey        string        `yaml:"-"`
}

type PipelineConfig struct {
	Chains              string        `yaml:"chains"`
	SummaryLimit        int           `yaml:"summaryLimit"`
	AnalysisWorkers     int           `yaml:"analysisWorkers"`
	DetailFetchInterval time.Duration `yaml:"detailFetchInterval"`
	LabelCacheSize      int           `yaml:"labelCacheSize"`
	LabelCacheTTL       time.Duration `yaml:"labelCacheTtl"`
}

type KafkaConfig struct {
	// Brokers is a comma-separated list; empty disables event publishing.
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load builds the configuration. When ANALYZER_CONFIG points at a YAML
// file it seeds the defaults; environment variables override both.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("ANALYZER_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "bolt",
			DB: DBConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
				MigrationsDir:   "internal/store/postgres/migrations",
			},
			Bolt:  BoltConfig{Path: "data/analyzer.db"},
			Redis: RedisConfig{URL: "redis://localhost:6379"},
		},
		OKX: OKXConfig{
			BaseURL: "https://web3.okx.com",
			Timeout: 20 * time.Second,
		},
		Arkham: ArkhamConfig{
			BaseURL: "https://api.apify.com",
			ActorID: "kahchun~arkham-intelligence",
			Timeout: 2 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:       "https://openrouter.ai/api/v1",
			AnalysisModel: "google/gemini-2.5-flash",
			ReportModel:   "google/gemini-2.5-pro",
			Timeout:       3 * time.Minute,
		},
		Pipeline: PipelineConfig{
			Chains:              "1",
			SummaryLimit:        20,
			AnalysisWorkers:     8,
			DetailFetchInterval: 1100 * time.Millisecond,
			LabelCacheSize:      4096,
			LabelCacheTTL:       time.Hour,
		},
		Kafka: KafkaConfig{
			Topic: "analyzer.runs",
		},
		Server: ServerConfig{Port: 8080},
		Tracing: TracingConfig{
			Insecure:    true,
			SampleRatio: 1,
		},
		Log: LogConfig{Level: "info"},
	}
}

func applyEnv(cfg *Config) {
	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.DB.URL = getEnv("DB_URL", cfg.Store.DB.URL)
	cfg.Store.DB.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Store.DB.MaxOpenConns)
	cfg.Store.DB.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Store.DB.MaxIdleConns)
	cfg.Store.DB.StatementTimeoutMS = getEnvInt("DB_STATEMENT_TIMEOUT_MS", cfg.Store.DB.StatementTimeoutMS)
	cfg.Store.DB.MigrationsDir = getEnv("DB_MIGRATIONS_DIR", cfg.Store.DB.MigrationsDir)
	cfg.Store.Bolt.Path = getEnv("BOLT_PATH", cfg.Store.Bolt.Path)
	cfg.Store.Redis.URL = getEnv("REDIS_URL", cfg.Store.Redis.URL)

	cfg.OKX.BaseURL = getEnv("OKX_BASE_URL", cfg.OKX.BaseURL)
	cfg.OKX.APIKey = getEnv("OKX_API_KEY", cfg.OKX.APIKey)
	cfg.OKX.SecretKey = getEnv("OKX_SECRET_KEY", cfg.OKX.SecretKey)
	cfg.OKX.Passphrase = getEnv("OKX_PASSPHRASE", cfg.OKX.Passphrase)

	cfg.Arkham.BaseURL = getEnv("ARKHAM_BASE_URL", cfg.Arkham.BaseURL)
	cfg.Arkham.ActorID = getEnv("ARKHAM_ACTOR_ID", cfg.Arkham.ActorID)
	cfg.Arkham.Token = getEnv("APIFY_TOKEN", cfg.Arkham.Token)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("OPENROUTER_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.AnalysisModel = getEnv("LLM_ANALYSIS_MODEL", cfg.LLM.AnalysisModel)
	cfg.LLM.ReportModel = getEnv("LLM_REPORT_MODEL", cfg.LLM.ReportModel)
	cfg.LLM.Referer = getEnv("LLM_REFERER", cfg.LLM.Referer)
	cfg.LLM.Title = getEnv("LLM_TITLE", cfg.LLM.Title)

	cfg.Pipeline.Chains = getEnv("CHAINS", cfg.Pipeline.Chains)
	cfg.Pipeline.SummaryLimit = getEnvInt("SUMMARY_LIMIT", cfg.Pipeline.SummaryLimit)
	cfg.Pipeline.AnalysisWorkers = getEnvInt("ANALYSIS_WORKERS", cfg.Pipeline.AnalysisWorkers)

	cfg.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)

	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "postgres":
		if c.Store.DB.URL == "" {
			return fmt.Errorf("DB_URL is required for the postgres backend")
		}
	case "bolt":
		if c.Store.Bolt.Path == "" {
			return fmt.Errorf("BOLT_PATH is required for the bolt backend")
		}
	case "redis":
		if c.Store.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.OKX.APIKey == "" || c.OKX.SecretKey == "" || c.OKX.Passphrase == "" {
		return fmt.Errorf("OKX_API_KEY, OKX_SECRET_KEY and OKX_PASSPHRASE are required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	if c.Pipeline.SummaryLimit <= 0 || c.Pipeline.SummaryLimit > 100 {
		return fmt.Errorf("SUMMARY_LIMIT must be within [1, 100]")
	}
	if w := c.Pipeline.AnalysisWorkers; w < 5 || w > 10 {
		return fmt.Errorf("ANALYSIS_WORKERS must be within [5, 10]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
