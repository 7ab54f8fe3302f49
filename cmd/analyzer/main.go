package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/cache"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/config"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/events"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/analyzer"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/extractor"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/labeler"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/resolver"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/arkham"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/llm"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/ratelimit"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/server"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store/bolt"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store/postgres"
	redisstore "github.com/KangBTC/blockchain-AI-Analyzer/internal/store/redis"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/tracing"
)

const dbPoolStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting blockchain-ai-analyzer",
		"store_backend", cfg.Store.Backend,
		"okx_base_url", cfg.OKX.BaseURL,
		"arkham_base_url", cfg.Arkham.BaseURL,
		"llm_base_url", cfg.LLM.BaseURL,
		"chains", cfg.Pipeline.Chains,
		"analysis_workers", cfg.Pipeline.AnalysisWorkers,
		"port", cfg.Server.Port,
	)

	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName: "blockchain-ai-analyzer",
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, db, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", "error", err, "backend", cfg.Store.Backend)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close error", "error", err)
		}
	}()
	logger.Info("store ready", "backend", cfg.Store.Backend)

	okxClient := okx.NewClient(okx.Config{
		BaseURL:    cfg.OKX.BaseURL,
		APIKey:     cfg.OKX.APIKey,
		SecretKey:  cfg.OKX.SecretKey,
		Passphrase: cfg.OKX.Passphrase,
		Timeout:    cfg.OKX.Timeout,
	}, logger)

	arkhamClient := arkham.NewClient(arkham.Config{
		BaseURL: cfg.Arkham.BaseURL,
		Token:   cfg.Arkham.Token,
		ActorID: cfg.Arkham.ActorID,
		Timeout: cfg.Arkham.Timeout,
	}, logger)

	llmClient := llm.NewClient(llm.Config{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		AnalysisModel: cfg.LLM.AnalysisModel,
		ReportModel:   cfg.LLM.ReportModel,
		Referer:       cfg.LLM.Referer,
		Title:         cfg.LLM.Title,
		Timeout:       cfg.LLM.Timeout,
	}, logger)

	publisher, err := buildPublisher(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize event publisher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close error", "error", err)
		}
	}()

	labelCache := cache.NewLRU[string, model.AddressLabel](cfg.Pipeline.LabelCacheSize, cfg.Pipeline.LabelCacheTTL)
	detailLimiter := ratelimit.Every(cfg.Pipeline.DetailFetchInterval, "okx")

	svc := pipeline.NewService(
		okxClient,
		extractor.New(logger),
		resolver.New(okxClient, st, detailLimiter, logger),
		labeler.New(st, arkhamClient, labelCache, logger),
		analyzer.New(llmClient, st, cfg.Pipeline.AnalysisWorkers, logger),
		llmClient,
		st,
		publisher,
		logger,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(svc, cfg.Pipeline.Chains, cfg.Pipeline.SummaryLimit, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("http server shutdown error", "error", err)
		}
		return nil
	})

	if db != nil {
		startDBPoolStatsPump(gCtx, db, logger)
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("analyzer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("analyzer shut down gracefully")
}

// buildStore opens the configured backend. The *postgres.DB is returned
// separately so the pool stats sampler can reach sql.DBStats.
func buildStore(cfg *config.Config, logger *slog.Logger) (store.Store, *postgres.DB, error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := postgres.New(postgres.Config{
			URL:                cfg.Store.DB.URL,
			MaxOpenConns:       cfg.Store.DB.MaxOpenConns,
			MaxIdleConns:       cfg.Store.DB.MaxIdleConns,
			ConnMaxLifetime:    cfg.Store.DB.ConnMaxLifetime,
			StatementTimeoutMS: cfg.Store.DB.StatementTimeoutMS,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.RunMigrations(cfg.Store.DB.MigrationsDir); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return postgres.NewStore(db, logger), db, nil

	case "bolt":
		st, err := bolt.NewStore(cfg.Store.Bolt.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		return st, nil, nil

	case "redis":
		st, err := redisstore.NewStore(cfg.Store.Redis.URL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return st, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

func buildPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if strings.TrimSpace(cfg.Kafka.Brokers) == "" {
		return events.NewNop(), nil
	}
	brokers := make([]string, 0)
	for _, b := range strings.Split(cfg.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	pub, err := events.NewKafkaPublisher(brokers, cfg.Kafka.Topic, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to kafka: %w", err)
	}
	logger.Info("kafka event publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return pub, nil
}

func startDBPoolStatsPump(ctx context.Context, db *postgres.DB, logger *slog.Logger) {
	ticker := time.NewTicker(dbPoolStatsInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.DB.Stats()
				metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
				metrics.DBPoolInUse.Set(float64(stats.InUse))
				metrics.DBPoolIdle.Set(float64(stats.Idle))
			}
		}
	}()
	logger.Debug("db pool stats sampler started", "interval", dbPoolStatsInterval.String())
}
