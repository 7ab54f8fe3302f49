// Package analyzer fans transaction details out to a bounded pool of
// AI analysis workers and merges results back in canonical order.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/llm"
)

// AnalysisWriter is the slice of the store the analyzer writes through.
type AnalysisWriter interface {
	PutAnalysis(ctx context.Context, txHash string, analysis string) error
}

const (
	// DefaultWorkers balances throughput against provider rate limits.
	DefaultWorkers = 8
	MinWorkers     = 5
	MaxWorkers     = 10
)

// FailurePrefix marks an analysis slot whose worker failed. The note is
// persisted like any other result, so consumers counting real analyses
// match on this prefix.
const FailurePrefix = "Failed to analyze: "

// Analyzer runs per-transaction analysis concurrently. One failing
// transaction never aborts the batch; it carries a failure note
// instead. Every result, failure notes included, is written through
// to the store as its worker finishes.
type Analyzer struct {
	analyst llm.Analyst
	details AnalysisWriter
	workers int
	logger  *slog.Logger
}

func New(analyst llm.Analyst, details AnalysisWriter, workers int, logger *slog.Logger) *Analyzer {
	if workers < MinWorkers || workers > MaxWorkers {
		workers = DefaultWorkers
	}
	return &Analyzer{
		analyst: analyst,
		details: details,
		workers: workers,
		logger:  logger.With("component", "analyzer"),
	}
}

// Analyze fills the AIAnalysis field of every detail, reusing analyses
// already present from the cache. The returned slice preserves input
// order regardless of worker completion order.
func (a *Analyzer) Analyze(ctx context.Context, details []model.TransactionDetail) []model.TransactionDetail {
	if len(details) == 0 {
		return details
	}

	out := make([]model.TransactionDetail, len(details))
	copy(out, details)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for i := range out {
		if out[i].AIAnalysis != "" {
			metrics.AnalysisTasksTotal.WithLabelValues("cached").Inc()
			continue
		}

		i := i
		g.Go(func() error {
			metrics.AnalysisWorkersBusy.Inc()
			defer metrics.AnalysisWorkersBusy.Dec()

			out[i].AIAnalysis = a.analyzeOne(ctx, &out[i])
			return nil
		})
	}

	// Workers report failures in-band, so Wait only sees ctx errors.
	_ = g.Wait()

	a.logger.Info("analysis batch complete", "transactions", len(out))
	return out
}

func (a *Analyzer) analyzeOne(ctx context.Context, detail *model.TransactionDetail) string {
	if err := ctx.Err(); err != nil {
		metrics.AnalysisTasksTotal.WithLabelValues("error").Inc()
		return a.persist(ctx, detail.TxHash, FailurePrefix+err.Error())
	}

	start := time.Now()
	analysis, err := a.analyst.AnalyzeTransaction(ctx, *detail)
	metrics.AnalysisTaskLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AnalysisTasksTotal.WithLabelValues("error").Inc()
		a.logger.Warn("transaction analysis failed",
			"txHash", detail.TxHash, "error", err)
		return a.persist(ctx, detail.TxHash, FailurePrefix+err.Error())
	}
	metrics.AnalysisTasksTotal.WithLabelValues("ok").Inc()

	return a.persist(ctx, detail.TxHash, analysis)
}

// persist writes the result through to the cache and hands it back.
// Failure notes are cached like successes so a rerun does not repeat
// the failed call.
func (a *Analyzer) persist(ctx context.Context, txHash, analysis string) string {
	if err := a.details.PutAnalysis(ctx, txHash, analysis); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("analysis").Inc()
		a.logger.Warn("analysis cache write failed",
			"txHash", txHash, "error", err)
	}
	return analysis
}
