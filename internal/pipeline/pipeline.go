// Package pipeline orchestrates the enrichment flow for one address:
// summaries, dedup, detail resolution, labeling, AI analysis and the
// final profile report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/events"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/analyzer"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/extractor"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/labeler"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/resolver"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/llm"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/tracing"
)

// corpusSeparator joins per-transaction analyses into the report and
// chat context corpus.
const corpusSeparator = "\n\n---\n\n"

// Result holds everything a completed run produced.
type Result struct {
	RunID   string
	Address string
	Details []model.TransactionDetail
	Corpus  string
	Report  string
}

// Service wires the pipeline stages together. Only a failure to list
// transactions aborts a run; every later stage degrades per item.
type Service struct {
	source    okx.TransactionSource
	extractor *extractor.Extractor
	resolver  *resolver.Resolver
	labeler   *labeler.Labeler
	analyzer  *analyzer.Analyzer
	analyst   llm.Analyst
	chats     store.ChatStore
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(
	source okx.TransactionSource,
	ext *extractor.Extractor,
	res *resolver.Resolver,
	lab *labeler.Labeler,
	ana *analyzer.Analyzer,
	analyst llm.Analyst,
	chats store.ChatStore,
	publisher events.Publisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		source:    source,
		extractor: ext,
		resolver:  res,
		labeler:   lab,
		analyzer:  ana,
		analyst:   analyst,
		chats:     chats,
		publisher: publisher,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes the full enrichment flow for address. An address with
// no transactions yields an empty Result, not an error.
func (s *Service) Run(ctx context.Context, address, chains string, limit int) (*Result, error) {
	runID := uuid.NewString()
	logger := s.logger.With("runId", runID, "address", address)
	start := time.Now()

	result, err := s.run(ctx, logger, runID, address, chains, limit)
	metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()

	logger.Info("run complete",
		"transactions", len(result.Details),
		"elapsed", time.Since(start).String(),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, logger *slog.Logger, runID, address, chains string, limit int) (*Result, error) {
	ctx, span := tracing.Tracer("pipeline").Start(ctx, "pipeline.run",
		otelTrace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("address", address),
			attribute.String("chains", chains),
		),
	)
	defer span.End()

	batches, err := s.source.ListTransactions(ctx, address, chains, limit)
	if err != nil {
		err = fmt.Errorf("list transactions for %s: %w", address, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ids := s.extractor.Extract(batches)
	if len(ids) == 0 {
		logger.Info("no transactions found")
		return &Result{RunID: runID, Address: address}, nil
	}
	logger.Info("transactions discovered", "unique", len(ids))
	span.SetAttributes(attribute.Int("transactions.unique", len(ids)))

	resolveCtx, resolveSpan := tracing.Tracer("pipeline").Start(ctx, "pipeline.resolve")
	details, err := s.resolver.Resolve(resolveCtx, address, ids)
	if err != nil {
		resolveSpan.RecordError(err)
		resolveSpan.SetStatus(codes.Error, err.Error())
		resolveSpan.End()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resolveSpan.End()

	labelCtx, labelSpan := tracing.Tracer("pipeline").Start(ctx, "pipeline.label")
	s.labeler.Label(labelCtx, details)
	labelSpan.End()

	analyzeCtx, analyzeSpan := tracing.Tracer("pipeline").Start(ctx, "pipeline.analyze")
	details = s.analyzer.Analyze(analyzeCtx, details)
	analyzeSpan.End()

	corpus := buildCorpus(details)

	reportCtx, reportSpan := tracing.Tracer("pipeline").Start(ctx, "pipeline.report")
	report, err := s.analyst.GenerateReport(reportCtx, address, corpus)
	if err != nil {
		// The enriched details are still valuable without a report.
		logger.Warn("report generation failed", "error", err)
		reportSpan.RecordError(err)
		report = ""
	}
	reportSpan.End()

	if report != "" {
		if err := s.chats.SaveChatContext(ctx, address, report, corpus); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("chat").Inc()
			logger.Warn("chat context save failed", "error", err)
		}
	}

	evt := events.RunCompleted{
		RunID:        runID,
		Address:      address,
		Chains:       chains,
		Transactions: len(details),
		Analyzed:     countAnalyzed(details),
		CompletedAt:  time.Now().UTC(),
	}
	if err := s.publisher.PublishRunCompleted(ctx, evt); err != nil {
		logger.Warn("run event publish failed", "error", err)
	}

	return &Result{
		RunID:   runID,
		Address: address,
		Details: details,
		Corpus:  corpus,
		Report:  report,
	}, nil
}

// Chat answers a follow-up question about a previously analyzed
// address. Both sides of the exchange are appended to history.
func (s *Service) Chat(ctx context.Context, address, question string) (string, error) {
	report, corpus, err := s.chats.LoadChatContext(ctx, address)
	if err != nil {
		return "", fmt.Errorf("load chat context for %s: %w", address, err)
	}
	history, err := s.chats.LoadChatHistory(ctx, address)
	if err != nil {
		return "", fmt.Errorf("load chat history for %s: %w", address, err)
	}

	answer, err := s.analyst.ChatWithReport(ctx, address, report, corpus, history, question)
	if err != nil {
		return "", err
	}

	for _, msg := range []model.ChatMessage{
		{Role: model.ChatRoleUser, Content: question},
		{Role: model.ChatRoleAssistant, Content: answer},
	} {
		if err := s.chats.AppendChatMessage(ctx, address, msg); err != nil {
			metrics.StoreWriteFailures.WithLabelValues("chat").Inc()
			s.logger.Warn("chat message save failed",
				"address", address, "error", err)
		}
	}
	return answer, nil
}

// Report returns the stored profile report for address.
func (s *Service) Report(ctx context.Context, address string) (string, error) {
	report, _, err := s.chats.LoadChatContext(ctx, address)
	if err != nil {
		return "", fmt.Errorf("load report for %s: %w", address, err)
	}
	return report, nil
}

// buildCorpus joins every non-empty analysis in detail order. Failure
// notes are included; they tell the report model what is missing.
func buildCorpus(details []model.TransactionDetail) string {
	var parts []string
	for _, d := range details {
		if d.AIAnalysis != "" {
			parts = append(parts, d.AIAnalysis)
		}
	}
	return strings.Join(parts, corpusSeparator)
}

func countAnalyzed(details []model.TransactionDetail) int {
	n := 0
	for _, d := range details {
		if d.AIAnalysis != "" && !strings.HasPrefix(d.AIAnalysis, analyzer.FailurePrefix) {
			n++
		}
	}
	return n
}
