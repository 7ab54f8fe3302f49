// Package resolver turns transaction identifiers into cleaned detail
// records, serving from the store where possible and fetching the rest
// sequentially behind a provider rate limiter.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/retry"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/ratelimit"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
)

// Resolver resolves identifiers to detail records. Fetches are strictly
// sequential; the limiter spaces them so the upstream per-second quota
// is never exceeded. A transient fetch failure earns one limiter-paced
// re-fetch; a terminal or repeated failure skips that identifier only.
type Resolver struct {
	source  okx.TransactionSource
	details store.DetailStore
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func New(source okx.TransactionSource, details store.DetailStore, limiter *ratelimit.Limiter, logger *slog.Logger) *Resolver {
	return &Resolver{
		source:  source,
		details: details,
		limiter: limiter,
		logger:  logger.With("component", "resolver"),
	}
}

// Resolve returns cleaned details for ids in identifier order. The
// store holds raw provider records, so cached and freshly fetched
// entries alike are cleaned here for the queried address. A fetch may
// return records under hashes other than the requested one; each record
// is persisted and emitted under its own hash, ordered after the
// identifier that produced it.
func (r *Resolver) Resolve(ctx context.Context, address string, ids []model.TxIdentifier) ([]model.TransactionDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	hashes := make([]string, 0, len(ids))
	for _, id := range ids {
		hashes = append(hashes, id.TxHash)
	}

	cached, err := r.details.GetDetails(ctx, hashes)
	if err != nil {
		// A cache read failure degrades to fetching everything online.
		r.logger.Warn("detail cache read failed", "error", err)
		cached = map[string]store.CachedDetail{}
	}

	var out []model.TransactionDetail
	for _, id := range ids {
		if rec, ok := cached[id.TxHash]; ok {
			var raw okx.RawDetail
			unmarshalErr := json.Unmarshal(rec.Raw, &raw)
			if unmarshalErr == nil {
				metrics.ResolverCacheHits.Inc()
				detail := CleanDetail(raw, address)
				detail.AIAnalysis = rec.Analysis
				out = append(out, detail)
				continue
			}
			// An unreadable record is a miss; the re-fetch overwrites it.
			r.logger.Warn("cached detail unreadable, refetching",
				"txHash", id.TxHash, "error", unmarshalErr)
		}
		metrics.ResolverCacheMisses.Inc()

		records, err := r.fetchWithRetry(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("resolve details: %w", ctx.Err())
			}
			continue
		}

		for _, raw := range records {
			if raw.TxHash == "" {
				raw.TxHash = id.TxHash
			}
			detail := CleanDetail(raw, address)
			out = append(out, detail)
			r.persist(ctx, address, raw, detail.TxHash)
		}
	}

	r.logger.Info("resolved details",
		"identifiers", len(ids),
		"details", len(out),
	)
	return out, nil
}

// fetchWithRetry fetches the records for id, retrying exactly once when
// the first failure classifies as transient. The limiter inside fetch
// paces the retry like any other request. Terminal failures and second
// failures are logged and reported for the caller to skip.
func (r *Resolver) fetchWithRetry(ctx context.Context, id model.TxIdentifier) ([]okx.RawDetail, error) {
	records, err := r.fetch(ctx, id)
	if err == nil || ctx.Err() != nil {
		return records, err
	}

	decision := retry.Classify(err)
	if !decision.IsTransient() {
		r.logger.Warn("detail fetch failed, skipping transaction",
			"txHash", id.TxHash,
			"chainIndex", id.ChainIndex,
			"class", decision.Class,
			"reason", decision.Reason,
			"error", err,
		)
		return nil, err
	}

	r.logger.Warn("detail fetch failed, retrying once",
		"txHash", id.TxHash,
		"chainIndex", id.ChainIndex,
		"reason", decision.Reason,
		"error", err,
	)

	records, err = r.fetch(ctx, id)
	if err != nil && ctx.Err() == nil {
		r.logger.Warn("detail retry failed, skipping transaction",
			"txHash", id.TxHash,
			"chainIndex", id.ChainIndex,
			"error", err,
		)
	}
	return records, err
}

// persist writes one raw record to the cache under its own hash. Records
// missing a hash fall back to the identifier that produced the fetch.
func (r *Resolver) persist(ctx context.Context, address string, raw okx.RawDetail, txHash string) {
	payload, err := json.Marshal(raw)
	if err != nil {
		metrics.StoreWriteFailures.WithLabelValues("detail").Inc()
		r.logger.Warn("detail marshal failed", "txHash", txHash, "error", err)
		return
	}
	if err := r.details.PutDetail(ctx, address, txHash, raw.ChainIndex, payload); err != nil {
		metrics.StoreWriteFailures.WithLabelValues("detail").Inc()
		r.logger.Warn("detail cache write failed", "txHash", txHash, "error", err)
	}
}

func (r *Resolver) fetch(ctx context.Context, id model.TxIdentifier) ([]okx.RawDetail, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := r.source.GetDetail(ctx, id.ChainIndex, id.TxHash)
	metrics.ResolverFetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ResolverFetchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ResolverFetchesTotal.WithLabelValues("ok").Inc()
	return records, nil
}
