// Package labeler collects every address referenced by a set of
// transaction details and annotates them with intelligence labels.
package labeler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/cache"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/arkham"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
)

// Labeler resolves address labels through three tiers: an in-process
// LRU, the label store, then the intelligence provider. Provider
// failures degrade to unlabeled addresses, never to a failed run.
type Labeler struct {
	labels   store.LabelStore
	provider arkham.LabelSource
	memory   *cache.LRU[string, model.AddressLabel]
	logger   *slog.Logger
}

func New(labels store.LabelStore, provider arkham.LabelSource, memory *cache.LRU[string, model.AddressLabel], logger *slog.Logger) *Labeler {
	return &Labeler{
		labels:   labels,
		provider: provider,
		memory:   memory,
		logger:   logger.With("component", "labeler"),
	}
}

// Label annotates every endpoint in details in place. Labels are keyed
// by lowercased address; endpoints that already carry a label keep it.
func (l *Labeler) Label(ctx context.Context, details []model.TransactionDetail) {
	addresses := collectAddresses(details)
	if len(addresses) == 0 {
		return
	}
	metrics.LabelerAddressesCollected.Add(float64(len(addresses)))

	found := l.lookup(ctx, addresses)
	if len(found) == 0 {
		return
	}

	for i := range details {
		enrich(&details[i].From, found)
		enrich(&details[i].To, found)
		for j := range details[i].InternalTransactions {
			enrich(&details[i].InternalTransactions[j].From, found)
			enrich(&details[i].InternalTransactions[j].To, found)
		}
		for j := range details[i].TokenTransfers {
			enrich(&details[i].TokenTransfers[j].From, found)
			enrich(&details[i].TokenTransfers[j].To, found)
		}
	}
}

// lookup resolves labels for addresses, returning a map keyed by
// lowercased address. Only the provider miss set is persisted.
func (l *Labeler) lookup(ctx context.Context, addresses []string) map[string]model.AddressLabel {
	found := make(map[string]model.AddressLabel)
	var missing []string

	for _, addr := range addresses {
		key := strings.ToLower(addr)
		if label, ok := l.memory.Get(key); ok {
			metrics.LabelerCacheHits.WithLabelValues("memory").Inc()
			found[key] = label
			continue
		}
		missing = append(missing, addr)
	}

	if len(missing) > 0 {
		stored, err := l.labels.GetLabels(ctx, missing)
		if err != nil {
			l.logger.Warn("label store read failed", "error", err)
			stored = map[string]model.AddressLabel{}
		}

		var toFetch []string
		for _, addr := range missing {
			key := strings.ToLower(addr)
			if label, ok := stored[key]; ok {
				metrics.LabelerCacheHits.WithLabelValues("store").Inc()
				found[key] = label
				l.memory.Put(key, label)
				continue
			}
			toFetch = append(toFetch, addr)
		}
		missing = toFetch
	}

	if len(missing) > 0 {
		fetched, err := l.provider.GetLabels(ctx, missing)
		if err != nil {
			metrics.LabelerProviderLookups.WithLabelValues("error").Inc()
			l.logger.Warn("label provider lookup failed, continuing unlabeled",
				"addresses", len(missing), "error", err)
			fetched = map[string]model.AddressLabel{}
		} else {
			metrics.LabelerProviderLookups.WithLabelValues("ok").Inc()
		}

		if len(fetched) > 0 {
			if err := l.labels.PutLabels(ctx, fetched); err != nil {
				metrics.StoreWriteFailures.WithLabelValues("label").Inc()
				l.logger.Warn("label store write failed", "error", err)
			}
			for key, label := range fetched {
				key = strings.ToLower(key)
				found[key] = label
				l.memory.Put(key, label)
			}
		}
	}

	l.logger.Debug("label lookup complete",
		"addresses", len(addresses),
		"labeled", len(found),
	)
	return found
}

// collectAddresses walks details and returns every distinct address,
// deduplicated case-insensitively, preserving first-seen spelling.
func collectAddresses(details []model.TransactionDetail) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	for _, d := range details {
		add(d.From.Address)
		add(d.To.Address)
		for _, tr := range d.InternalTransactions {
			add(tr.From.Address)
			add(tr.To.Address)
		}
		for _, tr := range d.TokenTransfers {
			add(tr.From.Address)
			add(tr.To.Address)
		}
	}
	return out
}

func enrich(ep *model.Endpoint, found map[string]model.AddressLabel) {
	if ep.Address == "" || ep.Label != nil {
		return
	}
	if label, ok := found[strings.ToLower(ep.Address)]; ok {
		ep.Label = &label
	}
}
