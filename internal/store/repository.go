package store

import (
	"context"
	"encoding/json"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
)

// CachedDetail is one cached transaction: the provider detail record
// exactly as fetched, plus the AI analysis if one has been attached.
// The raw payload is address-neutral; cleaning it for a queried address
// is the caller's job on every read.
type CachedDetail struct {
	Raw      json.RawMessage
	Analysis string
}

// DetailStore caches raw transaction detail records and their
// per-transaction AI analyses, keyed by transaction hash.
//
// Batch reads return only the keys that are present; a missing key is not
// an error. Write failures are returned for the caller to log and swallow:
// the cache is an optimisation, never a correctness dependency.
type DetailStore interface {
	// GetDetails returns the cached records for the given hashes.
	GetDetails(ctx context.Context, txHashes []string) (map[string]CachedDetail, error)
	// PutDetail stores one raw detail record under its transaction hash.
	PutDetail(ctx context.Context, queriedAddress, txHash, chainIndex string, raw json.RawMessage) error
	// PutAnalysis attaches an AI analysis to an already cached record.
	PutAnalysis(ctx context.Context, txHash string, analysis string) error
}

// LabelStore caches address intelligence labels keyed by lowercased address.
type LabelStore interface {
	GetLabels(ctx context.Context, addresses []string) (map[string]model.AddressLabel, error)
	PutLabels(ctx context.Context, labels map[string]model.AddressLabel) error
}

// ChatStore persists the per-address report context and conversation
// history backing follow-up Q&A sessions.
type ChatStore interface {
	SaveChatContext(ctx context.Context, address, report, corpus string) error
	LoadChatContext(ctx context.Context, address string) (report, corpus string, err error)
	AppendChatMessage(ctx context.Context, address string, msg model.ChatMessage) error
	LoadChatHistory(ctx context.Context, address string) ([]model.ChatMessage, error)
}

// Store is the full cache surface the pipeline runs against. The three
// domains share a backend but are not transactional with each other.
type Store interface {
	DetailStore
	LabelStore
	ChatStore

	Close() error
}
