// Package bolt implements the store on an embedded bbolt database.
// It serves single-process deployments that have no PostgreSQL or
// Redis available.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
)

var (
	bucketDetails     = []byte("details")
	bucketAnalyses    = []byte("analyses")
	bucketLabels      = []byte("labels")
	bucketChatContext = []byte("chat_context")
	bucketChatHistory = []byte("chat_history")
)

// detailRecord keeps the queried address next to the raw provider
// payload so the file is self-describing.
type detailRecord struct {
	Address    string          `json:"address"`
	ChainIndex string          `json:"chainIndex"`
	Raw        json.RawMessage `json:"raw"`
}

type chatContext struct {
	Report string `json:"report"`
	Corpus string `json:"corpus"`
}

type Store struct {
	db     *bbolt.DB
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketDetails, bucketAnalyses, bucketLabels, bucketChatContext, bucketChatHistory,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "bolt_store"),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetDetails(ctx context.Context, txHashes []string) (map[string]store.CachedDetail, error) {
	out := make(map[string]store.CachedDetail)
	err := s.db.View(func(tx *bbolt.Tx) error {
		details := tx.Bucket(bucketDetails)
		analyses := tx.Bucket(bucketAnalyses)
		for _, hash := range txHashes {
			raw := details.Get([]byte(hash))
			if raw == nil {
				continue
			}
			var rec detailRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				s.logger.Warn("stored detail unreadable", "txHash", hash, "error", err)
				continue
			}
			cd := store.CachedDetail{Raw: append(json.RawMessage(nil), rec.Raw...)}
			if a := analyses.Get([]byte(hash)); a != nil {
				cd.Analysis = string(a)
			}
			out[hash] = cd
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get details: %w", err)
	}
	return out, nil
}

func (s *Store) PutDetail(ctx context.Context, queriedAddress, txHash, chainIndex string, raw json.RawMessage) error {
	rec, err := json.Marshal(detailRecord{Address: queriedAddress, ChainIndex: chainIndex, Raw: raw})
	if err != nil {
		return fmt.Errorf("marshal detail %s: %w", txHash, err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDetails).Put([]byte(txHash), rec)
	})
	if err != nil {
		return fmt.Errorf("put detail %s: %w", txHash, err)
	}
	return nil
}

func (s *Store) PutAnalysis(ctx context.Context, txHash, analysis string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAnalyses).Put([]byte(txHash), []byte(analysis))
	})
	if err != nil {
		return fmt.Errorf("put analysis %s: %w", txHash, err)
	}
	return nil
}

func (s *Store) GetLabels(ctx context.Context, addresses []string) (map[string]model.AddressLabel, error) {
	out := make(map[string]model.AddressLabel)
	err := s.db.View(func(tx *bbolt.Tx) error {
		labels := tx.Bucket(bucketLabels)
		for _, addr := range addresses {
			key := strings.ToLower(addr)
			raw := labels.Get([]byte(key))
			if raw == nil {
				continue
			}
			var label model.AddressLabel
			if err := json.Unmarshal(raw, &label); err != nil {
				s.logger.Warn("stored label unreadable", "address", key, "error", err)
				continue
			}
			out[key] = label
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get labels: %w", err)
	}
	return out, nil
}

func (s *Store) PutLabels(ctx context.Context, labels map[string]model.AddressLabel) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketLabels)
		for addr, label := range labels {
			raw, err := json.Marshal(label)
			if err != nil {
				return fmt.Errorf("marshal label %s: %w", addr, err)
			}
			if err := bucket.Put([]byte(strings.ToLower(addr)), raw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put labels: %w", err)
	}
	return nil
}

func (s *Store) SaveChatContext(ctx context.Context, address, report, corpus string) error {
	raw, err := json.Marshal(chatContext{Report: report, Corpus: corpus})
	if err != nil {
		return fmt.Errorf("marshal chat context: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChatContext).Put([]byte(strings.ToLower(address)), raw)
	})
	if err != nil {
		return fmt.Errorf("save chat context %s: %w", address, err)
	}
	return nil
}

func (s *Store) LoadChatContext(ctx context.Context, address string) (string, string, error) {
	var cc chatContext
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketChatContext).Get([]byte(strings.ToLower(address)))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &cc)
	})
	if err != nil {
		return "", "", fmt.Errorf("load chat context %s: %w", address, err)
	}
	return cc.Report, cc.Corpus, nil
}

func (s *Store) AppendChatMessage(ctx context.Context, address string, msg model.ChatMessage) error {
	key := []byte(strings.ToLower(address))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketChatHistory)

		var history []model.ChatMessage
		if raw := bucket.Get(key); raw != nil {
			if err := json.Unmarshal(raw, &history); err != nil {
				return fmt.Errorf("unmarshal history: %w", err)
			}
		}
		history = append(history, msg)

		raw, err := json.Marshal(history)
		if err != nil {
			return fmt.Errorf("marshal history: %w", err)
		}
		return bucket.Put(key, raw)
	})
	if err != nil {
		return fmt.Errorf("append chat message %s: %w", address, err)
	}
	return nil
}

func (s *Store) LoadChatHistory(ctx context.Context, address string) ([]model.ChatMessage, error) {
	var history []model.ChatMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketChatHistory).Get([]byte(strings.ToLower(address)))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &history)
	})
	if err != nil {
		return nil, fmt.Errorf("load chat history %s: %w", address, err)
	}
	return history, nil
}
