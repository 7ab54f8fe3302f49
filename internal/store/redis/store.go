// Package redis implements the store on Redis. Details, labels and
// chat context live in plain keys; chat history uses a list so
// messages stay in insertion order.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
)

const (
	keyDetail      = "analyzer:detail:"
	keyAnalysis    = "analyzer:analysis:"
	keyLabel       = "analyzer:label:"
	keyChatContext = "analyzer:chat:context:"
	keyChatHistory = "analyzer:chat:history:"
)

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
	client *redis.Client
	logger *slog.Logger
}

func NewStore(url string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{
		client: client,
		logger: logger.With("component", "redis_store"),
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) GetDetails(ctx context.Context, txHashes []string) (map[string]store.CachedDetail, error) {
	if len(txHashes) == 0 {
		return map[string]store.CachedDetail{}, nil
	}

	detailKeys := make([]string, 0, len(txHashes))
	analysisKeys := make([]string, 0, len(txHashes))
	for _, h := range txHashes {
		detailKeys = append(detailKeys, keyDetail+h)
		analysisKeys = append(analysisKeys, keyAnalysis+h)
	}

	detailVals, err := s.client.MGet(ctx, detailKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget details: %w", err)
	}
	analysisVals, err := s.client.MGet(ctx, analysisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget analyses: %w", err)
	}

	out := make(map[string]store.CachedDetail)
	for i, v := range detailVals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec detailRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("stored detail unreadable", "txHash", txHashes[i], "error", err)
			continue
		}
		cd := store.CachedDetail{Raw: rec.Raw}
		if a, ok := analysisVals[i].(string); ok {
			cd.Analysis = a
		}
		out[txHashes[i]] = cd
	}
	return out, nil
}

func (s *Store) PutDetail(ctx context.Context, queriedAddress, txHash, chainIndex string, raw json.RawMessage) error {
	rec, err := json.Marshal(detailRecord{Address: queriedAddress, ChainIndex: chainIndex, Raw: raw})
	if err != nil {
		return fmt.Errorf("marshal detail %s: %w", txHash, err)
	}
	if err := s.client.Set(ctx, keyDetail+txHash, rec, 0).Err(); err != nil {
		return fmt.Errorf("set detail %s: %w", txHash, err)
	}
	return nil
}

func (s *Store) PutAnalysis(ctx context.Context, txHash, analysis string) error {
	if err := s.client.Set(ctx, keyAnalysis+txHash, analysis, 0).Err(); err != nil {
		return fmt.Errorf("set analysis %s: %w", txHash, err)
	}
	return nil
}

func (s *Store) GetLabels(ctx context.Context, addresses []string) (map[string]model.AddressLabel, error) {
	if len(addresses) == 0 {
		return map[string]model.AddressLabel{}, nil
	}

	keys := make([]string, 0, len(addresses))
	lowered := make([]string, 0, len(addresses))
	for _, a := range addresses {
		key := strings.ToLower(a)
		lowered = append(lowered, key)
		keys = append(keys, keyLabel+key)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget labels: %w", err)
	}

	out := make(map[string]model.AddressLabel)
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var label model.AddressLabel
		if err := json.Unmarshal([]byte(raw), &label); err != nil {
			s.logger.Warn("stored label unreadable", "address", lowered[i], "error", err)
			continue
		}
		out[lowered[i]] = label
	}
	return out, nil
}

func (s *Store) PutLabels(ctx context.Context, labels map[string]model.AddressLabel) error {
	if len(labels) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for addr, label := range labels {
		raw, err := json.Marshal(label)
		if err != nil {
			return fmt.Errorf("marshal label %s: %w", addr, err)
		}
		pipe.Set(ctx, keyLabel+strings.ToLower(addr), raw, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set labels: %w", err)
	}
	return nil
}

func (s *Store) SaveChatContext(ctx context.Context, address, report, corpus string) error {
	raw, err := json.Marshal(chatContext{Report: report, Corpus: corpus})
	if err != nil {
		return fmt.Errorf("marshal chat context: %w", err)
	}
	if err := s.client.Set(ctx, keyChatContext+strings.ToLower(address), raw, 0).Err(); err != nil {
		return fmt.Errorf("save chat context %s: %w", address, err)
	}
	return nil
}

func (s *Store) LoadChatContext(ctx context.Context, address string) (string, string, error) {
	raw, err := s.client.Get(ctx, keyChatContext+strings.ToLower(address)).Result()
	if err == redis.Nil {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("load chat context %s: %w", address, err)
	}
	var cc chatContext
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		return "", "", fmt.Errorf("unmarshal chat context %s: %w", address, err)
	}
	return cc.Report, cc.Corpus, nil
}

func (s *Store) AppendChatMessage(ctx context.Context, address string, msg model.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	if err := s.client.RPush(ctx, keyChatHistory+strings.ToLower(address), raw).Err(); err != nil {
		return fmt.Errorf("append chat message %s: %w", address, err)
	}
	return nil
}

func (s *Store) LoadChatHistory(ctx context.Context, address string) ([]model.ChatMessage, error) {
	vals, err := s.client.LRange(ctx, keyChatHistory+strings.ToLower(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat history %s: %w", address, err)
	}

	var history []model.ChatMessage
	for _, v := range vals {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal chat message: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}
