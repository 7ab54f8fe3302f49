// Package postgres persists transaction details, address labels and
// chat sessions in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store"
)

// Store implements store.Store on top of a shared connection pool.
type Store struct {
	db     *DB
	logger *slog.Logger
}

func NewStore(db *DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "postgres_store"),
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetDetails(ctx context.Context, txHashes []string) (map[string]store.CachedDetail, error) {
	if len(txHashes) == 0 {
		return map[string]store.CachedDetail{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, detail, COALESCE(ai_analysis, '')
		FROM transactions
		WHERE tx_hash = ANY($1)
	`, pq.Array(txHashes))
	if err != nil {
		return nil, fmt.Errorf("query details: %w", err)
	}
	defer rows.Close()

	out := make(map[string]store.CachedDetail)
	for rows.Next() {
		var (
			txHash   string
			raw      []byte
			analysis string
		)
		if err := rows.Scan(&txHash, &raw, &analysis); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		out[txHash] = store.CachedDetail{Raw: raw, Analysis: analysis}
	}
	return out, rows.Err()
}

func (s *Store) PutDetail(ctx context.Context, queriedAddress, txHash, chainIndex string, raw json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (tx_hash, chain_index, address, detail)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tx_hash) DO UPDATE SET
			chain_index = EXCLUDED.chain_index,
			address     = EXCLUDED.address,
			detail      = EXCLUDED.detail,
			updated_at  = now()
	`, txHash, chainIndex, queriedAddress, []byte(raw))
	if err != nil {
		return fmt.Errorf("upsert detail %s: %w", txHash, err)
	}
	return nil
}

func (s *Store) PutAnalysis(ctx context.Context, txHash, analysis string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET ai_analysis = $2, updated_at = now()
		WHERE tx_hash = $1
	`, txHash, analysis)
	if err != nil {
		return fmt.Errorf("update analysis %s: %w", txHash, err)
	}
	return nil
}

func (s *Store) GetLabels(ctx context.Context, addresses []string) (map[string]model.AddressLabel, error) {
	if len(addresses) == 0 {
		return map[string]model.AddressLabel{}, nil
	}

	keys := make([]string, 0, len(addresses))
	for _, a := range addresses {
		keys = append(keys, strings.ToLower(a))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT address, label
		FROM address_labels
		WHERE address = ANY($1)
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.AddressLabel)
	for rows.Next() {
		var (
			address string
			raw     []byte
		)
		if err := rows.Scan(&address, &raw); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		var label model.AddressLabel
		if err := json.Unmarshal(raw, &label); err != nil {
			s.logger.Warn("stored label unreadable", "address", address, "error", err)
			continue
		}
		out[address] = label
	}
	return out, rows.Err()
}

func (s *Store) PutLabels(ctx context.Context, labels map[string]model.AddressLabel) error {
	if len(labels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin labels tx: %w", err)
	}
	defer tx.Rollback()

	for address, label := range labels {
		raw, err := json.Marshal(label)
		if err != nil {
			return fmt.Errorf("marshal label %s: %w", address, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO address_labels (address, label)
			VALUES ($1, $2)
			ON CONFLICT (address) DO UPDATE SET
				label      = EXCLUDED.label,
				updated_at = now()
		`, strings.ToLower(address), raw); err != nil {
			return fmt.Errorf("upsert label %s: %w", address, err)
		}
	}
	return tx.Commit()
}

func (s *Store) SaveChatContext(ctx context.Context, address, report, corpus string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_context (address, report, corpus)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET
			report     = EXCLUDED.report,
			corpus     = EXCLUDED.corpus,
			updated_at = now()
	`, strings.ToLower(address), report, corpus)
	if err != nil {
		return fmt.Errorf("save chat context %s: %w", address, err)
	}
	return nil
}

func (s *Store) LoadChatContext(ctx context.Context, address string) (string, string, error) {
	var report, corpus string
	err := s.db.QueryRowContext(ctx, `
		SELECT report, corpus FROM chat_context WHERE address = $1
	`, strings.ToLower(address)).Scan(&report, &corpus)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("load chat context %s: %w", address, err)
	}
	return report, corpus, nil
}

func (s *Store) AppendChatMessage(ctx context.Context, address string, msg model.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_history (address, role, content)
		VALUES ($1, $2, $3)
	`, strings.ToLower(address), msg.Role, msg.Content)
	if err != nil {
		return fmt.Errorf("append chat message %s: %w", address, err)
	}
	return nil
}

func (s *Store) LoadChatHistory(ctx context.Context, address string) ([]model.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM chat_history
		WHERE address = $1
		ORDER BY id ASC
	`, strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("load chat history %s: %w", address, err)
	}
	defer rows.Close()

	var history []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}
