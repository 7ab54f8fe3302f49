//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/store/postgres"
)

// testDB prefers an external database from TEST_DB_URL and falls back
// to a Docker-based ephemeral PostgreSQL via testcontainers.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()
	url := os.Getenv("TEST_DB_URL")
	if url != "" {
		db, err := postgres.New(postgres.Config{
			URL:             url,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}
	return setupTestContainer(t)
}

func testStore(t *testing.T) *postgres.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return postgres.NewStore(testDB(t), logger)
}

func TestStore_DetailRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	hash := "0xtest-" + uuid.NewString()[:8]

	raw := json.RawMessage(`{"txHash":"` + hash + `","txStatus":"success","chainIndex":"1"}`)
	require.NoError(t, st.PutDetail(ctx, "0xuser", hash, "1", raw))

	got, err := st.GetDetails(ctx, []string{hash, "0xmissing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, string(raw), string(got[hash].Raw))
	assert.Empty(t, got[hash].Analysis)

	// Upsert replaces the stored payload.
	updated := json.RawMessage(`{"txHash":"` + hash + `","txStatus":"fail","chainIndex":"1"}`)
	require.NoError(t, st.PutDetail(ctx, "0xuser", hash, "1", updated))
	got, err = st.GetDetails(ctx, []string{hash})
	require.NoError(t, err)
	assert.JSONEq(t, string(updated), string(got[hash].Raw))
}

func TestStore_PutAnalysis(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	hash := "0xtest-" + uuid.NewString()[:8]

	require.NoError(t, st.PutDetail(ctx, "0xuser", hash, "1",
		json.RawMessage(`{"txHash":"`+hash+`"}`)))
	require.NoError(t, st.PutAnalysis(ctx, hash, "swap on a DEX"))

	got, err := st.GetDetails(ctx, []string{hash})
	require.NoError(t, err)
	assert.Equal(t, "swap on a DEX", got[hash].Analysis)
}

func TestStore_LabelRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	addr := "0xLabel" + uuid.NewString()[:8]

	labels := map[string]model.AddressLabel{
		addr: {Name: "Binance Hot Wallet", Type: "cex", Tags: []string{"exchange"}},
	}
	require.NoError(t, st.PutLabels(ctx, labels))

	// Lookups are case-insensitive.
	got, err := st.GetLabels(ctx, []string{addr})
	require.NoError(t, err)
	require.Len(t, got, 1)

	key := ""
	for k := range got {
		key = k
	}
	assert.Equal(t, "Binance Hot Wallet", got[key].Name)
	assert.Equal(t, []string{"exchange"}, got[key].Tags)
}

func TestStore_ChatContextAndHistory(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	addr := "0xChat" + uuid.NewString()[:8]

	report, corpus, err := st.LoadChatContext(ctx, addr)
	require.NoError(t, err)
	assert.Empty(t, report)
	assert.Empty(t, corpus)

	require.NoError(t, st.SaveChatContext(ctx, addr, "the report", "the corpus"))
	report, corpus, err = st.LoadChatContext(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "the report", report)
	assert.Equal(t, "the corpus", corpus)

	require.NoError(t, st.AppendChatMessage(ctx, addr, model.ChatMessage{
		Role: model.ChatRoleUser, Content: "who is this?",
	}))
	require.NoError(t, st.AppendChatMessage(ctx, addr, model.ChatMessage{
		Role: model.ChatRoleAssistant, Content: "a trader",
	}))

	history, err := st.LoadChatHistory(ctx, addr)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ChatRoleUser, history[0].Role)
	assert.Equal(t, "a trader", history[1].Content)
}
