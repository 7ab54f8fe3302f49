package redis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
)

// testStore connects to the Redis named by TEST_REDIS_URL. Without it
// the test is skipped; these tests need a real server.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := NewStore(url, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_DetailRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	hash := "0xtest-" + uuid.NewString()[:8]

	raw := json.RawMessage(`{"txHash":"` + hash + `","txStatus":"success","chainIndex":"1"}`)
	require.NoError(t, st.PutDetail(ctx, "0xuser", hash, "1", raw))
	require.NoError(t, st.PutAnalysis(ctx, hash, "a transfer"))

	got, err := st.GetDetails(ctx, []string{hash, "0xmissing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, string(raw), string(got[hash].Raw))
	assert.Equal(t, "a transfer", got[hash].Analysis)
}

func TestStore_LabelRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	addr := "0xLabel" + uuid.NewString()[:8]

	require.NoError(t, st.PutLabels(ctx, map[string]model.AddressLabel{
		addr: {Name: "Known Entity", Tags: []string{"defi"}},
	}))

	got, err := st.GetLabels(ctx, []string{addr})
	require.NoError(t, err)
	require.Len(t, got, 1)
	for _, label := range got {
		assert.Equal(t, "Known Entity", label.Name)
	}
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
		Role: model.ChatRoleUser, Content: "hello",
	}))
	history, err := st.LoadChatHistory(ctx, addr)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}
