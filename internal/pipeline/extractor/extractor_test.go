package extractor

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract_DeduplicatesByFirstSeen(t *testing.T) {
	e := New(testLogger())

	batches := []okx.SummaryBatch{
		{Transactions: []okx.SummaryTransaction{
			{ChainIndex: "1", TxHash: "0xaaa", TxTime: "1700000000000"},
			{ChainIndex: "1", TxHash: "0xbbb", TxTime: "1700000001000"},
		}},
		{Transactions: []okx.SummaryTransaction{
			// Same hash, different metadata: the first occurrence wins.
			{ChainIndex: "56", TxHash: "0xaaa", TxTime: "1700000002000"},
			{ChainIndex: "1", TxHash: "0xccc", TxTime: "1700000003000"},
		}},
	}

	ids := e.Extract(batches)
	require.Len(t, ids, 3)

	assert.Equal(t, "0xaaa", ids[0].TxHash)
	assert.Equal(t, "1", ids[0].ChainIndex)
	assert.Equal(t, "0xbbb", ids[1].TxHash)
	assert.Equal(t, "0xccc", ids[2].TxHash)
}

func TestExtract_SkipsEmptyHashes(t *testing.T) {
	e := New(testLogger())

	batches := []okx.SummaryBatch{
		{Transactions: []okx.SummaryTransaction{
			{ChainIndex: "1", TxHash: "", TxTime: "1700000000000"},
			{ChainIndex: "1", TxHash: "0xaaa", TxTime: "1700000001000"},
		}},
	}

	ids := e.Extract(batches)
	require.Len(t, ids, 1)
	assert.Equal(t, "0xaaa", ids[0].TxHash)
}

func TestExtract_EmptyInput(t *testing.T) {
	e := New(testLogger())

	assert.Empty(t, e.Extract(nil))
	assert.Empty(t, e.Extract([]okx.SummaryBatch{{}}))
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid milliseconds", "1700000000000", "2023-11-14 22:13:20"},
		{"zero", "0", "1970-01-01 00:00:00"},
		{"empty", "", ""},
		{"non-numeric", "yesterday", ""},
		{"mixed digits", "17000x0000", ""},
		{"negative", "-1000", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.input))
		})
	}
}
