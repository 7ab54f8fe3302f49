// Package extractor turns raw transaction summary batches into a
// deduplicated, ordered list of transaction identifiers.
package extractor

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
)

const displayLayout = "2006-01-02 15:04:05"

// Extractor flattens summary batches into identifiers, keeping the
// first occurrence of each txHash. Downstream stages rely on the
// resulting order as the canonical transaction order for a run.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract walks batches in order and returns one identifier per unique
// txHash. Entries with an empty hash are dropped. Timestamps are
// converted from epoch milliseconds to a display string; values that
// are not purely numeric produce an empty timestamp rather than an
// error.
func (e *Extractor) Extract(batches []okx.SummaryBatch) []model.TxIdentifier {
	seen := make(map[string]struct{})
	var out []model.TxIdentifier

	total := 0
	for _, batch := range batches {
		for _, tx := range batch.Transactions {
			total++
			if tx.TxHash == "" {
				continue
			}
			if _, ok := seen[tx.TxHash]; ok {
				metrics.ExtractorDuplicatesSkipped.Inc()
				continue
			}
			seen[tx.TxHash] = struct{}{}

			out = append(out, model.TxIdentifier{
				ChainIndex: tx.ChainIndex,
				TxHash:     tx.TxHash,
				Timestamp:  FormatTimestamp(tx.TxTime),
			})
			metrics.ExtractorIdentifiersTotal.Inc()
		}
	}

	e.logger.Debug("extracted identifiers",
		"summaries", total,
		"unique", len(out),
	)
	return out
}

// FormatTimestamp converts an epoch-milliseconds string into
// "2006-01-02 15:04:05" UTC. Non-numeric or empty input returns "".
func FormatTimestamp(ms string) string {
	if ms == "" {
		return ""
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil || v < 0 {
		return ""
	}
	return time.UnixMilli(v).UTC().Format(displayLayout)
}
