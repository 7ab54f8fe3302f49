// Package arkham resolves address intelligence labels through the
// Arkham scraper actor hosted on Apify. Labels identify what an address
// is (exchange wallet, DeFi protocol, bridge, known entity) so the
// analysis stage can reason about counterparties instead of raw hex.
package arkham

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
)

// LabelSource abstracts the label provider for testing.
type LabelSource interface {
	GetLabels(ctx context.Context, addresses []string) (map[string]model.AddressLabel, error)
}

type Config struct {
	BaseURL string
	Token   string
	ActorID string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		// Actor runs scrape live pages and regularly take tens of seconds.
		timeout = 2 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger.With("component", "arkham_client"),
	}
}

type runInput struct {
	WalletAddresses    []string    `json:"walletAddresses"`
	DataType           string      `json:"dataType"`
	ProxyConfiguration proxyConfig `json:"proxyConfiguration"`
}

type proxyConfig struct {
	UseApifyProxy bool `json:"useApifyProxy"`
}

// chainEntry is the per-chain intelligence record inside a dataset item.
type chainEntry struct {
	Address      string `json:"address"`
	ArkhamEntity *struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"arkhamEntity"`
	ArkhamLabel *struct {
		Name string `json:"name"`
	} `json:"arkhamLabel"`
	PopulatedTags []struct {
		Label string `json:"label"`
	} `json:"populatedTags"`
}

// GetLabels runs the actor synchronously for a batch of addresses and
// returns the labels keyed by lowercased address. Entries with neither
// a name nor tags are dropped.
func (c *Client) GetLabels(ctx context.Context, addresses []string) (map[string]model.AddressLabel, error) {
	if len(addresses) == 0 {
		return map[string]model.AddressLabel{}, nil
	}

	body, err := json.Marshal(runInput{
		WalletAddresses:    addresses,
		DataType:           "intelligence",
		ProxyConfiguration: proxyConfig{UseApifyProxy: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	url := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s", c.cfg.BaseURL, c.cfg.ActorID, c.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("resolving address labels", "addresses", len(addresses))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	// Each dataset item is keyed by chain; every value that looks like
	// an intelligence record contributes one label.
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &items); err != nil {
		return nil, fmt.Errorf("unmarshal dataset items: %w", err)
	}

	labels := make(map[string]model.AddressLabel)
	for _, item := range items {
		for _, raw := range item {
			var entry chainEntry
			if err := json.Unmarshal(raw, &entry); err != nil || entry.Address == "" {
				continue
			}

			label := model.AddressLabel{}
			if entry.ArkhamEntity != nil {
				label.Name = entry.ArkhamEntity.Name
				label.Type = entry.ArkhamEntity.Type
			} else if entry.ArkhamLabel != nil {
				label.Name = entry.ArkhamLabel.Name
			}
			for _, tag := range entry.PopulatedTags {
				if tag.Label != "" {
					label.Tags = append(label.Tags, tag.Label)
				}
			}

			if label.IsEmpty() {
				continue
			}
			labels[strings.ToLower(entry.Address)] = label
		}
	}

	c.logger.Info("address labels resolved", "requested", len(addresses), "labeled", len(labels))
	return labels, nil
}
