package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	transactionsByAddressPath = "/api/v6/dex/post-transaction/transactions-by-address"
	transactionDetailPath     = "/api/v6/dex/post-transaction/transaction-detail-by-txhash"

	// Signature timestamps are ISO 8601 UTC with millisecond precision.
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// TransactionSource abstracts the upstream transaction data API for testing.
type TransactionSource interface {
	ListTransactions(ctx context.Context, address, chains string, limit int) ([]SummaryBatch, error)
	GetDetail(ctx context.Context, chainIndex, txHash string) ([]RawDetail, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	Passphrase string
	Timeout    time.Duration
}

// Client talks to the OKX Web3 transaction data API. Every request is
// HMAC-SHA256 signed over timestamp + method + path + query.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
	nowFn      func() time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger.With("component", "okx_client"),
		nowFn:      time.Now,
	}
}

// ListTransactions fetches the recent transaction summaries for an
// address across the given comma-separated chain list.
func (c *Client) ListTransactions(ctx context.Context, address, chains string, limit int) ([]SummaryBatch, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("chains", chains)
	query.Set("limit", strconv.Itoa(limit))

	var batches []SummaryBatch
	if err := c.get(ctx, transactionsByAddressPath, query, &batches); err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", address, err)
	}
	return batches, nil
}

// GetDetail fetches the full detail records for one transaction hash.
// Some chains return more than one record per hash (e.g. L2 rollups
// reporting both layers); callers must handle each record on its own.
func (c *Client) GetDetail(ctx context.Context, chainIndex, txHash string) ([]RawDetail, error) {
	query := url.Values{}
	query.Set("chainIndex", chainIndex)
	query.Set("txHash", txHash)

	var details []RawDetail
	if err := c.get(ctx, transactionDetailPath, query, &details); err != nil {
		return nil, fmt.Errorf("get detail for %s: %w", txHash, err)
	}
	return details, nil
}

func (c *Client) get(ctx context.Context, requestPath string, query url.Values, out any) error {
	queryString := query.Encode()
	timestamp := c.nowFn().UTC().Format(timestampLayout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+requestPath+"?"+queryString, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("OK-ACCESS-SIGN", c.sign(timestamp, http.MethodGet, requestPath, queryString))
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.cfg.Passphrase)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Code != "0" {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}

	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(payload.Data) == 0 || string(payload.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}

// sign computes the request signature: Base64(HMAC-SHA256(secret,
// timestamp + method + path + "?" + query)).
func (c *Client) sign(timestamp, method, requestPath, queryString string) string {
	message := timestamp + method + requestPath + "?" + queryString
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
