package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestClient(baseURL string) *Client {
	c := NewClient(Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		SecretKey:  "test-secret",
		Passphrase: "test-pass",
		Timeout:    5 * time.Second,
	}, testLogger())
	c.nowFn = func() time.Time {
		return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	}
	return c
}

func TestListTransactions(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Write([]byte(`{"code":"0","msg":"","data":[{"transactions":[
			{"chainIndex":"1","txHash":"0xaaa","txTime":"1730000000000"},
			{"chainIndex":"1","txHash":"0xbbb","txTime":"1730000100000"}
		]}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	batches, err := client.ListTransactions(context.Background(), "0xUser", "1", 20)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Transactions, 2)
	assert.Equal(t, "0xaaa", batches[0].Transactions[0].TxHash)
	assert.Equal(t, "1730000100000", batches[0].Transactions[1].TxTime)

	// Auth headers
	require.NotNil(t, gotReq)
	assert.Equal(t, "test-key", gotReq.Header.Get("OK-ACCESS-KEY"))
	assert.Equal(t, "test-pass", gotReq.Header.Get("OK-ACCESS-PASSPHRASE"))
	assert.Equal(t, "2025-11-01T12:00:00.000Z", gotReq.Header.Get("OK-ACCESS-TIMESTAMP"))

	// Signature covers timestamp + method + path + "?" + sorted query.
	message := "2025-11-01T12:00:00.000ZGET" + transactionsByAddressPath + "?address=0xUser&chains=1&limit=20"
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(message))
	expectedSign := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, expectedSign, gotReq.Header.Get("OK-ACCESS-SIGN"))
}

func TestGetDetailMultipleRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "8453", r.URL.Query().Get("chainIndex"))
		assert.Equal(t, "0xabc", r.URL.Query().Get("txHash"))
		w.Write([]byte(`{"code":"0","msg":"","data":[
			{"txhash":"0xabc","chainIndex":"8453","fromDetails":[{"address":"0xSender","isContract":false}],"toDetails":["0xReceiver"]},
			{"txhash":"0xl1origin","chainIndex":"1","fromDetails":["0xSequencer"]}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	details, err := client.GetDetail(context.Background(), "8453", "0xabc")
	require.NoError(t, err)
	require.Len(t, details, 2)

	assert.Equal(t, "0xabc", details[0].TxHash)
	assert.Equal(t, "0xSender", details[0].FromDetails[0].Address)
	// Bare-string endpoints normalise into the structured form.
	assert.Equal(t, "0xReceiver", details[0].ToDetails[0].Address)
	assert.Equal(t, "0xl1origin", details[1].TxHash)
}

func TestGetDetailBusinessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51000","msg":"Parameter txHash error","data":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetDetail(context.Background(), "1", "bad-hash")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "51000", apiErr.Code)
	assert.Contains(t, apiErr.Msg, "Parameter")
}

func TestGetDetailHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetDetail(context.Background(), "1", "0xabc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 503")
}

func TestListTransactionsNullData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":null}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	batches, err := client.ListTransactions(context.Background(), "0xUser", "1", 20)
	require.NoError(t, err)
	assert.Empty(t, batches)
}
