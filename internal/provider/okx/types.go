package okx

import (
	"fmt"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
)

// SummaryTransaction is one entry in the transactions-by-address
// listing. TxTime is a millisecond epoch string.
type SummaryTransaction struct {
	ChainIndex string `json:"chainIndex"`
	TxHash     string `json:"txHash"`
	TxTime     string `json:"txTime"`
}

// SummaryBatch groups summary transactions. The upstream API may return
// several batches per query.
type SummaryBatch struct {
	Transactions []SummaryTransaction `json:"transactions"`
}

// RawInternalTransfer is a native-coin movement produced by contract
// execution inside a transaction.
type RawInternalTransfer struct {
	From           string `json:"from"`
	To             string `json:"to"`
	IsFromContract bool   `json:"isFromContract"`
	IsToContract   bool   `json:"isToContract"`
	Amount         string `json:"amount"`
}

// RawTokenTransfer is a token movement inside a transaction.
type RawTokenTransfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Symbol string `json:"symbol"`
}

// RawDetail is the upstream wire shape of a full transaction detail.
// FromDetails/ToDetails entries arrive as bare strings on some chains
// and as objects on others; model.Endpoint absorbs both.
type RawDetail struct {
	TxHash     string           `json:"txhash"`
	TxStatus   string           `json:"txStatus"`
	Height     string           `json:"height"`
	TxTime     string           `json:"txTime"`
	ChainIndex string           `json:"chainIndex"`
	FromDetails []model.Endpoint `json:"fromDetails"`
	ToDetails   []model.Endpoint `json:"toDetails"`

	Amount   string `json:"amount"`
	Symbol   string `json:"symbol"`
	GasLimit string `json:"gasLimit"`
	GasUsed  string `json:"gasUsed"`
	GasPrice string `json:"gasPrice"`
	TxFee    string `json:"txFee"`

	Nonce        string `json:"nonce"`
	MethodID     string `json:"methodId"`
	L1OriginHash string `json:"l1OriginHash"`

	InternalTransactionDetails []RawInternalTransfer `json:"internalTransactionDetails"`
	TokenTransferDetails       []RawTokenTransfer    `json:"tokenTransferDetails"`
}

// APIError is a business-level rejection: the HTTP exchange succeeded
// but the API answered with a non-zero status code.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("okx api error code=%s: %s", e.Code, e.Msg)
}

type envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
