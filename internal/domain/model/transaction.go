package model

// TxIdentifier references a single on-chain transaction taken from a
// summary listing. Timestamp is the formatted display time
// ("2006-01-02 15:04:05"), empty when the upstream millisecond value
// was missing or malformed.
type TxIdentifier struct {
	ChainIndex string `json:"chainIndex"`
	TxHash     string `json:"txHash"`
	Timestamp  string `json:"timestamp"`
}

// Transfer is one value movement inside a transaction, either a
// native-coin internal transfer or a token transfer.
type Transfer struct {
	From   Endpoint `json:"from"`
	To     Endpoint `json:"to"`
	Amount string   `json:"amount"`
	Symbol string   `json:"symbol,omitempty"`
}

// TransactionDetail is the cleaned, explorer-shaped view of one
// transaction, ready for labeling and AI analysis. JSON field names
// match the persisted cache format.
type TransactionDetail struct {
	TxHash     string `json:"txhash"`
	TxStatus   string `json:"txStatus"`
	Height     string `json:"height"`
	TxTime     string `json:"txTime"`
	ChainIndex string `json:"chainIndex"`

	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`

	Amount string `json:"amount"`
	Symbol string `json:"symbol"`

	// GasLimit and GasUsed are costs in the chain's native coin
	// (units * price); GasPrice is in Gwei.
	GasLimit string `json:"gasLimit"`
	GasUsed  string `json:"gasUsed"`
	GasPrice string `json:"gasPrice"`
	TxFee    string `json:"txFee"`

	Nonce        string `json:"nonce"`
	MethodID     string `json:"methodId"`
	L1OriginHash string `json:"l1OriginHash"`

	// IsUserInitiated marks transactions whose first sender equals the
	// queried address (case-insensitive). It drives token transfer
	// filtering and is a primary signal for the analysis prompt.
	IsUserInitiated bool `json:"isUserInitiated"`

	InternalTransactions []Transfer `json:"internalTransactions"`
	TokenTransfers       []Transfer `json:"tokenTransfers"`

	AIAnalysis string `json:"ai_analysis,omitempty"`
}
