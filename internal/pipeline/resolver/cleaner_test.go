package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
)

const userAddr = "0xUserAddress"

func TestCleanDetail_BasicFields(t *testing.T) {
	raw := okx.RawDetail{
		TxHash:     "0xabc",
		TxStatus:   "success",
		Height:     "19000000",
		TxTime:     "1700000000000",
		ChainIndex: "1",
		FromDetails: []model.Endpoint{
			{Address: "0xuseraddress"},
		},
		ToDetails: []model.Endpoint{
			{Address: "0xRouter", IsContract: true},
		},
		Amount:   "0.5",
		Symbol:   "ETH",
		GasLimit: "50000",
		GasUsed:  "21000",
		GasPrice: "20000000000",
		TxFee:    "0.00042",
		Nonce:    "7",
		MethodID: "0xa9059cbb",
	}

	d := CleanDetail(raw, userAddr)

	assert.Equal(t, "0xabc", d.TxHash)
	assert.Equal(t, "success", d.TxStatus)
	assert.Equal(t, "2023-11-14 22:13:20", d.TxTime)
	assert.Equal(t, "0xuseraddress", d.From.Address)
	assert.Equal(t, "0xRouter", d.To.Address)
	assert.True(t, d.To.IsContract)
	assert.True(t, d.IsUserInitiated, "case-insensitive match on the sender")

	// 21000 * 20 gwei = 0.00042 ETH, 50000 * 20 gwei = 0.001 ETH.
	assert.Equal(t, "0.00042", d.GasUsed)
	assert.Equal(t, "0.001", d.GasLimit)
	assert.Equal(t, "20", d.GasPrice)
}

func TestCleanDetail_NotUserInitiated(t *testing.T) {
	raw := okx.RawDetail{
		TxHash:      "0xdef",
		FromDetails: []model.Endpoint{{Address: "0xSomeoneElse"}},
		ToDetails:   []model.Endpoint{{Address: "0xuseraddress"}},
	}

	d := CleanDetail(raw, userAddr)
	assert.False(t, d.IsUserInitiated)
}

func TestCleanDetail_EmptyEndpointsAndGas(t *testing.T) {
	d := CleanDetail(okx.RawDetail{TxHash: "0x1"}, userAddr)

	assert.Empty(t, d.From.Address)
	assert.Empty(t, d.To.Address)
	assert.False(t, d.IsUserInitiated)
	assert.Equal(t, "0", d.GasUsed)
	assert.Equal(t, "0", d.GasLimit)
	assert.Equal(t, "0", d.GasPrice)
	assert.Empty(t, d.TxTime)
}

func TestFilterInternalTransfers(t *testing.T) {
	raws := []okx.RawInternalTransfer{
		// Zero amount: dropped.
		{From: "0xuseraddress", To: "0xa", Amount: "0"},
		// Touches the user: kept even when both ends are contracts.
		{From: "0xuseraddress", To: "0xb", Amount: "1.5",
			IsFromContract: true, IsToContract: true},
		// Contract to contract, unrelated to the user: dropped.
		{From: "0xc1", To: "0xc2", Amount: "2",
			IsFromContract: true, IsToContract: true},
		// One end is an external address: kept.
		{From: "0xc1", To: "0xeoa", Amount: "3", IsFromContract: true},
		// Unparseable amount counts as zero: dropped.
		{From: "0xuseraddress", To: "0xd", Amount: "n/a"},
	}

	kept := filterInternalTransfers(raws, "0xuseraddress")
	require.Len(t, kept, 2)
	assert.Equal(t, "0xb", kept[0].To.Address)
	assert.Equal(t, "1.5", kept[0].Amount)
	assert.True(t, kept[0].From.IsContract)
	assert.Equal(t, "0xeoa", kept[1].To.Address)
}

func TestFilterTokenTransfers_UserInitiatedKeepsAll(t *testing.T) {
	raws := []okx.RawTokenTransfer{
		{From: "0xuseraddress", To: "0xa", Amount: "100", Symbol: "USDT"},
		{From: "0xa", To: "0xb", Amount: "100", Symbol: "USDT"},
	}

	kept := filterTokenTransfers(raws, "0xuseraddress", true)
	assert.Len(t, kept, 2)
}

func TestFilterTokenTransfers_PassiveKeepsOnlyInbound(t *testing.T) {
	raws := []okx.RawTokenTransfer{
		{From: "0xa", To: "0xUserAddress", Amount: "100", Symbol: "USDT"},
		{From: "0xa", To: "0xb", Amount: "50", Symbol: "USDT"},
	}

	kept := filterTokenTransfers(raws, "0xuseraddress", false)
	require.Len(t, kept, 1)
	assert.Equal(t, "0xUserAddress", kept[0].To.Address)
	assert.Equal(t, "USDT", kept[0].Symbol)
}

func TestFormatScaled(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals int
		want     string
	}{
		{"whole number", "20000000000", 9, "20"},
		{"trims trailing zeros", "420000000000000", 18, "0.00042"},
		{"exact wei", "1", 18, "0.000000000000000001"},
		{"no fraction", "3000000000000000000", 18, "3"},
		{"sub-gwei", "1500000000", 9, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatScaled(parseBigInt(tt.value), tt.decimals))
		})
	}
}
