package resolver

import (
	"math/big"
	"strings"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline/extractor"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/provider/okx"
)

var (
	weiPerEth  = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	weiPerGwei = big.NewInt(1_000_000_000)
)

// CleanDetail normalizes one raw detail record into the explorer-style
// shape persisted and fed to analysis. userAddress decides transfer
// filtering and the isUserInitiated flag.
func CleanDetail(raw okx.RawDetail, userAddress string) model.TransactionDetail {
	userLower := strings.ToLower(userAddress)

	var from, to model.Endpoint
	if len(raw.FromDetails) > 0 {
		from = raw.FromDetails[0]
	}
	if len(raw.ToDetails) > 0 {
		to = raw.ToDetails[0]
	}

	isUserInitiated := from.Address != "" && strings.ToLower(from.Address) == userLower

	gasPriceWei := parseBigInt(raw.GasPrice)

	detail := model.TransactionDetail{
		TxHash:          raw.TxHash,
		TxStatus:        raw.TxStatus,
		Height:          raw.Height,
		TxTime:          extractor.FormatTimestamp(raw.TxTime),
		ChainIndex:      raw.ChainIndex,
		From:            from,
		To:              to,
		Amount:          raw.Amount,
		Symbol:          raw.Symbol,
		GasLimit:        computeGasCost(raw.GasLimit, gasPriceWei),
		GasUsed:         computeGasCost(raw.GasUsed, gasPriceWei),
		GasPrice:        formatGwei(gasPriceWei),
		TxFee:           raw.TxFee,
		Nonce:           raw.Nonce,
		MethodID:        raw.MethodID,
		L1OriginHash:    raw.L1OriginHash,
		IsUserInitiated: isUserInitiated,
		InternalTransactions: filterInternalTransfers(
			raw.InternalTransactionDetails, userLower),
		TokenTransfers: filterTokenTransfers(
			raw.TokenTransferDetails, userLower, isUserInitiated),
	}
	return detail
}

// filterInternalTransfers keeps transfers that either touch the user
// address or have at least one non-contract endpoint. Zero-amount
// transfers are dropped outright.
func filterInternalTransfers(raw []okx.RawInternalTransfer, userLower string) []model.Transfer {
	var kept []model.Transfer
	for _, tx := range raw {
		if isZeroAmount(tx.Amount) {
			continue
		}
		fromLower := strings.ToLower(tx.From)
		toLower := strings.ToLower(tx.To)

		touchesUser := fromLower == userLower || toLower == userLower
		bothContracts := tx.IsFromContract && tx.IsToContract
		if !touchesUser && bothContracts {
			continue
		}

		kept = append(kept, model.Transfer{
			From:   model.Endpoint{Address: tx.From, IsContract: tx.IsFromContract},
			To:     model.Endpoint{Address: tx.To, IsContract: tx.IsToContract},
			Amount: tx.Amount,
		})
	}
	return kept
}

// filterTokenTransfers keeps every transfer for user-initiated
// transactions. For passively received ones only transfers whose
// recipient is the user survive.
func filterTokenTransfers(raw []okx.RawTokenTransfer, userLower string, userInitiated bool) []model.Transfer {
	var kept []model.Transfer
	for _, t := range raw {
		if !userInitiated && strings.ToLower(t.To) != userLower {
			continue
		}
		kept = append(kept, model.Transfer{
			From:   model.Endpoint{Address: t.From},
			To:     model.Endpoint{Address: t.To},
			Amount: t.Amount,
			Symbol: t.Symbol,
		})
	}
	return kept
}

// computeGasCost multiplies gas units by the wei price and renders the
// result in ETH. Unparseable or zero inputs produce "0".
func computeGasCost(gasAmount string, gasPriceWei *big.Int) string {
	units := parseBigInt(gasAmount)
	if units.Sign() == 0 || gasPriceWei.Sign() == 0 {
		return "0"
	}
	costWei := new(big.Int).Mul(units, gasPriceWei)
	return formatScaled(costWei, 18)
}

func formatGwei(gasPriceWei *big.Int) string {
	if gasPriceWei.Sign() == 0 {
		return "0"
	}
	return formatScaled(gasPriceWei, 9)
}

// formatScaled renders value / 10^decimals as a decimal string with
// trailing zeros trimmed.
func formatScaled(value *big.Int, decimals int) string {
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quo, rem := new(big.Int).QuoRem(value, divisor, new(big.Int))

	if rem.Sign() == 0 {
		return quo.String()
	}

	frac := rem.String()
	for len(frac) < decimals {
		frac = "0" + frac
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return quo.String()
	}
	return quo.String() + "." + frac
}

func parseBigInt(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}

func isZeroAmount(s string) bool {
	if s == "" {
		return true
	}
	// Amounts arrive as decimal strings like "0", "0.0" or "1.5".
	for _, r := range s {
		if r >= '1' && r <= '9' {
			return false
		}
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			// Unparseable amounts count as zero.
			return true
		}
	}
	return true
}
