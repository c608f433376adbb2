package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DivPrecision is the number of fractional digits kept by SafeDiv.
const DivPrecision int32 = 30

// LPTokenDecimals is the fixed precision of every pair's LP token.
const LPTokenDecimals int32 = 18

// ZeroAddress is the ERC20 mint/burn counterparty.
var ZeroAddress = common.Address{}

// AddressID returns the entity id for an address.
func AddressID(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// TxID returns the entity id for a transaction hash.
func TxID(h common.Hash) string {
	return h.Hex()
}

// RecordID returns the id of the index-th logical record in a transaction.
func RecordID(txID string, index int) string {
	return fmt.Sprintf("%s-%d", txID, index)
}

// ConvertTokenToDecimal scales raw base units by 10^decimals.
// Zero-decimals amounts are returned unscaled.
func ConvertTokenToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	if decimals == 0 {
		return decimal.NewFromBigInt(raw, 0)
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// SafeDiv returns a/b, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivPrecision)
}
