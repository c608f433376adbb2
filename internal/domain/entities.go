package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// BundleID is the id of the singleton Bundle entity.
const BundleID = "1"

// Factory is the global aggregate across all pairs.
type Factory struct {
	ID                 string          `json:"id"` // factory address (lower-case hex)
	PairCount          uint64          `json:"pairCount"`
	TotalVolumeUSD     decimal.Decimal `json:"totalVolumeUSD"`
	TotalVolumeETH     decimal.Decimal `json:"totalVolumeETH"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TotalLiquidityUSD  decimal.Decimal `json:"totalLiquidityUSD"`
	TotalLiquidityETH  decimal.Decimal `json:"totalLiquidityETH"`
	TxCount            uint64          `json:"txCount"`
}

// NewFactory returns a factory with zeroed aggregates.
func NewFactory(id string) *Factory {
	return &Factory{ID: id}
}

func (f *Factory) EntityID() string { return f.ID }

func (f *Factory) Clone() *Factory {
	c := *f
	return &c
}

// Bundle holds the current ETH/USD reference price.
type Bundle struct {
	ID       string          `json:"id"`
	ETHPrice decimal.Decimal `json:"ethPrice"` // USD per ETH
}

func (b *Bundle) EntityID() string { return b.ID }

func (b *Bundle) Clone() *Bundle {
	c := *b
	return &c
}

// Token is an ERC20 asset referenced by at least one pair.
type Token struct {
	ID                 string          `json:"id"` // token address (lower-case hex)
	Symbol             string          `json:"symbol"`
	Name               string          `json:"name"`
	Decimals           int32           `json:"decimals"`
	TotalSupply        decimal.Decimal `json:"totalSupply"` // raw base units
	TradeVolume        decimal.Decimal `json:"tradeVolume"`
	TradeVolumeUSD     decimal.Decimal `json:"tradeVolumeUSD"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TxCount            uint64          `json:"txCount"`
	TotalLiquidity     decimal.Decimal `json:"totalLiquidity"`
	DerivedETH         decimal.Decimal `json:"derivedETH"`
}

func (t *Token) EntityID() string { return t.ID }

func (t *Token) Clone() *Token {
	c := *t
	return &c
}

// Pair is a two-token liquidity pool.
type Pair struct {
	ID                     string          `json:"id"` // pair address (lower-case hex)
	Token0                 string          `json:"token0"`
	Token1                 string          `json:"token1"`
	Reserve0               decimal.Decimal `json:"reserve0"`
	Reserve1               decimal.Decimal `json:"reserve1"`
	TotalSupply            decimal.Decimal `json:"totalSupply"` // LP tokens, 18 decimals
	ReserveETH             decimal.Decimal `json:"reserveETH"`
	ReserveUSD             decimal.Decimal `json:"reserveUSD"`
	TrackedReserveETH      decimal.Decimal `json:"trackedReserveETH"`
	Token0Price            decimal.Decimal `json:"token0Price"`
	Token1Price            decimal.Decimal `json:"token1Price"`
	VolumeToken0           decimal.Decimal `json:"volumeToken0"`
	VolumeToken1           decimal.Decimal `json:"volumeToken1"`
	VolumeUSD              decimal.Decimal `json:"volumeUSD"`
	UntrackedVolumeUSD     decimal.Decimal `json:"untrackedVolumeUSD"`
	TxCount                uint64          `json:"txCount"`
	CreatedAtTimestamp     uint64          `json:"createdAtTimestamp"`
	CreatedAtBlockNumber   uint64          `json:"createdAtBlockNumber"`
	LiquidityProviderCount uint64          `json:"liquidityProviderCount"`
}

func (p *Pair) EntityID() string { return p.ID }

func (p *Pair) Clone() *Pair {
	c := *p
	return &c
}

// User is an address seen in an LP-token transfer.
type User struct {
	ID         string          `json:"id"`
	USDSwapped decimal.Decimal `json:"usdSwapped"`
}

func (u *User) EntityID() string { return u.ID }

func (u *User) Clone() *User {
	c := *u
	return &c
}

// Transaction groups the logical records produced by one on-chain transaction.
type Transaction struct {
	ID          string     `json:"id"` // tx hash
	BlockNumber uint64     `json:"blockNumber"`
	Timestamp   uint64     `json:"timestamp"`
	Mints       RecordList `json:"mints"`
	Burns       RecordList `json:"burns"`
	Swaps       RecordList `json:"swaps"`
}

func (t *Transaction) EntityID() string { return t.ID }

func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Mints = t.Mints.Clone()
	c.Burns = t.Burns.Clone()
	c.Swaps = t.Swaps.Clone()
	return &c
}

// Mint is a logical liquidity addition assembled from a transfer and a Mint log.
type Mint struct {
	ID           string              `json:"id"` // <txHash>-<index>
	Transaction  string              `json:"transaction"`
	Timestamp    uint64              `json:"timestamp"`
	Pair         string              `json:"pair"`
	To           common.Address      `json:"to"`
	Liquidity    decimal.Decimal     `json:"liquidity"`
	Sender       *common.Address     `json:"sender,omitempty"` // nil until the Mint log arrives
	Amount0      decimal.NullDecimal `json:"amount0"`
	Amount1      decimal.NullDecimal `json:"amount1"`
	LogIndex     *uint64             `json:"logIndex,omitempty"`
	AmountUSD    decimal.NullDecimal `json:"amountUSD"`
	FeeTo        *common.Address     `json:"feeTo,omitempty"`
	FeeLiquidity decimal.NullDecimal `json:"feeLiquidity"`
}

// IsComplete reports whether the Mint log has filled the record.
func (m *Mint) IsComplete() bool { return m.Sender != nil }

func (m *Mint) EntityID() string { return m.ID }

func (m *Mint) Clone() *Mint {
	c := *m
	c.Sender = cloneAddress(m.Sender)
	c.FeeTo = cloneAddress(m.FeeTo)
	c.LogIndex = cloneUint(m.LogIndex)
	return &c
}

// Burn is a logical liquidity removal assembled from up to two transfers and a Burn log.
type Burn struct {
	ID            string              `json:"id"`
	Transaction   string              `json:"transaction"`
	Timestamp     uint64              `json:"timestamp"`
	Pair          string              `json:"pair"`
	Liquidity     decimal.Decimal     `json:"liquidity"`
	Sender        *common.Address     `json:"sender,omitempty"`
	To            *common.Address     `json:"to,omitempty"`
	Amount0       decimal.NullDecimal `json:"amount0"`
	Amount1       decimal.NullDecimal `json:"amount1"`
	LogIndex      *uint64             `json:"logIndex,omitempty"`
	AmountUSD     decimal.NullDecimal `json:"amountUSD"`
	NeedsComplete bool                `json:"needsComplete"` // phase-1 record awaiting the pair's burn transfer
	FeeTo         *common.Address     `json:"feeTo,omitempty"`
	FeeLiquidity  decimal.NullDecimal `json:"feeLiquidity"`
}

func (b *Burn) EntityID() string { return b.ID }

func (b *Burn) Clone() *Burn {
	c := *b
	c.Sender = cloneAddress(b.Sender)
	c.To = cloneAddress(b.To)
	c.FeeTo = cloneAddress(b.FeeTo)
	c.LogIndex = cloneUint(b.LogIndex)
	return &c
}

// Swap is a single trade against a pair.
type Swap struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Timestamp   uint64          `json:"timestamp"`
	Pair        string          `json:"pair"`
	Sender      common.Address  `json:"sender"`
	From        common.Address  `json:"from"` // transaction origin
	Amount0In   decimal.Decimal `json:"amount0In"`
	Amount1In   decimal.Decimal `json:"amount1In"`
	Amount0Out  decimal.Decimal `json:"amount0Out"`
	Amount1Out  decimal.Decimal `json:"amount1Out"`
	To          common.Address  `json:"to"`
	LogIndex    uint64          `json:"logIndex"`
	AmountUSD   decimal.Decimal `json:"amountUSD"`
}

func (s *Swap) EntityID() string { return s.ID }

func (s *Swap) Clone() *Swap {
	c := *s
	return &c
}

func cloneAddress(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func cloneUint(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
