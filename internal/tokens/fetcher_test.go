package tokens

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-indexer/internal/chain"
)

var token = common.HexToAddress("0x00000000000000000000000000000000000000a1")

// fakeReader serves canned values; a nil field means the call reverts.
type fakeReader struct {
	symbol, name     *string
	symbol32, name32 *[32]byte
	decimals, supply *big.Int
	err              error
}

func (r *fakeReader) Symbol(context.Context, common.Address, uint64) (string, error) {
	return strOrRevert(r.symbol, r.err)
}

func (r *fakeReader) Name(context.Context, common.Address, uint64) (string, error) {
	return strOrRevert(r.name, r.err)
}

func (r *fakeReader) SymbolBytes32(context.Context, common.Address, uint64) ([32]byte, error) {
	return bytesOrRevert(r.symbol32)
}

func (r *fakeReader) NameBytes32(context.Context, common.Address, uint64) ([32]byte, error) {
	return bytesOrRevert(r.name32)
}

func (r *fakeReader) Decimals(context.Context, common.Address, uint64) (*big.Int, error) {
	if r.decimals == nil {
		return nil, chain.ErrReverted
	}
	return r.decimals, nil
}

func (r *fakeReader) TotalSupply(context.Context, common.Address, uint64) (*big.Int, error) {
	if r.supply == nil {
		return nil, chain.ErrReverted
	}
	return r.supply, nil
}

func strOrRevert(s *string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", chain.ErrReverted
	}
	return *s, nil
}

func bytesOrRevert(b *[32]byte) ([32]byte, error) {
	if b == nil {
		return [32]byte{}, chain.ErrReverted
	}
	return *b, nil
}

func ptr(s string) *string { return &s }

func TestFetch_ContractValues(t *testing.T) {
	f := NewFetcher(Options{Reader: &fakeReader{
		symbol: ptr("TKN"), name: ptr("Token"), decimals: big.NewInt(6), supply: big.NewInt(1_000_000),
	}})

	md, err := f.Fetch(context.Background(), token, 1)
	require.NoError(t, err)
	assert.Equal(t, "TKN", md.Symbol)
	assert.Equal(t, "Token", md.Name)
	assert.Equal(t, int32(6), md.Decimals)
	assert.True(t, md.TotalSupply.Equal(decimal.NewFromInt(1_000_000)))
}

func TestFetch_Bytes32Fallback(t *testing.T) {
	var sym [32]byte
	copy(sym[:], "MKR")
	var sentinel [32]byte
	sentinel[31] = 1

	f := NewFetcher(Options{Reader: &fakeReader{symbol32: &sym, name32: &sentinel, decimals: big.NewInt(18)}})

	md, err := f.Fetch(context.Background(), token, 1)
	require.NoError(t, err)
	assert.Equal(t, "MKR", md.Symbol)
	assert.Equal(t, Unknown, md.Name, "0x..01 bytes32 value means unknown")
	assert.True(t, md.TotalSupply.IsZero(), "reverted totalSupply falls back to zero")
}

func TestFetch_AllReverted(t *testing.T) {
	f := NewFetcher(Options{Reader: &fakeReader{decimals: big.NewInt(18)}})

	symbol, err := f.Symbol(context.Background(), token, 1)
	require.NoError(t, err)
	assert.Equal(t, Unknown, symbol)
}

func TestFetch_NullDecimals(t *testing.T) {
	f := NewFetcher(Options{Reader: &fakeReader{symbol: ptr("X"), name: ptr("X")}})
	_, err := f.Fetch(context.Background(), token, 1)
	assert.True(t, errors.Is(err, ErrNullDecimals))

	f = NewFetcher(Options{Reader: &fakeReader{decimals: big.NewInt(255)}})
	_, err = f.Decimals(context.Background(), token, 1)
	assert.True(t, errors.Is(err, ErrNullDecimals))
}

func TestFetch_StaticRegistryWins(t *testing.T) {
	f := NewFetcher(Options{
		Reader: &fakeReader{symbol: ptr("BAD"), supply: big.NewInt(5)},
		Static: map[common.Address]StaticInfo{token: {Symbol: "AAVE", Name: "Aave Token", Decimals: 18}},
	})

	md, err := f.Fetch(context.Background(), token, 1)
	require.NoError(t, err)
	assert.Equal(t, "AAVE", md.Symbol)
	assert.Equal(t, "Aave Token", md.Name)
	assert.Equal(t, int32(18), md.Decimals)
	assert.True(t, md.TotalSupply.Equal(decimal.NewFromInt(5)))
}

func TestFetch_SkipTotalSupply(t *testing.T) {
	f := NewFetcher(Options{
		Reader:          &fakeReader{decimals: big.NewInt(18), supply: big.NewInt(5)},
		SkipTotalSupply: []common.Address{token},
	})
	supply, err := f.TotalSupply(context.Background(), token, 1)
	require.NoError(t, err)
	assert.True(t, supply.IsZero())
}

func TestFetch_TransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	f := NewFetcher(Options{Reader: &fakeReader{err: boom, decimals: big.NewInt(18)}})
	_, err := f.Symbol(context.Background(), token, 1)
	assert.ErrorIs(t, err, boom)
}
