package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller answers calls by 4-byte selector.
type fakeCaller struct {
	responses map[string][]byte
	calls     int
}

func (f *fakeCaller) Call(_ context.Context, _ common.Address, data []byte, _ uint64) ([]byte, error) {
	f.calls++
	out, ok := f.responses[string(data[:4])]
	if !ok {
		return nil, ErrReverted
	}
	return out, nil
}

func packOutput(t *testing.T, method string, bytes32 bool, v interface{}) (string, []byte) {
	t.Helper()
	contract := erc20ABI
	if bytes32 {
		contract = erc20Bytes32ABI
	}
	m := contract.Methods[method]
	out, err := m.Outputs.Pack(v)
	require.NoError(t, err)
	return string(m.ID), out
}

func TestContractReader_ERC20(t *testing.T) {
	caller := &fakeCaller{responses: map[string][]byte{}}
	for _, tc := range []struct {
		method string
		value  interface{}
	}{
		{"symbol", "WETH"},
		{"name", "Wrapped Ether"},
		{"decimals", big.NewInt(18)},
		{"totalSupply", big.NewInt(1_000_000)},
	} {
		sel, out := packOutput(t, tc.method, false, tc.value)
		caller.responses[sel] = out
	}

	reader := NewContractReader(caller)
	ctx := context.Background()
	token := common.HexToAddress("0x01")

	symbol, err := reader.Symbol(ctx, token, 1)
	require.NoError(t, err)
	assert.Equal(t, "WETH", symbol)

	name, err := reader.Name(ctx, token, 1)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped Ether", name)

	decimals, err := reader.Decimals(ctx, token, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(18), decimals.Int64())

	supply, err := reader.TotalSupply(ctx, token, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), supply.Int64())
}

func TestContractReader_Bytes32(t *testing.T) {
	var raw [32]byte
	copy(raw[:], "MKR")
	sel, out := packOutput(t, "symbol", true, raw)

	reader := NewContractReader(&fakeCaller{responses: map[string][]byte{sel: out}})
	got, err := reader.SymbolBytes32(context.Background(), common.HexToAddress("0x01"), 1)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestContractReader_Reverted(t *testing.T) {
	reader := NewContractReader(&fakeCaller{responses: map[string][]byte{}})
	_, err := reader.Decimals(context.Background(), common.HexToAddress("0x01"), 1)
	assert.True(t, errors.Is(err, ErrReverted))
}

func TestContractReader_UndecodableOutput(t *testing.T) {
	m := erc20ABI.Methods["symbol"]
	reader := NewContractReader(&fakeCaller{responses: map[string][]byte{string(m.ID): {0x01}}})
	_, err := reader.Symbol(context.Background(), common.HexToAddress("0x01"), 1)
	assert.ErrorIs(t, err, ErrReverted)
}

func TestCachedPairLookup(t *testing.T) {
	pairAddr := common.HexToAddress("0xfeed")
	m := factoryABI.Methods["getPair"]
	out, err := m.Outputs.Pack(pairAddr)
	require.NoError(t, err)

	caller := &fakeCaller{responses: map[string][]byte{string(m.ID): out}}
	lookup, err := NewCachedPairLookup(NewContractReader(caller), common.HexToAddress("0xfac"), 16)
	require.NoError(t, err)

	ctx := context.Background()
	a, b := common.HexToAddress("0x0a"), common.HexToAddress("0x0b")

	got, err := lookup.GetPair(ctx, a, b, 1)
	require.NoError(t, err)
	assert.Equal(t, pairAddr, got)

	got, err = lookup.GetPair(ctx, b, a, 2)
	require.NoError(t, err)
	assert.Equal(t, pairAddr, got)
	assert.Equal(t, 1, caller.calls, "reverse lookup should hit the cache")
}

func TestCachedPairLookup_ZeroNotCached(t *testing.T) {
	m := factoryABI.Methods["getPair"]
	out, err := m.Outputs.Pack(common.Address{})
	require.NoError(t, err)

	caller := &fakeCaller{responses: map[string][]byte{string(m.ID): out}}
	lookup, err := NewCachedPairLookup(NewContractReader(caller), common.HexToAddress("0xfac"), 16)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		got, err := lookup.GetPair(ctx, common.HexToAddress("0x0a"), common.HexToAddress("0x0b"), 1)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, got)
	}
	assert.Equal(t, 2, caller.calls)
}
