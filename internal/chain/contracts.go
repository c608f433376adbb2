package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Some early tokens (MKR, SAI) return bytes32 for symbol and name.
const erc20Bytes32ABIJSON = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"bytes32"}],"type":"function"}
]`

const factoryABIJSON = `[
	{"constant":true,"inputs":[{"name":"","type":"address"},{"name":"","type":"address"}],"name":"getPair","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

var (
	erc20ABI        = mustParseABI(erc20ABIJSON)
	erc20Bytes32ABI = mustParseABI(erc20Bytes32ABIJSON)
	factoryABI      = mustParseABI(factoryABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// Caller executes read-only contract calls.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte, block uint64) ([]byte, error)
}

// ContractReader reads ERC20 metadata and factory pair lookups.
// Every method returns an error wrapping ErrReverted when the call reverts.
type ContractReader struct {
	caller Caller
}

// NewContractReader creates a reader on top of an RPC caller.
func NewContractReader(caller Caller) *ContractReader {
	return &ContractReader{caller: caller}
}

func (r *ContractReader) call(ctx context.Context, contract abi.ABI, to common.Address, block uint64, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := r.caller.Call(ctx, to, data, block)
	if err != nil {
		return nil, err
	}

	values, err := contract.Unpack(method, out)
	if err != nil || len(values) == 0 {
		// Undecodable output is treated like a failed call.
		return nil, fmt.Errorf("%w: unpack %s", ErrReverted, method)
	}
	return values, nil
}

// Symbol calls symbol() returning string.
func (r *ContractReader) Symbol(ctx context.Context, token common.Address, block uint64) (string, error) {
	return r.stringCall(ctx, token, block, "symbol")
}

// Name calls name() returning string.
func (r *ContractReader) Name(ctx context.Context, token common.Address, block uint64) (string, error) {
	return r.stringCall(ctx, token, block, "name")
}

// SymbolBytes32 calls symbol() returning bytes32.
func (r *ContractReader) SymbolBytes32(ctx context.Context, token common.Address, block uint64) ([32]byte, error) {
	return r.bytes32Call(ctx, token, block, "symbol")
}

// NameBytes32 calls name() returning bytes32.
func (r *ContractReader) NameBytes32(ctx context.Context, token common.Address, block uint64) ([32]byte, error) {
	return r.bytes32Call(ctx, token, block, "name")
}

// Decimals calls decimals().
func (r *ContractReader) Decimals(ctx context.Context, token common.Address, block uint64) (*big.Int, error) {
	return r.uintCall(ctx, token, block, "decimals")
}

// TotalSupply calls totalSupply().
func (r *ContractReader) TotalSupply(ctx context.Context, token common.Address, block uint64) (*big.Int, error) {
	return r.uintCall(ctx, token, block, "totalSupply")
}

// GetPair calls factory.getPair(tokenA, tokenB). The zero address means no pair.
func (r *ContractReader) GetPair(ctx context.Context, factory, tokenA, tokenB common.Address, block uint64) (common.Address, error) {
	values, err := r.call(ctx, factoryABI, factory, block, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: getPair returned %T", ErrReverted, values[0])
	}
	return addr, nil
}

func (r *ContractReader) stringCall(ctx context.Context, token common.Address, block uint64, method string) (string, error) {
	values, err := r.call(ctx, erc20ABI, token, block, method)
	if err != nil {
		return "", err
	}
	s, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %T", ErrReverted, method, values[0])
	}
	return s, nil
}

func (r *ContractReader) bytes32Call(ctx context.Context, token common.Address, block uint64, method string) ([32]byte, error) {
	values, err := r.call(ctx, erc20Bytes32ABI, token, block, method)
	if err != nil {
		return [32]byte{}, err
	}
	b, ok := values[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("%w: %s returned %T", ErrReverted, method, values[0])
	}
	return b, nil
}

func (r *ContractReader) uintCall(ctx context.Context, token common.Address, block uint64, method string) (*big.Int, error) {
	values, err := r.call(ctx, erc20ABI, token, block, method)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrReverted, method, values[0])
	}
	return v, nil
}

// PairLookup resolves the pool for a token pair.
type PairLookup interface {
	GetPair(ctx context.Context, tokenA, tokenB common.Address, block uint64) (common.Address, error)
}

// CachedPairLookup memoizes factory.getPair results. Only existing pairs are cached,
// since a missing pair may be created later.
type CachedPairLookup struct {
	reader  *ContractReader
	factory common.Address
	cache   *lru.Cache[[2]common.Address, common.Address]
}

// NewCachedPairLookup creates a lookup with the given cache capacity.
func NewCachedPairLookup(reader *ContractReader, factory common.Address, size int) (*CachedPairLookup, error) {
	cache, err := lru.New[[2]common.Address, common.Address](size)
	if err != nil {
		return nil, fmt.Errorf("create pair cache: %w", err)
	}
	return &CachedPairLookup{reader: reader, factory: factory, cache: cache}, nil
}

// GetPair returns the pair address or the zero address.
func (l *CachedPairLookup) GetPair(ctx context.Context, tokenA, tokenB common.Address, block uint64) (common.Address, error) {
	key := [2]common.Address{tokenA, tokenB}
	if addr, ok := l.cache.Get(key); ok {
		return addr, nil
	}

	addr, err := l.reader.GetPair(ctx, l.factory, tokenA, tokenB, block)
	if err != nil {
		return common.Address{}, err
	}
	if addr != (common.Address{}) {
		l.cache.Add(key, addr)
		l.cache.Add([2]common.Address{tokenB, tokenA}, addr)
	}
	return addr, nil
}
