// Package tokens resolves ERC20 metadata for newly referenced tokens.
package tokens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/domain"
)

// Unknown is the symbol and name of tokens whose metadata cannot be read.
const Unknown = "unknown"

// maxDecimals is the exclusive upper bound for a usable decimals value.
const maxDecimals = 255

// ErrNullDecimals is returned when a token's decimals cannot be determined.
var ErrNullDecimals = errors.New("token decimals unresolvable")

// MetadataReader reads ERC20 metadata. chain.ContractReader implements it.
type MetadataReader interface {
	Symbol(ctx context.Context, token common.Address, block uint64) (string, error)
	Name(ctx context.Context, token common.Address, block uint64) (string, error)
	SymbolBytes32(ctx context.Context, token common.Address, block uint64) ([32]byte, error)
	NameBytes32(ctx context.Context, token common.Address, block uint64) ([32]byte, error)
	Decimals(ctx context.Context, token common.Address, block uint64) (*big.Int, error)
	TotalSupply(ctx context.Context, token common.Address, block uint64) (*big.Int, error)
}

// StaticInfo is hardcoded metadata for a token with a malformed contract.
type StaticInfo struct {
	Symbol   string
	Name     string
	Decimals int32
}

// Metadata is the resolved description of a token.
type Metadata struct {
	Symbol      string
	Name        string
	Decimals    int32
	TotalSupply decimal.Decimal // raw base units
}

// Options configures a Fetcher.
type Options struct {
	Reader          MetadataReader
	Static          map[common.Address]StaticInfo
	SkipTotalSupply []common.Address
	Logger          *zap.Logger
}

// Fetcher resolves token metadata: the static registry first, then contract reads,
// with documented fallbacks when reads revert.
type Fetcher struct {
	reader     MetadataReader
	static     map[common.Address]StaticInfo
	skipSupply map[common.Address]struct{}
	logger     *zap.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options) *Fetcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	static := opts.Static
	if static == nil {
		static = map[common.Address]StaticInfo{}
	}
	skip := make(map[common.Address]struct{}, len(opts.SkipTotalSupply))
	for _, a := range opts.SkipTotalSupply {
		skip[a] = struct{}{}
	}
	return &Fetcher{reader: opts.Reader, static: static, skipSupply: skip, logger: logger}
}

// Fetch resolves all metadata of a token at the given block. It returns
// ErrNullDecimals when decimals are unusable; other fields fall back to defaults.
func (f *Fetcher) Fetch(ctx context.Context, token common.Address, block uint64) (*Metadata, error) {
	decimals, err := f.Decimals(ctx, token, block)
	if err != nil {
		return nil, err
	}
	symbol, err := f.Symbol(ctx, token, block)
	if err != nil {
		return nil, err
	}
	name, err := f.Name(ctx, token, block)
	if err != nil {
		return nil, err
	}
	supply, err := f.TotalSupply(ctx, token, block)
	if err != nil {
		return nil, err
	}
	return &Metadata{Symbol: symbol, Name: name, Decimals: decimals, TotalSupply: supply}, nil
}

// Symbol returns the token symbol or Unknown.
func (f *Fetcher) Symbol(ctx context.Context, token common.Address, block uint64) (string, error) {
	if info, ok := f.static[token]; ok {
		return info.Symbol, nil
	}
	return f.text(ctx, token, block, "symbol", f.reader.Symbol, f.reader.SymbolBytes32)
}

// Name returns the token name or Unknown.
func (f *Fetcher) Name(ctx context.Context, token common.Address, block uint64) (string, error) {
	if info, ok := f.static[token]; ok {
		return info.Name, nil
	}
	return f.text(ctx, token, block, "name", f.reader.Name, f.reader.NameBytes32)
}

// Decimals returns the token precision, or ErrNullDecimals.
func (f *Fetcher) Decimals(ctx context.Context, token common.Address, block uint64) (int32, error) {
	if info, ok := f.static[token]; ok {
		return info.Decimals, nil
	}

	v, err := f.reader.Decimals(ctx, token, block)
	if errors.Is(err, chain.ErrReverted) {
		return 0, fmt.Errorf("%w: %s reverted", ErrNullDecimals, domain.AddressID(token))
	}
	if err != nil {
		return 0, fmt.Errorf("read decimals: %w", err)
	}
	if v.Sign() < 0 || v.Cmp(big.NewInt(maxDecimals)) >= 0 {
		return 0, fmt.Errorf("%w: %s returned %s", ErrNullDecimals, domain.AddressID(token), v)
	}
	return int32(v.Int64()), nil
}

// TotalSupply returns the raw total supply, zero on revert or for skip-listed tokens.
func (f *Fetcher) TotalSupply(ctx context.Context, token common.Address, block uint64) (decimal.Decimal, error) {
	if _, ok := f.skipSupply[token]; ok {
		return decimal.Zero, nil
	}

	v, err := f.reader.TotalSupply(ctx, token, block)
	if errors.Is(err, chain.ErrReverted) {
		f.logger.Debug("totalSupply reverted", zap.String("token", domain.AddressID(token)))
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read totalSupply: %w", err)
	}
	return decimal.NewFromBigInt(v, 0), nil
}

type stringRead func(context.Context, common.Address, uint64) (string, error)
type bytes32Read func(context.Context, common.Address, uint64) ([32]byte, error)

func (f *Fetcher) text(ctx context.Context, token common.Address, block uint64, method string, asString stringRead, asBytes32 bytes32Read) (string, error) {
	s, err := asString(ctx, token, block)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, chain.ErrReverted) {
		return "", fmt.Errorf("read %s: %w", method, err)
	}

	raw, err := asBytes32(ctx, token, block)
	if errors.Is(err, chain.ErrReverted) {
		f.logger.Debug("metadata unreadable", zap.String("token", domain.AddressID(token)), zap.String("method", method))
		return Unknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s as bytes32: %w", method, err)
	}
	if isNullValue(raw) {
		return Unknown, nil
	}
	return bytes32String(raw), nil
}

// isNullValue reports the 0x…01 sentinel some contracts return instead of reverting.
func isNullValue(raw [32]byte) bool {
	var sentinel [32]byte
	sentinel[31] = 1
	return raw == sentinel
}

func bytes32String(raw [32]byte) string {
	b := bytes.TrimRight(raw[:], "\x00")
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), "")
	}
	return string(b)
}
