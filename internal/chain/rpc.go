package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned when an eth_call reverts or returns no data.
var ErrReverted = errors.New("execution reverted")

// RPCClient defines the Ethereum JSON-RPC HTTP interface.
type RPCClient interface {
	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (uint64, error)

	// GetBlock retrieves a block header with transaction summaries.
	GetBlock(ctx context.Context, number uint64) (*Block, error)

	// GetLogs retrieves logs matching the filter, ordered as the node returns them.
	GetLogs(ctx context.Context, q FilterQuery) ([]types.Log, error)

	// Call executes a read-only contract call at the given block.
	// Returns ErrReverted if the call reverts.
	Call(ctx context.Context, to common.Address, data []byte, block uint64) ([]byte, error)
}

// WSClient defines the Ethereum WebSocket subscription interface.
type WSClient interface {
	// SubscribeNewHeads streams new block headers.
	SubscribeNewHeads(ctx context.Context) (<-chan Header, error)

	// Close closes the WebSocket connection.
	Close() error
}
