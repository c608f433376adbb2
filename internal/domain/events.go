package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a decoded log type.
type EventKind string

const (
	EventPairCreated EventKind = "pair_created"
	EventTransfer    EventKind = "transfer"
	EventSync        EventKind = "sync"
	EventMint        EventKind = "mint"
	EventBurn        EventKind = "burn"
	EventSwap        EventKind = "swap"
)

// EventMeta locates a log on chain.
type EventMeta struct {
	Address     common.Address // emitting contract
	BlockNumber uint64
	Timestamp   uint64 // block timestamp, unix seconds
	TxHash      common.Hash
	TxIndex     uint
	TxFrom      common.Address // transaction origin
	LogIndex    uint
}

// Event is any decoded log the mapping handlers consume.
type Event interface {
	Kind() EventKind
	Meta() *EventMeta
}

// PairCreated is emitted by the factory when a new pool is deployed.
type PairCreated struct {
	EventMeta
	Token0 common.Address
	Token1 common.Address
	Pair   common.Address
}

// Transfer is an ERC20 transfer of a pair's LP token.
type Transfer struct {
	EventMeta
	From  common.Address
	To    common.Address
	Value *big.Int // raw, 18 decimals
}

// Sync reports the pool's raw reserves after every state change.
type Sync struct {
	EventMeta
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// MintEvent is the pool's Mint notification.
type MintEvent struct {
	EventMeta
	Sender  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

// BurnEvent is the pool's Burn notification.
type BurnEvent struct {
	EventMeta
	Sender  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
	To      common.Address
}

// SwapEvent is the pool's Swap notification.
type SwapEvent struct {
	EventMeta
	Sender     common.Address
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
	To         common.Address
}

func (e *PairCreated) Kind() EventKind { return EventPairCreated }
func (e *Transfer) Kind() EventKind    { return EventTransfer }
func (e *Sync) Kind() EventKind        { return EventSync }
func (e *MintEvent) Kind() EventKind   { return EventMint }
func (e *BurnEvent) Kind() EventKind   { return EventBurn }
func (e *SwapEvent) Kind() EventKind   { return EventSwap }

func (e *PairCreated) Meta() *EventMeta { return &e.EventMeta }
func (e *Transfer) Meta() *EventMeta    { return &e.EventMeta }
func (e *Sync) Meta() *EventMeta        { return &e.EventMeta }
func (e *MintEvent) Meta() *EventMeta   { return &e.EventMeta }
func (e *BurnEvent) Meta() *EventMeta   { return &e.EventMeta }
func (e *SwapEvent) Meta() *EventMeta   { return &e.EventMeta }
