// Package decode turns raw pool and factory logs into domain events.
package decode

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"amm-indexer/internal/domain"
)

// ErrUnknownEvent is returned for logs whose first topic is not a tracked event.
var ErrUnknownEvent = errors.New("unknown event")

const factoryEventsJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"token0","type":"address"},
		{"indexed":true,"name":"token1","type":"address"},
		{"indexed":false,"name":"pair","type":"address"},
		{"indexed":false,"name":"","type":"uint256"}
	],"name":"PairCreated","type":"event"}
]`

const pairEventsJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	],"name":"Transfer","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"name":"reserve0","type":"uint112"},
		{"indexed":false,"name":"reserve1","type":"uint112"}
	],"name":"Sync","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"amount0","type":"uint256"},
		{"indexed":false,"name":"amount1","type":"uint256"}
	],"name":"Mint","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"amount0","type":"uint256"},
		{"indexed":false,"name":"amount1","type":"uint256"},
		{"indexed":true,"name":"to","type":"address"}
	],"name":"Burn","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"sender","type":"address"},
		{"indexed":false,"name":"amount0In","type":"uint256"},
		{"indexed":false,"name":"amount1In","type":"uint256"},
		{"indexed":false,"name":"amount0Out","type":"uint256"},
		{"indexed":false,"name":"amount1Out","type":"uint256"},
		{"indexed":true,"name":"to","type":"address"}
	],"name":"Swap","type":"event"}
]`

var (
	factoryABI = mustParse(factoryEventsJSON)
	pairABI    = mustParse(pairEventsJSON)
)

// Event signatures.
var (
	TopicPairCreated = factoryABI.Events["PairCreated"].ID
	TopicTransfer    = pairABI.Events["Transfer"].ID
	TopicSync        = pairABI.Events["Sync"].ID
	TopicMint        = pairABI.Events["Mint"].ID
	TopicBurn        = pairABI.Events["Burn"].ID
	TopicSwap        = pairABI.Events["Swap"].ID
)

func mustParse(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse event abi: %v", err))
	}
	return parsed
}

// PairTopics returns the topic0 values of every pool event.
func PairTopics() []common.Hash {
	return []common.Hash{TopicTransfer, TopicSync, TopicMint, TopicBurn, TopicSwap}
}

// FactoryTopics returns the topic0 values of every factory event.
func FactoryTopics() []common.Hash {
	return []common.Hash{TopicPairCreated}
}

// Decoder decodes pool and factory logs.
type Decoder struct{}

// NewDecoder creates a decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode converts one log. Timestamp and TxFrom of the returned event's meta are
// left zero; the caller fills them from the block.
func (d *Decoder) Decode(log types.Log) (domain.Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("%w: log without topics", ErrUnknownEvent)
	}

	meta := domain.EventMeta{
		Address:     log.Address,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.Index,
	}

	switch log.Topics[0] {
	case TopicPairCreated:
		values, err := unpack(factoryABI, "PairCreated", log, 3)
		if err != nil {
			return nil, err
		}
		pair, _ := values[0].(common.Address)
		return &domain.PairCreated{
			EventMeta: meta,
			Token0:    topicAddress(log.Topics[1]),
			Token1:    topicAddress(log.Topics[2]),
			Pair:      pair,
		}, nil

	case TopicTransfer:
		values, err := unpack(pairABI, "Transfer", log, 3)
		if err != nil {
			return nil, err
		}
		return &domain.Transfer{
			EventMeta: meta,
			From:      topicAddress(log.Topics[1]),
			To:        topicAddress(log.Topics[2]),
			Value:     bigAt(values, 0),
		}, nil

	case TopicSync:
		values, err := unpack(pairABI, "Sync", log, 1)
		if err != nil {
			return nil, err
		}
		return &domain.Sync{
			EventMeta: meta,
			Reserve0:  bigAt(values, 0),
			Reserve1:  bigAt(values, 1),
		}, nil

	case TopicMint:
		values, err := unpack(pairABI, "Mint", log, 2)
		if err != nil {
			return nil, err
		}
		return &domain.MintEvent{
			EventMeta: meta,
			Sender:    topicAddress(log.Topics[1]),
			Amount0:   bigAt(values, 0),
			Amount1:   bigAt(values, 1),
		}, nil

	case TopicBurn:
		values, err := unpack(pairABI, "Burn", log, 3)
		if err != nil {
			return nil, err
		}
		return &domain.BurnEvent{
			EventMeta: meta,
			Sender:    topicAddress(log.Topics[1]),
			Amount0:   bigAt(values, 0),
			Amount1:   bigAt(values, 1),
			To:        topicAddress(log.Topics[2]),
		}, nil

	case TopicSwap:
		values, err := unpack(pairABI, "Swap", log, 3)
		if err != nil {
			return nil, err
		}
		return &domain.SwapEvent{
			EventMeta:  meta,
			Sender:     topicAddress(log.Topics[1]),
			Amount0In:  bigAt(values, 0),
			Amount1In:  bigAt(values, 1),
			Amount0Out: bigAt(values, 2),
			Amount1Out: bigAt(values, 3),
			To:         topicAddress(log.Topics[2]),
		}, nil
	}

	return nil, fmt.Errorf("%w: topic %s", ErrUnknownEvent, log.Topics[0].Hex())
}

// DecodeAll decodes logs, skipping unknown events. Malformed known events fail the batch.
func (d *Decoder) DecodeAll(logs []types.Log) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := d.Decode(l)
		if errors.Is(err, ErrUnknownEvent) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decode log %s/%d: %w", l.TxHash.Hex(), l.Index, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func unpack(contract abi.ABI, name string, log types.Log, topics int) ([]interface{}, error) {
	if len(log.Topics) != topics {
		return nil, fmt.Errorf("%s: expected %d topics, got %d", name, topics, len(log.Topics))
	}
	values, err := contract.Unpack(name, log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", name, err)
	}
	return values, nil
}

func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}

func bigAt(values []interface{}, i int) *big.Int {
	if i >= len(values) {
		return new(big.Int)
	}
	if v, ok := values[i].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}
