package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"amm-indexer/internal/chain"
	"amm-indexer/internal/decode"
	"amm-indexer/internal/domain"
	"amm-indexer/internal/mapping"
	"amm-indexer/internal/observability"
	"amm-indexer/internal/storage"
)

// blockInfo is the part of a block the events need.
type blockInfo struct {
	hash      common.Hash
	timestamp uint64
	from      map[uint]common.Address // tx index -> origin
}

// Processor fetches, decodes and dispatches the logs of the factory and every
// tracked pair. It follows pairs created inside a range from their creation
// position onward.
//
// A Processor is driven by a single goroutine; TrackPair is only called from the
// handler it dispatches to.
type Processor struct {
	source       LogSource
	decoder      *decode.Decoder
	handler      EventHandler
	checkpoints  storage.CheckpointStore
	factory      common.Address
	maxAddresses int
	blocks       *lru.Cache[uint64, *blockInfo]
	logger       *zap.Logger

	mu    sync.RWMutex
	pairs map[common.Address]struct{}

	// Range in progress; queue holds the events not yet dispatched.
	active   bool
	rangeEnd uint64
	queue    []domain.Event
}

// ProcessorOptions contains configuration for creating a Processor.
type ProcessorOptions struct {
	Source      LogSource
	Handler     EventHandler // may be bound later with SetHandler
	Checkpoints storage.CheckpointStore
	Factory     common.Address

	// MaxAddressesPerQuery caps the address list of one eth_getLogs call. Default: 500.
	MaxAddressesPerQuery int

	// BlockCacheSize is the number of block headers kept for timestamps and tx
	// origins. Default: 1024.
	BlockCacheSize int

	Logger *zap.Logger
}

// NewProcessor creates a processor.
func NewProcessor(opts ProcessorOptions) (*Processor, error) {
	maxAddresses := opts.MaxAddressesPerQuery
	if maxAddresses <= 0 {
		maxAddresses = 500
	}
	cacheSize := opts.BlockCacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	blocks, err := lru.New[uint64, *blockInfo](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create block cache: %w", err)
	}

	return &Processor{
		source:       opts.Source,
		decoder:      decode.NewDecoder(),
		handler:      opts.Handler,
		checkpoints:  opts.Checkpoints,
		factory:      opts.Factory,
		maxAddresses: maxAddresses,
		blocks:       blocks,
		logger:       logger,
		pairs:        make(map[common.Address]struct{}),
	}, nil
}

// SetHandler binds the event handler. The handler usually takes the processor as
// its PairTracker, so it cannot be passed to NewProcessor.
func (p *Processor) SetHandler(h EventHandler) {
	p.handler = h
}

// Compile-time interface check.
var _ mapping.PairTracker = (*Processor)(nil)

// Restore loads the tracked pair set from the checkpoint store.
func (p *Processor) Restore(ctx context.Context) error {
	if p.checkpoints == nil {
		return nil
	}
	pairs, err := p.checkpoints.LoadTrackedPairs(ctx)
	if err != nil {
		return fmt.Errorf("load tracked pairs: %w", err)
	}

	p.mu.Lock()
	for _, hex := range pairs {
		p.pairs[common.HexToAddress(hex)] = struct{}{}
	}
	n := len(p.pairs)
	p.mu.Unlock()

	observability.UpdateTrackedPairs(n)
	p.logger.Info("tracked pairs restored", zap.Int("pairs", n))
	return nil
}

// TrackedPairs returns the followed pairs in address order.
func (p *Processor) TrackedPairs() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]common.Address, 0, len(p.pairs))
	for a := range p.pairs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

// TrackPair starts following a pair. When called while a range is in progress,
// the pair's logs after the creation position are merged into the pending events.
func (p *Processor) TrackPair(ctx context.Context, pair common.Address, created domain.EventMeta) error {
	p.mu.Lock()
	if _, ok := p.pairs[pair]; ok {
		p.mu.Unlock()
		return nil
	}
	p.pairs[pair] = struct{}{}
	n := len(p.pairs)
	p.mu.Unlock()

	observability.UpdateTrackedPairs(n)

	if p.checkpoints != nil {
		if err := p.checkpoints.TrackPair(ctx, domain.AddressID(pair), created.BlockNumber); err != nil {
			return fmt.Errorf("persist tracked pair: %w", err)
		}
	}

	if !p.active || created.BlockNumber > p.rangeEnd {
		return nil
	}

	logs, err := p.fetchLogs(ctx, []common.Address{pair}, created.BlockNumber, p.rangeEnd)
	if err != nil {
		return err
	}
	events, err := p.decode(ctx, logs)
	if err != nil {
		return err
	}

	later := events[:0]
	for _, ev := range events {
		if compareMeta(ev.Meta(), &created) > 0 {
			later = append(later, ev)
		}
	}
	p.queue = mergeEvents(p.queue, later)

	p.logger.Debug("new pair merged into range",
		zap.String("pair", domain.AddressID(pair)),
		zap.Uint64("created_block", created.BlockNumber),
		zap.Int("events", len(later)))
	return nil
}

// ProcessRange dispatches every event of the factory and the tracked pairs in
// [from, to] in chain order. ErrUnknownPair failures are logged and skipped;
// any other handler error stops the range.
func (p *Processor) ProcessRange(ctx context.Context, from, to uint64) error {
	if from > to {
		return nil
	}
	if p.handler == nil {
		return errors.New("processor has no handler")
	}

	logs, err := p.fetchLogs(ctx, p.addresses(), from, to)
	if err != nil {
		return err
	}
	events, err := p.decode(ctx, logs)
	if err != nil {
		return err
	}

	p.active = true
	p.rangeEnd = to
	p.queue = events
	defer func() {
		p.active = false
		p.queue = nil
	}()

	dispatched := 0
	for len(p.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := p.queue[0]
		p.queue = p.queue[1:]
		if err := p.dispatch(ctx, ev); err != nil {
			return err
		}
		dispatched++
	}

	observability.RecordBlockProcessed(to, time.Now().Unix())
	p.logger.Debug("range processed",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("events", dispatched))
	return nil
}

// BlockHash returns the hash of a block, from the cache when possible.
func (p *Processor) BlockHash(ctx context.Context, number uint64) (string, error) {
	info, err := p.block(ctx, number)
	if err != nil {
		return "", err
	}
	return info.hash.Hex(), nil
}

func (p *Processor) dispatch(ctx context.Context, ev domain.Event) error {
	err := p.handler.Handle(ctx, ev)
	if err == nil {
		return nil
	}

	m := ev.Meta()
	if errors.Is(err, mapping.ErrUnknownPair) {
		p.logger.Warn("event from unknown pair skipped",
			zap.String("event", string(ev.Kind())),
			zap.String("address", domain.AddressID(m.Address)),
			zap.Uint64("block", m.BlockNumber),
			zap.Uint("log_index", m.LogIndex))
		return nil
	}
	return fmt.Errorf("handle %s at block %d log %d: %w", ev.Kind(), m.BlockNumber, m.LogIndex, err)
}

// addresses returns the factory followed by the tracked pairs.
func (p *Processor) addresses() []common.Address {
	return append([]common.Address{p.factory}, p.TrackedPairs()...)
}

func (p *Processor) fetchLogs(ctx context.Context, addrs []common.Address, from, to uint64) ([]types.Log, error) {
	topics := [][]common.Hash{append(decode.FactoryTopics(), decode.PairTopics()...)}

	var logs []types.Log
	for start := 0; start < len(addrs); start += p.maxAddresses {
		end := start + p.maxAddresses
		if end > len(addrs) {
			end = len(addrs)
		}
		batch, err := p.source.GetLogs(ctx, chain.FilterQuery{
			FromBlock: from,
			ToBlock:   to,
			Addresses: addrs[start:end],
			Topics:    topics,
		})
		if err != nil {
			return nil, fmt.Errorf("get logs %d-%d: %w", from, to, err)
		}
		logs = append(logs, batch...)
	}
	return logs, nil
}

// decode converts logs to events, fills block timestamps and tx origins, and
// sorts the result.
func (p *Processor) decode(ctx context.Context, logs []types.Log) ([]domain.Event, error) {
	events, err := p.decoder.DecodeAll(logs)
	if err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}

	for _, ev := range events {
		m := ev.Meta()
		info, err := p.block(ctx, m.BlockNumber)
		if err != nil {
			return nil, err
		}
		m.Timestamp = info.timestamp
		m.TxFrom = info.from[m.TxIndex]
	}

	SortEvents(events)
	return events, nil
}

func (p *Processor) block(ctx context.Context, number uint64) (*blockInfo, error) {
	if info, ok := p.blocks.Get(number); ok {
		return info, nil
	}

	b, err := p.source.GetBlock(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", number, err)
	}

	info := &blockInfo{
		hash:      b.Hash,
		timestamp: b.Timestamp,
		from:      make(map[uint]common.Address, len(b.Transactions)),
	}
	for _, tx := range b.Transactions {
		info.from[tx.Index] = tx.From
	}
	p.blocks.Add(number, info)
	return info, nil
}
