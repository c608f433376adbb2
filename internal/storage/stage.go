package storage

import (
	"context"
	"fmt"

	"amm-indexer/internal/domain"
)

// Entity type names, shared by backends that key rows by kind.
const (
	KindFactory     = "factory"
	KindBundle      = "bundle"
	KindToken       = "token"
	KindPair        = "pair"
	KindUser        = "user"
	KindTransaction = "transaction"
	KindMint        = "mint"
	KindBurn        = "burn"
	KindSwap        = "swap"
)

// Change is one buffered entity write waiting for its range to commit.
type Change struct {
	Kind    string
	ID      string
	Removed bool

	apply func(ctx context.Context, store *EntityStore) error
}

// Apply performs the write against store.
func (c Change) Apply(ctx context.Context, store *EntityStore) error {
	return c.apply(ctx, store)
}

// Committer persists a block range's entity changes together with its checkpoint.
// Either everything lands or nothing does.
type Committer interface {
	CommitRange(ctx context.Context, changes []Change, cp *Checkpoint) error
}

// Stage buffers entity and period writes for one block range.
//
// Handlers read and write through Store() and Periods(); reads see the range's own
// writes first and fall back to the base store. Nothing reaches the base store until
// Commit, so a failed range can be discarded and replayed from its checkpoint.
//
// A Stage is owned by the ingestion goroutine and is not safe for concurrent use.
type Stage struct {
	base      *EntityStore
	periods   PeriodStore
	committer Committer

	view   *EntityStore
	repos  []pendingWrites
	deltas *stagedPeriods
}

type pendingWrites interface {
	changes() []Change
	pending() int
	reset()
}

// NewStage creates a stage over base. periods may be nil when period buckets are disabled.
func NewStage(base *EntityStore, periods PeriodStore, committer Committer) *Stage {
	s := &Stage{base: base, periods: periods, committer: committer}

	factories := newOverlay(base.Factories, KindFactory, func(e *EntityStore) Repository[*domain.Factory] { return e.Factories })
	bundles := newOverlay(base.Bundles, KindBundle, func(e *EntityStore) Repository[*domain.Bundle] { return e.Bundles })
	tokens := newOverlay(base.Tokens, KindToken, func(e *EntityStore) Repository[*domain.Token] { return e.Tokens })
	pairs := newOverlay(base.Pairs, KindPair, func(e *EntityStore) Repository[*domain.Pair] { return e.Pairs })
	users := newOverlay(base.Users, KindUser, func(e *EntityStore) Repository[*domain.User] { return e.Users })
	txs := newOverlay(base.Transactions, KindTransaction, func(e *EntityStore) Repository[*domain.Transaction] { return e.Transactions })
	mints := newOverlay(base.Mints, KindMint, func(e *EntityStore) Repository[*domain.Mint] { return e.Mints })
	burns := newOverlay(base.Burns, KindBurn, func(e *EntityStore) Repository[*domain.Burn] { return e.Burns })
	swaps := newOverlay(base.Swaps, KindSwap, func(e *EntityStore) Repository[*domain.Swap] { return e.Swaps })

	s.view = &EntityStore{
		Factories:    factories,
		Bundles:      bundles,
		Tokens:       tokens,
		Pairs:        pairs,
		Users:        users,
		Transactions: txs,
		Mints:        mints,
		Burns:        burns,
		Swaps:        swaps,
	}
	s.repos = []pendingWrites{factories, bundles, tokens, pairs, users, txs, mints, burns, swaps}

	if periods != nil {
		s.deltas = &stagedPeriods{base: periods}
	}
	return s
}

// Store returns the buffered view of the entity store.
func (s *Stage) Store() *EntityStore {
	return s.view
}

// Periods returns the buffered period store, or nil when the stage has none.
func (s *Stage) Periods() PeriodStore {
	if s.deltas == nil {
		return nil
	}
	return s.deltas
}

// Pending returns the number of buffered entity writes.
func (s *Stage) Pending() int {
	n := 0
	for _, r := range s.repos {
		n += r.pending()
	}
	return n
}

// Commit flushes the buffered writes and cp through the committer, then clears the buffer.
// Period deltas go first: the period stores ignore a delta whose event position they
// already hold, so a commit that fails after them is safe to replay.
func (s *Stage) Commit(ctx context.Context, cp *Checkpoint) error {
	if s.deltas != nil && len(s.deltas.buf) > 0 {
		if err := s.periods.Record(ctx, s.deltas.buf); err != nil {
			return fmt.Errorf("record period deltas: %w", err)
		}
	}

	var changes []Change
	for _, r := range s.repos {
		changes = append(changes, r.changes()...)
	}
	if err := s.committer.CommitRange(ctx, changes, cp); err != nil {
		return err
	}

	s.Discard()
	return nil
}

// Discard drops every buffered write.
func (s *Stage) Discard() {
	for _, r := range s.repos {
		r.reset()
	}
	if s.deltas != nil {
		s.deltas.buf = nil
	}
}

type staged[T any] struct {
	entity  T
	removed bool
}

// overlay is a Repository that keeps writes in memory on top of a base repository.
type overlay[T Record[T]] struct {
	base   Repository[T]
	kind   string
	pick   func(*EntityStore) Repository[T]
	writes map[string]staged[T]
	order  []string
}

func newOverlay[T Record[T]](base Repository[T], kind string, pick func(*EntityStore) Repository[T]) *overlay[T] {
	return &overlay[T]{
		base:   base,
		kind:   kind,
		pick:   pick,
		writes: make(map[string]staged[T]),
	}
}

func (o *overlay[T]) Load(ctx context.Context, id string) (T, error) {
	if w, ok := o.writes[id]; ok {
		if w.removed {
			var zero T
			return zero, ErrNotFound
		}
		return w.entity.Clone(), nil
	}
	return o.base.Load(ctx, id)
}

func (o *overlay[T]) Save(_ context.Context, entity T) error {
	id := entity.EntityID()
	if id == "" {
		return ErrInvalidInput
	}
	o.put(id, staged[T]{entity: entity.Clone()})
	return nil
}

func (o *overlay[T]) Remove(_ context.Context, id string) error {
	o.put(id, staged[T]{removed: true})
	return nil
}

func (o *overlay[T]) put(id string, w staged[T]) {
	if _, ok := o.writes[id]; !ok {
		o.order = append(o.order, id)
	}
	o.writes[id] = w
}

func (o *overlay[T]) changes() []Change {
	out := make([]Change, 0, len(o.order))
	for _, id := range o.order {
		w := o.writes[id]
		c := Change{Kind: o.kind, ID: id, Removed: w.removed}
		if w.removed {
			c.apply = func(ctx context.Context, store *EntityStore) error {
				return o.pick(store).Remove(ctx, id)
			}
		} else {
			entity := w.entity
			c.apply = func(ctx context.Context, store *EntityStore) error {
				return o.pick(store).Save(ctx, entity)
			}
		}
		out = append(out, c)
	}
	return out
}

func (o *overlay[T]) pending() int {
	return len(o.order)
}

func (o *overlay[T]) reset() {
	o.writes = make(map[string]staged[T])
	o.order = nil
}

// stagedPeriods holds deltas until commit. Reads go to the base store and do not
// include the range's buffered deltas.
type stagedPeriods struct {
	base PeriodStore
	buf  []domain.PeriodDelta
}

func (p *stagedPeriods) Record(_ context.Context, deltas []domain.PeriodDelta) error {
	for _, d := range deltas {
		if d.EntityID == "" || d.EntityType == "" {
			return ErrInvalidInput
		}
	}
	p.buf = append(p.buf, deltas...)
	return nil
}

func (p *stagedPeriods) GetBuckets(ctx context.Context, interval domain.Interval, entityType, entityID string) ([]domain.PeriodBucket, error) {
	return p.base.GetBuckets(ctx, interval, entityType, entityID)
}
