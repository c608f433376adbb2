package mapping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
)

// periodBatch collects the bucket deltas produced by one event.
type periodBatch struct {
	meta   *domain.EventMeta
	deltas []domain.PeriodDelta
}

func newPeriodBatch(meta *domain.EventMeta) *periodBatch {
	return &periodBatch{meta: meta}
}

func (b *periodBatch) add(deltas ...domain.PeriodDelta) {
	b.deltas = append(b.deltas, deltas...)
}

// base returns a one-transaction delta for the bucket containing the event.
func (b *periodBatch) base(interval domain.Interval, entityType, entityID string) domain.PeriodDelta {
	return domain.PeriodDelta{
		Interval:       interval,
		EntityType:     entityType,
		EntityID:       entityID,
		BucketStart:    interval.BucketStart(b.meta.Timestamp),
		TxCount:        1,
		UpdatedAtBlock: b.meta.BlockNumber,
		UpdatedAtLog:   uint64(b.meta.LogIndex),
	}
}

// pairDeltas returns the pair's day and hour deltas with the reserve snapshot.
func (b *periodBatch) pairDeltas(p *domain.Pair) (day, hour domain.PeriodDelta) {
	day = b.base(domain.IntervalDay, domain.PeriodPair, p.ID)
	day.ReserveUSD = p.ReserveUSD
	hour = b.base(domain.IntervalHour, domain.PeriodPair, p.ID)
	hour.ReserveUSD = p.ReserveUSD
	return day, hour
}

// factoryDelta returns the factory's day delta with the liquidity snapshot.
func (b *periodBatch) factoryDelta(f *domain.Factory) domain.PeriodDelta {
	d := b.base(domain.IntervalDay, domain.PeriodFactory, f.ID)
	d.ReserveUSD = f.TotalLiquidityUSD
	return d
}

// tokenDelta returns the token's day delta priced at the current bundle.
func (b *periodBatch) tokenDelta(t *domain.Token, ethPrice decimal.Decimal) domain.PeriodDelta {
	d := b.base(domain.IntervalDay, domain.PeriodToken, t.ID)
	d.PriceUSD = t.DerivedETH.Mul(ethPrice)
	d.ReserveUSD = t.TotalLiquidity.Mul(d.PriceUSD)
	return d
}

func (h *Handler) recordPeriods(ctx context.Context, b *periodBatch) error {
	if h.periods == nil || b == nil || len(b.deltas) == 0 {
		return nil
	}
	if err := h.periods.Record(ctx, b.deltas); err != nil {
		return fmt.Errorf("record periods: %w", err)
	}
	return nil
}
