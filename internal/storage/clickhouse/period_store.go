package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/observability"
	"amm-indexer/internal/storage"
)

// columnScale matches the Decimal(76, 30) columns of period_deltas.
const columnScale = 30

// PeriodStore implements storage.PeriodStore using ClickHouse.
// Every Record call appends rows; buckets are aggregated when read. Rows are keyed by
// event position, so recording the same delta twice counts it once.
type PeriodStore struct {
	conn *Conn
}

// NewPeriodStore creates a new PeriodStore.
func NewPeriodStore(conn *Conn) *PeriodStore {
	return &PeriodStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PeriodStore = (*PeriodStore)(nil)

// Record appends deltas in a single batch.
func (s *PeriodStore) Record(ctx context.Context, deltas []domain.PeriodDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	for _, d := range deltas {
		if d.EntityID == "" || d.EntityType == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO period_deltas (
			period, entity_type, entity_id, bucket_start,
			volume_token0, volume_token1, volume_usd, volume_eth, untracked_volume_usd,
			tx_count, reserve_usd, price_usd, updated_at_block, updated_at_log
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range deltas {
		err = batch.Append(
			string(d.Interval), d.EntityType, d.EntityID, d.BucketStart,
			scaled(d.VolumeToken0), scaled(d.VolumeToken1), scaled(d.VolumeUSD),
			scaled(d.VolumeETH), scaled(d.UntrackedVolumeUSD),
			d.TxCount, scaled(d.ReserveUSD), scaled(d.PriceUSD), d.UpdatedAtBlock, d.UpdatedAtLog,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	start := time.Now()
	err = batch.Send()
	observability.RecordDBQuery("clickhouse", "record_periods", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBuckets returns buckets for an entity ordered by bucket start ASC.
func (s *PeriodStore) GetBuckets(ctx context.Context, interval domain.Interval, entityType, entityID string) ([]domain.PeriodBucket, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			bucket_start,
			sum(volume_token0),
			sum(volume_token1),
			sum(volume_usd),
			sum(volume_eth),
			sum(untracked_volume_usd),
			sum(tx_count),
			argMax(reserve_usd, (updated_at_block, updated_at_log)),
			argMax(price_usd, (updated_at_block, updated_at_log))
		FROM period_deltas FINAL
		WHERE period = ? AND entity_type = ? AND entity_id = ?
		GROUP BY bucket_start
		ORDER BY bucket_start ASC
	`, string(interval), entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query period_deltas: %w", err)
	}
	defer rows.Close()

	var result []domain.PeriodBucket
	for rows.Next() {
		b := domain.PeriodBucket{
			Interval:   interval,
			EntityType: entityType,
			EntityID:   entityID,
		}
		if err := rows.Scan(
			&b.BucketStart,
			&b.VolumeToken0, &b.VolumeToken1, &b.VolumeUSD, &b.VolumeETH, &b.UntrackedVolumeUSD,
			&b.TxCount, &b.ReserveUSD, &b.PriceUSD,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, b)
	}

	return result, rows.Err()
}

func scaled(d decimal.Decimal) decimal.Decimal {
	return d.Round(columnScale)
}
