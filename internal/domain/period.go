package domain

import "github.com/shopspring/decimal"

// Interval is a period bucket length.
type Interval string

const (
	IntervalDay  Interval = "day"
	IntervalHour Interval = "hour"
)

// Seconds returns the bucket length in seconds.
func (i Interval) Seconds() uint64 {
	switch i {
	case IntervalHour:
		return 3600
	default:
		return 86400
	}
}

// BucketStart returns the start of the bucket containing ts.
func (i Interval) BucketStart(ts uint64) uint64 {
	s := i.Seconds()
	return ts / s * s
}

// ParseInterval validates an interval name.
func ParseInterval(s string) (Interval, bool) {
	switch Interval(s) {
	case IntervalDay, IntervalHour:
		return Interval(s), true
	}
	return "", false
}

// Period entity types.
const (
	PeriodFactory = "factory"
	PeriodPair    = "pair"
	PeriodToken   = "token"
)

// PeriodDelta is an additive change to one day/hour bucket of an entity.
// Volume fields and TxCount are summed; Reserve/Price fields carry the latest snapshot.
type PeriodDelta struct {
	Interval           Interval
	EntityType         string
	EntityID           string
	BucketStart        uint64 // unix seconds
	VolumeToken0       decimal.Decimal // token volume for token buckets
	VolumeToken1       decimal.Decimal
	VolumeUSD          decimal.Decimal
	VolumeETH          decimal.Decimal
	UntrackedVolumeUSD decimal.Decimal
	TxCount            uint64
	ReserveUSD         decimal.Decimal // snapshot
	PriceUSD           decimal.Decimal // snapshot, tokens only
	UpdatedAtBlock     uint64
	UpdatedAtLog       uint64 // orders snapshots within a block
}

// PeriodBucket is the aggregated view of one bucket.
type PeriodBucket struct {
	Interval           Interval        `json:"interval"`
	EntityType         string          `json:"entityType"`
	EntityID           string          `json:"entityId"`
	BucketStart        uint64          `json:"bucketStart"`
	VolumeToken0       decimal.Decimal `json:"volumeToken0"`
	VolumeToken1       decimal.Decimal `json:"volumeToken1"`
	VolumeUSD          decimal.Decimal `json:"volumeUSD"`
	VolumeETH          decimal.Decimal `json:"volumeETH"`
	UntrackedVolumeUSD decimal.Decimal `json:"untrackedVolumeUSD"`
	TxCount            uint64          `json:"txCount"`
	ReserveUSD         decimal.Decimal `json:"reserveUSD"`
	PriceUSD           decimal.Decimal `json:"priceUSD"`
}
