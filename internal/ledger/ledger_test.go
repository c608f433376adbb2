package ledger

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-indexer/internal/domain"
	"amm-indexer/internal/storage/memory"
)

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore()
	l := New(store.Transactions)
	meta := &domain.EventMeta{TxHash: common.HexToHash("0x01"), BlockNumber: 7, Timestamp: 100}

	tx, err := l.GetOrCreate(ctx, meta)
	require.NoError(t, err)
	assert.Equal(t, domain.TxID(meta.TxHash), tx.ID)
	assert.Equal(t, uint64(7), tx.BlockNumber)
	assert.Empty(t, tx.Mints)

	_, found, err := l.Find(ctx, meta)
	require.NoError(t, err)
	assert.False(t, found, "GetOrCreate must not persist")

	tx.Mints = tx.Mints.Append(tx.Mints.NextID(tx.ID))
	require.NoError(t, l.Save(ctx, tx))

	again, err := l.GetOrCreate(ctx, meta)
	require.NoError(t, err)
	assert.Equal(t, domain.RecordList{domain.RecordID(tx.ID, 0)}, again.Mints)
}

func TestLastRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEntityStore()

	_, ok, err := LastRecord(ctx, store.Mints, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = LastRecord(ctx, store.Mints, domain.RecordList{"0xtx-0"})
	require.NoError(t, err)
	assert.False(t, ok, "dangling id is reported as missing")

	require.NoError(t, store.Mints.Save(ctx, &domain.Mint{ID: "0xtx-0"}))
	mint, ok, err := LastRecord(ctx, store.Mints, domain.RecordList{"0xtx-0"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xtx-0", mint.ID)
}
