package domain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConvertTokenToDecimal(t *testing.T) {
	raw, _ := new(big.Int).SetString("1500000000000000000", 10)

	assert.True(t, ConvertTokenToDecimal(raw, 18).Equal(decimal.RequireFromString("1.5")))
	assert.True(t, ConvertTokenToDecimal(big.NewInt(2500), 0).Equal(decimal.NewFromInt(2500)))
	assert.True(t, ConvertTokenToDecimal(big.NewInt(123456), 6).Equal(decimal.RequireFromString("0.123456")))
	assert.True(t, ConvertTokenToDecimal(nil, 18).IsZero())
}

func TestSafeDiv(t *testing.T) {
	assert.True(t, SafeDiv(decimal.NewFromInt(1), decimal.Zero).IsZero())
	assert.True(t, SafeDiv(decimal.NewFromInt(10), decimal.NewFromInt(4)).Equal(decimal.RequireFromString("2.5")))
}

func TestIDs(t *testing.T) {
	addr := common.HexToAddress("0x5dAD5eB7a3e557642625399D51577838d26dEae0")
	assert.Equal(t, "0x5dad5eb7a3e557642625399d51577838d26deae0", AddressID(addr))
	assert.Equal(t, "0xabc-2", RecordID("0xabc", 2))
}

func TestIntervalBucketStart(t *testing.T) {
	assert.Equal(t, uint64(86400), IntervalDay.BucketStart(86400+3599))
	assert.Equal(t, uint64(7200), IntervalHour.BucketStart(7200+59))

	_, ok := ParseInterval("week")
	assert.False(t, ok)
}

func TestCloneIsolation(t *testing.T) {
	sender := common.HexToAddress("0x01")
	m := &Mint{ID: "m", Sender: &sender}
	c := m.Clone()
	*c.Sender = common.HexToAddress("0x02")
	assert.Equal(t, sender, *m.Sender)

	tx := &Transaction{ID: "t", Mints: []string{"a"}}
	ct := tx.Clone()
	ct.Mints[0] = "b"
	assert.Equal(t, "a", tx.Mints[0])
}

func TestRecordList(t *testing.T) {
	var l RecordList
	_, ok := l.Last()
	assert.False(t, ok)
	assert.Equal(t, "0xab-0", l.NextID("0xab"))

	l = l.Append("a").Append("b")
	last, ok := l.Last()
	assert.True(t, ok)
	assert.Equal(t, "b", last)
	assert.Equal(t, "0xab-2", l.NextID("0xab"))

	replaced := l.ReplaceLast("c")
	assert.Equal(t, RecordList{"a", "c"}, replaced)
	assert.Equal(t, RecordList{"a", "b"}, l, "ReplaceLast must not alias")

	assert.Equal(t, RecordList{"a"}, l.Pop())
	assert.Empty(t, RecordList(nil).Pop())
}
