package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleGeometry(t *testing.T) {
	up := NewCandle(0, d("10"), d("15"), d("8"), d("12"))
	assert.Equal(t, BodyUp, up.BodyType())
	assert.True(t, d("2").Equal(up.BodySize()))
	assert.True(t, d("3").Equal(up.UpperShadow()))
	assert.True(t, d("2").Equal(up.LowerShadow()))
	assert.True(t, d("3").Equal(up.Shadow()))
	assert.True(t, d("2").Equal(up.Tail()))
	assert.True(t, d("7").Equal(up.FullSize()))

	down := NewCandle(0, d("12"), d("13"), d("5"), d("11"))
	assert.Equal(t, BodyDown, down.BodyType())
	assert.True(t, d("1").Equal(down.UpperShadow()))
	assert.True(t, d("6").Equal(down.LowerShadow()))
	assert.False(t, down.UpperDominant())
}

func TestFlatCandleHasNoShadows(t *testing.T) {
	flat := NewCandle(0, d("10"), d("15"), d("5"), d("10"))
	assert.Equal(t, BodyFlat, flat.BodyType())
	assert.True(t, flat.UpperShadow().IsZero())
	assert.True(t, flat.LowerShadow().IsZero())
	assert.False(t, flat.IsPinbar())
}

func TestPinbarDetection(t *testing.T) {
	// body 0.5, upper shadow 5, lower 0.1
	c := NewCandle(0, d("10"), d("15.5"), d("9.9"), d("10.5"))
	assert.True(t, c.IsPinbar())
	assert.True(t, c.IsLongPinbar(d("2")))
	assert.False(t, c.IsLongPinbar(d("10")))
	assert.True(t, c.UpperDominant())
}

func TestDailyBucketsMerge(t *testing.T) {
	daily := NewDailyBuckets(time.UTC, 10)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	daily.AddRow(SeedRow{Timestamp: (day + 60) * 1000, Open: d("10"), High: d("12"), Low: d("9"), Close: d("11")})
	daily.AddCandle(NewCandle(day+3600, d("11"), d("14"), d("10"), d("13")))
	daily.AddCandle(NewCandle(day+86400+10, d("13"), d("13"), d("7"), d("8")))

	bars := daily.Candles()
	require.Len(t, bars, 2)
	assert.Equal(t, day, bars[0].Timestamp)
	assert.True(t, d("10").Equal(bars[0].Open))
	assert.True(t, d("14").Equal(bars[0].High))
	assert.True(t, d("9").Equal(bars[0].Low))
	assert.True(t, d("13").Equal(bars[0].Close))

	typical := daily.TypicalPrices()
	require.Len(t, typical, 2)
	assert.InDelta(t, 12.0, typical[0], 1e-9)
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.Add(NewCandle(i, d("1"), d("1"), d("1"), d("1")))
	}
	assert.Equal(t, 3, h.Len())
	first, ok := h.At(0)
	require.True(t, ok)
	assert.Equal(t, int64(3), first.Timestamp)
	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, int64(5), last.Timestamp)
	_, ok = h.At(-4)
	assert.False(t, ok)
}

func TestParseQuoteRecord(t *testing.T) {
	ev, err := ParseQuoteRecord([]byte(`{"timestamp":1700000000123,"symbolId":"EUR/USD.E.FX","bid":[{"price":"1.0850","value":"1"}],"ask":[{"price":1.0852,"value":"1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, EventNewPrice, ev.Kind)
	assert.Equal(t, int64(1700000000123), ev.Timestamp)
	assert.True(t, d("1.085").Equal(ev.Bid))
	assert.True(t, d("1.0852").Equal(ev.Ask))

	hb, err := ParseQuoteRecord([]byte(`{"event":"heartbeat"}`))
	require.NoError(t, err)
	assert.Equal(t, EventUndefined, hb.Kind)
	assert.Equal(t, "heartbeat", hb.Type)

	_, err = ParseQuoteRecord([]byte(`{"timestamp":`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestParseBookTicker(t *testing.T) {
	ev, err := ParseBookTicker([]byte(`{"e":"bookTicker","s":"BTCUSDT","b":"25.35","B":"31","a":"25.36","A":"40","T":1568014460891,"E":1568014460893}`))
	require.NoError(t, err)
	assert.Equal(t, EventNewPrice, ev.Kind)
	assert.Equal(t, int64(1568014460891), ev.Timestamp)

	ev, err = ParseBookTicker([]byte(`{"result":null,"id":1}`))
	require.NoError(t, err)
	assert.Equal(t, EventUndefined, ev.Kind)
}

func TestParseSeedRows(t *testing.T) {
	rows, err := ParseSeedRows([]byte(`[{"timestamp":1200000,"open":"3","high":"4","low":"2","close":"3.5"},{"timestamp":900000,"open":2,"high":3,"low":1,"close":3}]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1200), rows[0].Candle().Timestamp)
	chrono := Chronological(rows)
	assert.Equal(t, int64(900000), chrono[0].Timestamp)

	_, err = ParseSeedRows([]byte(`[{"timestamp":1,"open":"x","high":"1","low":"1","close":"1"}]`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
