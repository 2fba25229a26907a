package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/market"
)

var baseTime = time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC).Unix()

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func flat(i int, close float64) market.Candle {
	v := decimal.NewFromFloat(close)
	return market.NewCandle(baseTime+int64(i)*60, v, v, v, v)
}

func feed(s Strategy, closes ...float64) {
	start := s.History().Len()
	for i, c := range closes {
		s.AddCandle(flat(start+i, c))
	}
}

func TestRSIBandLatchThenConfirm(t *testing.T) {
	s := NewRSIBand("rsi", RSIBandConfig{Length: 2, Upper: 75, Lower: 25, MinCandles: 3, HistorySize: 100})

	feed(s, 1, 2, 3, 4)
	_, ok := s.CheckPrice(d("4"))
	assert.False(t, ok, "latching call never emits")
	ob, os := s.Latched()
	assert.True(t, ob)
	assert.False(t, os)

	feed(s, 5)
	_, ok = s.CheckPrice(d("5"))
	assert.False(t, ok)

	feed(s, 4)
	sig, ok := s.CheckPrice(d("4"))
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
	ob, _ = s.Latched()
	assert.False(t, ob)
}

func TestRSIBandOversold(t *testing.T) {
	s := NewRSIBand("rsi", RSIBandConfig{Length: 2, Upper: 75, Lower: 25, MinCandles: 3, HistorySize: 100})
	feed(s, 10, 9, 8, 7)
	_, ok := s.CheckPrice(d("7"))
	assert.False(t, ok)
	_, os := s.Latched()
	assert.True(t, os)

	feed(s, 6)
	_, ok = s.CheckPrice(d("6"))
	assert.False(t, ok)

	feed(s, 7)
	sig, ok := s.CheckPrice(d("7"))
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)
}

func TestRSIBandNeedsMinCandles(t *testing.T) {
	s := NewRSIBand("rsi", DefaultRSIBandConfig())
	feed(s, 1, 2, 3)
	_, ok := s.CheckPrice(d("3"))
	assert.False(t, ok)
}

func newADXRSI(t *testing.T, mutate func(*ADXRSIConfig)) *ADXRSI {
	t.Helper()
	cfg := ADXRSIConfig{Length: 2, Upper: 70, Lower: 30, MinCandles: 3, HistorySize: 100, CloseSignal: ClosePolicyClose, ADXPeriod: 14}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewADXRSI("adx", cfg)
	require.NoError(t, err)
	return s
}

func driveOverbought(t *testing.T, s *ADXRSI) (Signal, bool) {
	t.Helper()
	feed(s, 1, 2, 3, 4, 5)
	_, ok := s.CheckPrice(d("5"))
	require.False(t, ok)
	ob, _ := s.Latched()
	require.True(t, ob)

	feed(s, 4)
	_, ok = s.CheckPrice(d("4"))
	require.False(t, ok)

	feed(s, 4.5)
	return s.CheckPrice(d("4.5"))
}

func TestADXRSIShortAllowed(t *testing.T) {
	s := newADXRSI(t, func(c *ADXRSIConfig) { c.ShortAllowed = true })
	sig, ok := driveOverbought(t, s)
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
}

func TestADXRSICloseSignalWhenShortsDisabled(t *testing.T) {
	s := newADXRSI(t, nil)
	sig, ok := driveOverbought(t, s)
	require.True(t, ok)
	assert.Equal(t, SignalClose, sig)
}

func TestADXRSICloseSignalNone(t *testing.T) {
	s := newADXRSI(t, func(c *ADXRSIConfig) { c.CloseSignal = ClosePolicyNone })
	_, ok := driveOverbought(t, s)
	assert.False(t, ok)
	ob, _ := s.Latched()
	assert.False(t, ob, "latch clears even when the exit is suppressed")
}

func TestADXRSIWarmupBlocksWhenFilterEnabled(t *testing.T) {
	s := newADXRSI(t, func(c *ADXRSIConfig) {
		c.ShortAllowed = true
		c.ADXMax = 25
	})
	feed(s, 1, 2, 3, 4, 5)
	_, ok := s.CheckPrice(d("5"))
	assert.False(t, ok)
	ob, os := s.Latched()
	assert.False(t, ob)
	assert.False(t, os)
}

func TestADXRSISessionFilter(t *testing.T) {
	s := newADXRSI(t, func(c *ADXRSIConfig) {
		c.ShortAllowed = true
		c.Session = SessionConfig{Enabled: true, Start: "09:00", End: "10:00"}
	})
	feed(s, 1, 2, 3, 4, 5)
	_, ok := s.CheckPrice(d("5"))
	assert.False(t, ok)
	ob, _ := s.Latched()
	assert.False(t, ob, "outside the session the latch machine does not run")
}

func newSMATrend(t *testing.T, mutate func(*SMATrendConfig)) *SMATrend {
	t.Helper()
	cfg := SMATrendConfig{Fast: 2, Mid: 3, Slow: 4, TrendLen: 2, HistorySize: 100, ShortAllowed: true, CloseSignal: ClosePolicyClose}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSMATrend("sma", cfg)
	require.NoError(t, err)
	return s
}

func TestSMATrendRising(t *testing.T) {
	s := newSMATrend(t, nil)
	feed(s, 1, 2, 3, 4, 5)
	_, ok := s.CheckPrice(d("5"))
	assert.False(t, ok, "below min candles")

	feed(s, 6, 7, 8)
	sig, ok := s.CheckPrice(d("8"))
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)
}

func TestSMATrendFalling(t *testing.T) {
	s := newSMATrend(t, nil)
	feed(s, 8, 7, 6, 5, 4, 3, 2, 1)
	sig, ok := s.CheckPrice(d("1"))
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)

	noShort := newSMATrend(t, func(c *SMATrendConfig) { c.ShortAllowed = false })
	feed(noShort, 8, 7, 6, 5, 4, 3, 2, 1)
	sig, ok = noShort.CheckPrice(d("1"))
	require.True(t, ok)
	assert.Equal(t, SignalClose, sig)
}

func TestSMATrendNoArrangementCloses(t *testing.T) {
	s := newSMATrend(t, nil)
	feed(s, 5, 5, 5, 5, 5, 5, 5, 5)
	sig, ok := s.CheckPrice(d("5"))
	require.True(t, ok)
	assert.Equal(t, SignalClose, sig)
}

func TestSMATrendChannelEntry(t *testing.T) {
	s := newSMATrend(t, func(c *SMATrendConfig) { c.ChannelEntry = true })
	feed(s, 1, 2, 3, 4, 5, 6, 7, 8)

	sig, ok := s.CheckPrice(d("7.2"))
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)

	_, ok = s.CheckPrice(d("9"))
	assert.False(t, ok)
}

func candleAt(i int, o, h, l, c string) market.Candle {
	return market.NewCandle(baseTime+int64(i)*3600, d(o), d(h), d(l), d(c))
}

func TestTrendEMA(t *testing.T) {
	s, err := NewTrendEMA("ema", TrendEMAConfig{SMALength: 2, EMALength: 2, HistorySize: 100})
	require.NoError(t, err)

	_, ok := s.CheckPrice(d("10"))
	assert.False(t, ok)

	s.AddCandle(candleAt(0, "10", "10", "10", "10"))
	s.AddCandle(candleAt(24, "10", "10", "10", "10"))
	s.AddCandle(candleAt(25, "20", "20", "20", "20"))
	sig, ok := s.CheckPrice(d("20"))
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)
	assert.Equal(t, 2, s.Daily().Len())

	s.AddCandle(candleAt(26, "1", "1", "1", "1"))
	s.AddCandle(candleAt(27, "1", "1", "1", "1"))
	sig, ok = s.CheckPrice(d("1"))
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
	last, ok := s.LastSignal()
	require.True(t, ok)
	assert.Equal(t, SignalSell, last)
}

func TestTrendEMASeedRows(t *testing.T) {
	s, err := NewTrendEMA("ema", DefaultTrendEMAConfig())
	require.NoError(t, err)
	rows := []market.SeedRow{
		{Timestamp: (baseTime + 86400) * 1000, Open: d("2"), High: d("3"), Low: d("1"), Close: d("2")},
		{Timestamp: baseTime * 1000, Open: d("1"), High: d("2"), Low: d("1"), Close: d("1")},
	}
	s.SeedRows(rows)
	assert.Equal(t, 2, s.History().Len())
	assert.Equal(t, 2, s.Daily().Len())
	first, _ := s.History().At(0)
	assert.Equal(t, baseTime, first.Timestamp)
}

func pinbarConfig() PinbarConfig {
	return PinbarConfig{
		SMALength:   2,
		TrendLen:    2,
		Coef:        d("2"),
		MaxTail:     d("0.5"),
		MinBody:     d("0.1"),
		MinCandles:  4,
		HistorySize: 100,
	}
}

func TestPinbarBuy(t *testing.T) {
	s := NewPinbar("pin", pinbarConfig())
	s.AddCandle(candleAt(0, "9", "9.2", "8.9", "9"))
	s.AddCandle(candleAt(1, "9.5", "9.6", "9.4", "9.5"))
	s.AddCandle(candleAt(2, "10", "10.1", "9.9", "10"))
	s.AddCandle(candleAt(3, "10.2", "10.3", "10.1", "10.2"))
	s.AddCandle(candleAt(4, "10", "10.5", "8", "10.5"))

	sig, ok := s.CheckPrice(d("10.5"))
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)
}

func TestPinbarAgainstTrendNeedsSuper(t *testing.T) {
	history := func(s *Pinbar) {
		s.AddCandle(candleAt(0, "12", "12.1", "11.9", "12"))
		s.AddCandle(candleAt(1, "11.5", "11.6", "11.4", "11.5"))
		s.AddCandle(candleAt(2, "11", "11.1", "10.9", "11"))
		s.AddCandle(candleAt(3, "10.8", "10.9", "10.7", "10.8"))
		s.AddCandle(candleAt(4, "10", "10.5", "8", "10.5"))
	}
	plain := NewPinbar("pin", pinbarConfig())
	history(plain)
	_, ok := plain.CheckPrice(d("10.5"))
	assert.False(t, ok)

	cfg := pinbarConfig()
	cfg.SuperCoef = d("3")
	super := NewPinbar("pin", cfg)
	history(super)
	sig, ok := super.CheckPrice(d("10.5"))
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)
}

func TestPinbarTailTooLong(t *testing.T) {
	cfg := pinbarConfig()
	cfg.SuperCoef = d("2")
	s := NewPinbar("pin", cfg)
	s.AddCandle(candleAt(0, "9", "9.2", "8.9", "9"))
	s.AddCandle(candleAt(1, "9.5", "9.6", "9.4", "9.5"))
	s.AddCandle(candleAt(2, "10", "10.1", "9.9", "10"))
	s.AddCandle(candleAt(3, "10", "11.1", "6", "10.5"))
	_, ok := s.CheckPrice(d("10.5"))
	assert.False(t, ok, "super pinbar still honours the tail limit")
}

func TestMonotonicTrend(t *testing.T) {
	sig, ok := monotonicTrend([]float64{1, 1, 1})
	require.True(t, ok)
	assert.Equal(t, SignalBuy, sig)
	sig, ok = monotonicTrend([]float64{3, 2, 2})
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
	_, ok = monotonicTrend([]float64{1, 3, 2})
	assert.False(t, ok)
}

func TestSessionContains(t *testing.T) {
	s, err := NewSession(SessionConfig{Enabled: true})
	require.NoError(t, err)
	at := func(h, m int) time.Time { return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC) }
	assert.False(t, s.Contains(at(16, 29)))
	assert.True(t, s.Contains(at(16, 30)))
	assert.True(t, s.Contains(at(22, 59)))
	assert.False(t, s.Contains(at(23, 0)))

	off, err := NewSession(SessionConfig{})
	require.NoError(t, err)
	assert.True(t, off.Contains(at(3, 0)))

	_, err = NewSession(SessionConfig{Enabled: true, Start: "25:99"})
	assert.Error(t, err)
}

// ranged 生成带 ±0.5 振幅的蜡烛，ADX 需要真实的高低区间。
func ranged(i int, close float64) market.Candle {
	c := decimal.NewFromFloat(close)
	half := decimal.NewFromFloat(0.5)
	return market.NewCandle(baseTime+int64(i)*60, c, c.Add(half), c.Sub(half), c)
}

// trendThenDrop: 30 根震荡，20 根单边上涨，一根急跌，再一根持平。
func trendThenDrop() []float64 {
	closes := make([]float64, 0, 52)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100+float64(i%2))
	}
	c := closes[len(closes)-1]
	for i := 0; i < 20; i++ {
		c++
		closes = append(closes, c)
	}
	return append(closes, c-20, c-20)
}

func TestRSIBandLength14(t *testing.T) {
	s := NewRSIBand("rsi14", RSIBandConfig{Length: 14, Upper: 75, Lower: 25, MinCandles: 10, HistorySize: 100})
	closes := trendThenDrop()
	for i, c := range closes[:50] {
		s.AddCandle(ranged(i, c))
		_, ok := s.CheckPrice(decimal.NewFromFloat(c))
		require.False(t, ok, "bar %d", i)
	}
	ob, _ := s.Latched()
	require.True(t, ob, "twenty rising bars push RSI(14) above 75")

	s.AddCandle(ranged(50, closes[50]))
	sig, ok := s.CheckPrice(decimal.NewFromFloat(closes[50]))
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
}

func TestADXRSIStrongTrendFilter(t *testing.T) {
	s := newADXRSI(t, func(c *ADXRSIConfig) {
		c.Length = 14
		c.ShortAllowed = true
		c.ADXMax = 99
	})
	closes := trendThenDrop()
	require.GreaterOrEqual(t, len(closes), 41)
	for i, c := range closes[:51] {
		s.AddCandle(ranged(i, c))
		_, ok := s.CheckPrice(decimal.NewFromFloat(c))
		require.False(t, ok, "bar %d", i)
	}
	ob, _ := s.Latched()
	require.True(t, ob)

	s.AddCandle(ranged(51, closes[51]))
	highs, lows, cl := s.history.Highs(), s.history.Lows(), s.history.Closes()
	adx, ok := adxSeries(highs, lows, cl, 14).at(-1)
	require.True(t, ok)
	adxr, ok := adxrSeries(highs, lows, cl, 14).at(-1)
	require.True(t, ok)
	require.Greater(t, adx, adxr, "trend is still accelerating")

	// adx > adx_max > adxr：信号被压住，锁存保持
	s.cfg.ADXMax = (adx + adxr) / 2
	_, ok = s.CheckPrice(decimal.NewFromFloat(closes[51]))
	assert.False(t, ok)
	ob, _ = s.Latched()
	assert.True(t, ob, "filtered call leaves the latch untouched")

	// 条件不成立时同一根蜡烛正常出信号
	s.cfg.ADXMax = 99
	sig, ok := s.CheckPrice(decimal.NewFromFloat(closes[51]))
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
}

func TestADXRSIFilterIgnoresFadingTrend(t *testing.T) {
	s := newADXRSI(t, func(c *ADXRSIConfig) {
		c.Length = 14
		c.ShortAllowed = true
		c.ADXMax = 99
	})
	closes := trendThenDrop()
	for i, c := range closes[:51] {
		s.AddCandle(ranged(i, c))
		s.CheckPrice(decimal.NewFromFloat(c))
	}
	s.AddCandle(ranged(51, closes[51]))
	highs, lows, cl := s.history.Highs(), s.history.Lows(), s.history.Closes()
	adxr, ok := adxrSeries(highs, lows, cl, 14).at(-1)
	require.True(t, ok)

	// adx_max 低于 adxr 时 adx_max > adxr 不成立，不过滤
	s.cfg.ADXMax = adxr / 2
	sig, ok := s.CheckPrice(decimal.NewFromFloat(closes[51]))
	require.True(t, ok)
	assert.Equal(t, SignalSell, sig)
}
