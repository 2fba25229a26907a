package strategy

import (
	"math"

	"github.com/markcheno/go-talib"
)

// series 包装 talib 的输出：talib 在预热区填 0，first 之前的值视为未定义。
type series struct {
	values []float64
	first  int
}

// at 支持负下标（-1 为最新值）。
func (s series) at(offset int) (float64, bool) {
	i := offset
	if i < 0 {
		i += len(s.values)
	}
	if i < s.first || i < 0 || i >= len(s.values) {
		return 0, false
	}
	v := s.values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (s series) tail(n int) ([]float64, bool) {
	if n <= 0 || n > len(s.values) || len(s.values)-n < s.first {
		return nil, false
	}
	out := make([]float64, n)
	copy(out, s.values[len(s.values)-n:])
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return out, true
}

func rsiSeries(closes []float64, period int) series {
	if period < 2 || len(closes) <= period {
		return series{}
	}
	return series{values: talib.Rsi(closes, period), first: period}
}

func smaSeries(closes []float64, period int) series {
	if period < 1 || len(closes) < period {
		return series{}
	}
	return series{values: talib.Sma(closes, period), first: period - 1}
}

func emaSeries(values []float64, period int) series {
	if period < 1 || len(values) < period {
		return series{}
	}
	return series{values: talib.Ema(values, period), first: period - 1}
}

func adxSeries(highs, lows, closes []float64, period int) series {
	lookback := 2*period - 1
	if period < 2 || len(closes) <= lookback {
		return series{}
	}
	return series{values: talib.Adx(highs, lows, closes, period), first: lookback}
}

func adxrSeries(highs, lows, closes []float64, period int) series {
	lookback := 3*period - 2
	if period < 2 || len(closes) <= lookback {
		return series{}
	}
	return series{values: talib.AdxR(highs, lows, closes, period), first: lookback}
}

// monotonicTrend 对整段序列做非严格单调判断：递增为 Buy，递减为 Sell。
// 常数序列视为递增。
func monotonicTrend(values []float64) (Signal, bool) {
	if len(values) == 0 {
		return "", false
	}
	up, down := true, true
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			up = false
		}
		if values[i] > values[i-1] {
			down = false
		}
	}
	switch {
	case up:
		return SignalBuy, true
	case down:
		return SignalSell, true
	default:
		return "", false
	}
}
