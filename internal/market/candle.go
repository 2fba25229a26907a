package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// BodyType 描述蜡烛实体方向。
type BodyType int

const (
	BodyFlat BodyType = 0
	BodyUp   BodyType = 1
	BodyDown BodyType = -1
)

func (b BodyType) String() string {
	switch b {
	case BodyUp:
		return "up"
	case BodyDown:
		return "down"
	default:
		return "flat"
	}
}

// Candle 是一个已成型（或正在成型）的 OHLC 桶，Timestamp 为桶起始秒。
// 值类型，构造后不再修改。
type Candle struct {
	Timestamp int64           `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
}

func NewCandle(ts int64, open, high, low, close decimal.Decimal) Candle {
	return Candle{Timestamp: ts, Open: open, High: high, Low: low, Close: close}
}

func (c Candle) Time() time.Time {
	return time.Unix(c.Timestamp, 0).UTC()
}

func (c Candle) BodyType() BodyType {
	switch c.Close.Cmp(c.Open) {
	case 1:
		return BodyUp
	case -1:
		return BodyDown
	default:
		return BodyFlat
	}
}

func (c Candle) BodySize() decimal.Decimal {
	return c.Close.Sub(c.Open).Abs()
}

// UpperShadow 对平实体返回 0。
func (c Candle) UpperShadow() decimal.Decimal {
	switch c.BodyType() {
	case BodyUp:
		return c.High.Sub(c.Close)
	case BodyDown:
		return c.High.Sub(c.Open)
	default:
		return decimal.Zero
	}
}

// LowerShadow 对平实体返回 0。
func (c Candle) LowerShadow() decimal.Decimal {
	switch c.BodyType() {
	case BodyUp:
		return c.Open.Sub(c.Low)
	case BodyDown:
		return c.Close.Sub(c.Low)
	default:
		return decimal.Zero
	}
}

// Shadow 取较长的影线。
func (c Candle) Shadow() decimal.Decimal {
	return decimal.Max(c.UpperShadow(), c.LowerShadow())
}

// Tail 取较短的影线。
func (c Candle) Tail() decimal.Decimal {
	return decimal.Min(c.UpperShadow(), c.LowerShadow())
}

// PriceRange 返回 OHLC 四个值中的最小与最大值。
func (c Candle) PriceRange() (decimal.Decimal, decimal.Decimal) {
	low := decimal.Min(c.Open, c.High, c.Low, c.Close)
	high := decimal.Max(c.Open, c.High, c.Low, c.Close)
	return low, high
}

func (c Candle) FullSize() decimal.Decimal {
	low, high := c.PriceRange()
	return high.Sub(low)
}

func (c Candle) IsPinbar() bool {
	return c.Shadow().GreaterThan(c.BodySize().Add(c.Tail()))
}

// IsLongPinbar: shadow > (body + tail) * coef。
func (c Candle) IsLongPinbar(coef decimal.Decimal) bool {
	return c.Shadow().GreaterThan(c.BodySize().Add(c.Tail()).Mul(coef))
}

// UpperDominant 表示上影线更长，即看空形态。
func (c Candle) UpperDominant() bool {
	return c.UpperShadow().GreaterThan(c.LowerShadow())
}

// TypicalPrice = (high + low + close) / 3。
func (c Candle) TypicalPrice() decimal.Decimal {
	return c.High.Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(3))
}
