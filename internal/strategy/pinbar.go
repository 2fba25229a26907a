package strategy

import (
	"github.com/shopspring/decimal"

	"tickbot/internal/market"
)

const KindPinbar = "pinbar"

type PinbarConfig struct {
	SMALength   int             `mapstructure:"sma_size"`
	TrendLen    int             `mapstructure:"trend_len"`
	Coef        decimal.Decimal `mapstructure:"pinbar_size"`
	SuperCoef   decimal.Decimal `mapstructure:"super_pinbar_size"`
	MaxTail     decimal.Decimal `mapstructure:"max_tail"`
	MinBody     decimal.Decimal `mapstructure:"min_body"`
	MinCandles  int             `mapstructure:"min_candles"`
	HistorySize int             `mapstructure:"history_size"`
}

func DefaultPinbarConfig() PinbarConfig {
	return PinbarConfig{
		SMALength:   100,
		TrendLen:    15,
		Coef:        decimal.NewFromInt(2),
		MaxTail:     decimal.RequireFromString("0.00002"),
		MinBody:     decimal.RequireFromString("0.0001"),
		MinCandles:  4,
		HistorySize: defaultHistorySize,
	}
}

// Pinbar 在最新蜡烛为长影线 pinbar 且顺势、前三根未突破其极值时给出方向信号。
// 超级 pinbar（super_pinbar_size）跳过趋势与前序蜡烛检查，但影线/实体尺寸检查仍然有效。
type Pinbar struct {
	base
	cfg PinbarConfig
}

func NewPinbar(name string, cfg PinbarConfig) *Pinbar {
	if cfg.MinCandles < 4 {
		cfg.MinCandles = 4
	}
	return &Pinbar{base: newBase(name, KindPinbar, cfg.HistorySize), cfg: cfg}
}

func (s *Pinbar) CheckPrice(price decimal.Decimal) (Signal, bool) {
	if s.history.Len() < s.cfg.MinCandles {
		return "", false
	}
	last, _ := s.history.Last()
	if !last.IsLongPinbar(s.cfg.Coef) {
		return "", false
	}
	super := s.cfg.SuperCoef.IsPositive() && last.IsLongPinbar(s.cfg.SuperCoef)
	if last.Tail().GreaterThan(s.cfg.MaxTail) {
		return "", false
	}
	if last.BodySize().LessThan(s.cfg.MinBody) {
		return "", false
	}

	sig := SignalBuy
	if last.UpperDominant() {
		sig = SignalSell
	}
	if super {
		return sig, true
	}

	sma := smaSeries(s.history.Closes(), s.cfg.SMALength)
	window, ok := sma.tail(s.cfg.TrendLen)
	if !ok {
		return "", false
	}
	trend, ok := monotonicTrend(window)
	if !ok || trend != sig {
		return "", false
	}
	if !s.exhausted(last, sig) {
		return "", false
	}
	return sig, true
}

// exhausted 检查前三根蜡烛是否都没有越过 pinbar 的极值。
func (s *Pinbar) exhausted(last market.Candle, sig Signal) bool {
	lastLow, lastHigh := last.PriceRange()
	for i := -4; i <= -2; i++ {
		c, ok := s.history.At(i)
		if !ok {
			return false
		}
		low, high := c.PriceRange()
		if sig == SignalBuy && low.LessThan(lastLow) {
			return false
		}
		if sig == SignalSell && high.GreaterThan(lastHigh) {
			return false
		}
	}
	return true
}
