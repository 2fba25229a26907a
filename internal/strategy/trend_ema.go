package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"tickbot/internal/market"
)

const KindTrendEMA = "trend_ema"

type TrendEMAConfig struct {
	SMALength   int           `mapstructure:"sma_length"`
	EMALength   int           `mapstructure:"ema_length"`
	HistorySize int           `mapstructure:"history_size"`
	DayTimezone string        `mapstructure:"day_timezone"`
	Session     SessionConfig `mapstructure:"session"`
}

func DefaultTrendEMAConfig() TrendEMAConfig {
	return TrendEMAConfig{SMALength: 14, EMALength: 14, HistorySize: 5000}
}

// TrendEMA 比较蜡烛收盘价 SMA 与日线典型价 EMA：前者在上方为 buy，否则为 sell。
type TrendEMA struct {
	base
	cfg     TrendEMAConfig
	session Session
	daily   *market.DailyBuckets
	last    Signal
}

func NewTrendEMA(name string, cfg TrendEMAConfig) (*TrendEMA, error) {
	session, err := NewSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	loc := time.UTC
	if cfg.DayTimezone != "" {
		if loc, err = time.LoadLocation(cfg.DayTimezone); err != nil {
			return nil, err
		}
	}
	return &TrendEMA{
		base:    newBase(name, KindTrendEMA, cfg.HistorySize),
		cfg:     cfg,
		session: session,
		daily:   market.NewDailyBuckets(loc, cfg.HistorySize),
	}, nil
}

// SeedRows 用原始历史行（最新在前）同时填充蜡烛历史与日线。
func (s *TrendEMA) SeedRows(rows []market.SeedRow) {
	for _, row := range market.Chronological(rows) {
		s.history.Add(row.Candle())
		s.daily.AddRow(row)
	}
}

func (s *TrendEMA) AddCandle(c market.Candle) {
	s.history.Add(c)
	s.daily.AddCandle(c)
}

func (s *TrendEMA) LastSignal() (Signal, bool) {
	return s.last, s.last != ""
}

func (s *TrendEMA) Daily() *market.DailyBuckets { return s.daily }

func (s *TrendEMA) CheckPrice(price decimal.Decimal) (Signal, bool) {
	if last, ok := s.history.Last(); ok && !s.session.Contains(last.Time()) {
		return "", false
	}
	sma, ok := smaSeries(s.history.Closes(), s.cfg.SMALength).at(-1)
	if !ok {
		return "", false
	}
	ema, ok := emaSeries(s.daily.TypicalPrices(), s.cfg.EMALength).at(-1)
	if !ok {
		return "", false
	}
	sig := SignalSell
	if sma > ema {
		sig = SignalBuy
	}
	s.last = sig
	return sig, true
}
