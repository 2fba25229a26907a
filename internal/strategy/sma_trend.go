package strategy

import (
	"github.com/shopspring/decimal"

	"tickbot/internal/logger"
)

const KindSMATrend = "sma_trend"

type SMATrendConfig struct {
	Fast         int           `mapstructure:"fast"`
	Mid          int           `mapstructure:"mid"`
	Slow         int           `mapstructure:"slow"`
	TrendLen     int           `mapstructure:"trend_len"`
	MinCandles   int           `mapstructure:"min_candles"`
	HistorySize  int           `mapstructure:"history_size"`
	ShortAllowed bool          `mapstructure:"short_allowed"`
	ChannelEntry bool          `mapstructure:"channel_entry"`
	CloseSignal  string        `mapstructure:"close_signal"`
	Session      SessionConfig `mapstructure:"session"`
}

func DefaultSMATrendConfig() SMATrendConfig {
	return SMATrendConfig{
		Fast:         30,
		Mid:          50,
		Slow:         100,
		TrendLen:     5,
		HistorySize:  defaultHistorySize,
		ShortAllowed: true,
		CloseSignal:  ClosePolicyClose,
	}
}

type arrangement int

const (
	arrangementNone    arrangement = 0
	arrangementRising  arrangement = 1
	arrangementFalling arrangement = -1
)

// SMATrend 用快/中/慢三条 SMA 的排列判断趋势。
// 连续 trend_len+1 根保持单调排列视为有趋势；最新一根无排列时发出 close。
type SMATrend struct {
	base
	cfg     SMATrendConfig
	session Session
}

func NewSMATrend(name string, cfg SMATrendConfig) (*SMATrend, error) {
	session, err := NewSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	if cfg.MinCandles < cfg.Slow+cfg.TrendLen {
		cfg.MinCandles = cfg.Slow + cfg.TrendLen
	}
	return &SMATrend{base: newBase(name, KindSMATrend, cfg.HistorySize), cfg: cfg, session: session}, nil
}

func (s *SMATrend) CheckPrice(price decimal.Decimal) (Signal, bool) {
	if s.history.Len() < s.cfg.MinCandles {
		return "", false
	}
	if last, ok := s.history.Last(); ok && !s.session.Contains(last.Time()) {
		return "", false
	}
	closes := s.history.Closes()
	fast := smaSeries(closes, s.cfg.Fast)
	mid := smaSeries(closes, s.cfg.Mid)
	slow := smaSeries(closes, s.cfg.Slow)

	arrange := func(offset int) (arrangement, bool) {
		f, ok1 := fast.at(offset)
		m, ok2 := mid.at(offset)
		sl, ok3 := slow.at(offset)
		if !ok1 || !ok2 || !ok3 {
			return arrangementNone, false
		}
		switch {
		case sl > m && m > f:
			return arrangementFalling, true
		case sl < m && m < f:
			return arrangementRising, true
		default:
			return arrangementNone, true
		}
	}

	hasTrend := true
	for i := 1; i <= s.cfg.TrendLen+1; i++ {
		a, ok := arrange(-i)
		if !ok {
			return "", false
		}
		if a == arrangementNone {
			hasTrend = false
		}
	}
	current, _ := arrange(-1)

	if !hasTrend {
		if current == arrangementNone {
			return SignalClose, true
		}
		return "", false
	}
	if current == arrangementFalling {
		if s.cfg.ShortAllowed {
			return SignalSell, true
		}
		return closeOrNothing(s.cfg.CloseSignal)
	}
	if s.cfg.ChannelEntry {
		f, _ := fast.at(-1)
		m, _ := mid.at(-1)
		p := price.InexactFloat64()
		if p < f && p > m {
			return SignalBuy, true
		}
		logger.Debugf("[strategy] %s 价格 %s 不在通道 (%.5f, %.5f) 内", s.name, price, m, f)
		return "", false
	}
	return SignalBuy, true
}
