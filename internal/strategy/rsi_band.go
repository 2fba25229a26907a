package strategy

import (
	"github.com/shopspring/decimal"

	"tickbot/internal/logger"
)

const KindRSIBand = "rsi_band"

type RSIBandConfig struct {
	Length      int     `mapstructure:"rsi_length"`
	Upper       float64 `mapstructure:"upper_band"`
	Lower       float64 `mapstructure:"lower_band"`
	MinCandles  int     `mapstructure:"min_candles"`
	HistorySize int     `mapstructure:"history_size"`
}

func DefaultRSIBandConfig() RSIBandConfig {
	return RSIBandConfig{Length: 14, Upper: 75, Lower: 25, MinCandles: 10, HistorySize: defaultHistorySize}
}

// RSIBand 在 RSI 越过上/下轨后锁存，待其回到轨道内时给出反向信号。
// 锁存检查与确认检查在不同调用中进行。
type RSIBand struct {
	base
	cfg        RSIBandConfig
	overbought bool
	oversold   bool
}

func NewRSIBand(name string, cfg RSIBandConfig) *RSIBand {
	return &RSIBand{base: newBase(name, KindRSIBand, cfg.HistorySize), cfg: cfg}
}

func (s *RSIBand) Latched() (overbought, oversold bool) {
	return s.overbought, s.oversold
}

func (s *RSIBand) CheckPrice(price decimal.Decimal) (Signal, bool) {
	if s.history.Len() < s.cfg.MinCandles {
		return "", false
	}
	rsi := rsiSeries(s.history.Closes(), s.cfg.Length)

	if !s.overbought && !s.oversold {
		prev, ok := rsi.at(-2)
		if !ok {
			return "", false
		}
		if prev >= s.cfg.Upper {
			s.overbought = true
		} else if prev <= s.cfg.Lower {
			s.oversold = true
		}
		return "", false
	}

	last, ok := rsi.at(-1)
	if !ok {
		return "", false
	}
	if s.overbought {
		if last < s.cfg.Upper {
			s.overbought = false
			logger.Debugf("[strategy] %s rsi=%.2f 回落至上轨下方 price=%s", s.name, last, price)
			return SignalSell, true
		}
	} else if s.oversold {
		if last > s.cfg.Lower {
			s.oversold = false
			logger.Debugf("[strategy] %s rsi=%.2f 回升至下轨上方 price=%s", s.name, last, price)
			return SignalBuy, true
		}
	}
	return "", false
}
