package strategy

import (
	"github.com/shopspring/decimal"

	"tickbot/internal/logger"
)

const KindADXRSI = "adx_rsi"

type ADXRSIConfig struct {
	Length       int           `mapstructure:"rsi_length"`
	Upper        float64       `mapstructure:"upper_band"`
	Lower        float64       `mapstructure:"lower_band"`
	MinCandles   int           `mapstructure:"min_candles"`
	HistorySize  int           `mapstructure:"history_size"`
	ShortAllowed bool          `mapstructure:"short_allowed"`
	CloseSignal  string        `mapstructure:"close_signal"`
	ADXPeriod    int           `mapstructure:"adx_period"`
	ADXMax       float64       `mapstructure:"adx_max"`
	Session      SessionConfig `mapstructure:"session"`
}

func DefaultADXRSIConfig() ADXRSIConfig {
	return ADXRSIConfig{
		Length:      14,
		Upper:       70,
		Lower:       30,
		MinCandles:  10,
		HistorySize: defaultHistorySize,
		CloseSignal: ClosePolicyClose,
		ADXPeriod:   14,
	}
}

// ADXRSI 是带趋势强度过滤的 RSI 锁存策略。
// 每次调用先用 rsi[-3] 更新锁存，再用 rsi[-2] 在同一调用内确认。
// 当 ADX > adx_max > ADXR 时视为强趋势，直接跳过且保留锁存状态。
type ADXRSI struct {
	base
	cfg        ADXRSIConfig
	session    Session
	overbought bool
	oversold   bool
}

func NewADXRSI(name string, cfg ADXRSIConfig) (*ADXRSI, error) {
	session, err := NewSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	return &ADXRSI{base: newBase(name, KindADXRSI, cfg.HistorySize), cfg: cfg, session: session}, nil
}

func (s *ADXRSI) Latched() (overbought, oversold bool) {
	return s.overbought, s.oversold
}

func (s *ADXRSI) CheckPrice(price decimal.Decimal) (Signal, bool) {
	if s.history.Len() < s.cfg.MinCandles {
		return "", false
	}
	if last, ok := s.history.Last(); ok && !s.session.Contains(last.Time()) {
		logger.Debugf("[strategy] %s 非主交易时段 %s", s.name, last.Time().Format("15:04"))
		return "", false
	}
	if s.cfg.ADXMax > 0 && s.strongTrend() {
		return "", false
	}

	rsi := rsiSeries(s.history.Closes(), s.cfg.Length)
	older, ok := rsi.at(-3)
	if !ok {
		return "", false
	}
	current, ok := rsi.at(-2)
	if !ok {
		return "", false
	}

	if !s.overbought && !s.oversold {
		if older >= s.cfg.Upper {
			s.overbought = true
		} else if older <= s.cfg.Lower {
			s.oversold = true
		}
	}

	if s.overbought {
		if current <= s.cfg.Upper {
			s.overbought = false
			if s.cfg.ShortAllowed {
				return SignalSell, true
			}
			return closeOrNothing(s.cfg.CloseSignal)
		}
	} else if s.oversold {
		if current >= s.cfg.Lower {
			s.oversold = false
			return SignalBuy, true
		}
	}
	return "", false
}

// strongTrend 在指标尚未预热完成时返回 true，阻止过早出信号。
func (s *ADXRSI) strongTrend() bool {
	highs, lows, closes := s.history.Highs(), s.history.Lows(), s.history.Closes()
	adx, ok := adxSeries(highs, lows, closes, s.cfg.ADXPeriod).at(-1)
	if !ok {
		return true
	}
	adxr, ok := adxrSeries(highs, lows, closes, s.cfg.ADXPeriod).at(-1)
	if !ok {
		return true
	}
	if adx > s.cfg.ADXMax && s.cfg.ADXMax > adxr {
		logger.Debugf("[strategy] %s 趋势过强 adx=%.2f adxr=%.2f", s.name, adx, adxr)
		return true
	}
	return false
}
