package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tickbot/internal/money"
	"tickbot/internal/pkg/interval"
	"tickbot/internal/strategy"
)

func (u UnitConfig) IntervalDuration() (time.Duration, error) {
	return interval.Parse(u.Interval)
}

// MoneyFor 返回策略实际使用的资金配置。
func (u UnitConfig) MoneyFor(s StrategyConfig) MoneyConfig {
	if s.Money != nil {
		return *s.Money
	}
	return u.Money
}

func (m MoneyConfig) Build() (*money.Manager, error) {
	return money.New(money.Config{
		OrderAmount:      decimal.NewFromFloat(m.OrderAmount),
		RiskUnit:         decimal.NewFromFloat(m.RiskUnit),
		StopLossFactor:   decimal.NewFromFloat(m.StopLossFactor),
		TakeProfitFactor: decimal.NewFromFloat(m.TakeProfitFactor),
		Trailing:         m.Trailing,
		Breakeven:        money.BreakevenPolicy(m.Breakeven),
		BreakevenOffset:  decimal.NewFromFloat(m.BreakevenOffset),
		BreakevenFactor:  decimal.NewFromFloat(m.BreakevenFactor),
	})
}

func (s SessionConfig) Build() (strategy.Session, error) {
	return strategy.NewSession(strategy.SessionConfig{
		Enabled:  s.Enabled,
		Start:    s.Start,
		End:      s.End,
		Timezone: s.Timezone,
	})
}

// Range 返回回测区间的 unix 秒，未设置的一端为 0。
func (b BacktestConfig) Range() (from, to int64, err error) {
	f, err := parseBound(b.From)
	if err != nil {
		return 0, 0, err
	}
	t, err := parseBound(b.To)
	if err != nil {
		return 0, 0, err
	}
	if !f.IsZero() {
		from = f.Unix()
	}
	if !t.IsZero() {
		to = t.Unix()
	}
	return from, to, nil
}

func parseBound(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or 2006-01-02)", v)
}
