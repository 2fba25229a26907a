package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
)

// BreakevenPolicy 决定触发保本后止损移动到的位置。
type BreakevenPolicy string

const (
	// BreakevenFixedOffset 止损移动到 entry ± 固定偏移（默认 0，即开仓价）。
	BreakevenFixedOffset BreakevenPolicy = "fixed_offset"
	// BreakevenRiskRelative 止损移动到 entry ± riskUnit * factor。
	BreakevenRiskRelative BreakevenPolicy = "risk_relative"
)

type Config struct {
	OrderAmount      decimal.Decimal
	RiskUnit         decimal.Decimal
	StopLossFactor   decimal.Decimal
	TakeProfitFactor decimal.Decimal
	Trailing         bool
	Breakeven        BreakevenPolicy
	BreakevenOffset  decimal.Decimal
	BreakevenFactor  decimal.Decimal
}

// Manager 计算下单数量与止损止盈价位，并负责移动止损。
// 仅依赖配置，无可变状态，可被多个 goroutine 共享。
type Manager struct {
	cfg Config
}

func New(cfg Config) (*Manager, error) {
	if !cfg.OrderAmount.IsPositive() {
		return nil, errors.New("money: order amount must be positive")
	}
	if !cfg.RiskUnit.IsPositive() {
		return nil, errors.New("money: risk unit must be positive")
	}
	if !cfg.StopLossFactor.IsPositive() || !cfg.TakeProfitFactor.IsPositive() {
		return nil, errors.New("money: stop loss and take profit factors must be positive")
	}
	switch cfg.Breakeven {
	case "":
		cfg.Breakeven = BreakevenFixedOffset
	case BreakevenFixedOffset:
	case BreakevenRiskRelative:
		if cfg.BreakevenFactor.IsZero() {
			cfg.BreakevenFactor = decimal.NewFromInt(1)
		}
	default:
		return nil, fmt.Errorf("money: unknown breakeven policy %q", cfg.Breakeven)
	}
	return &Manager{cfg: cfg}, nil
}

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) OrderAmount() decimal.Decimal {
	return m.cfg.OrderAmount
}

func (m *Manager) Trailing() bool { return m.cfg.Trailing }

// StopLoss: buy → price - riskUnit*factor；sell → price + riskUnit*factor。
// factor 为零时使用配置的默认值。
func (m *Manager) StopLoss(side deal.Side, price, factor decimal.Decimal) decimal.Decimal {
	if factor.IsZero() {
		factor = m.cfg.StopLossFactor
	}
	offset := m.cfg.RiskUnit.Mul(factor)
	if side == deal.SideBuy {
		return price.Sub(offset)
	}
	return price.Add(offset)
}

// TakeProfit: buy → price + riskUnit*factor；sell → price - riskUnit*factor。
func (m *Manager) TakeProfit(side deal.Side, price, factor decimal.Decimal) decimal.Decimal {
	if factor.IsZero() {
		factor = m.cfg.TakeProfitFactor
	}
	offset := m.cfg.RiskUnit.Mul(factor)
	if side == deal.SideBuy {
		return price.Add(offset)
	}
	return price.Sub(offset)
}

// OpenDeal 以默认系数构造一笔新的持仓。
func (m *Manager) OpenDeal(side deal.Side, price decimal.Decimal) *deal.Deal {
	return deal.New(side, m.cfg.OrderAmount, price,
		m.StopLoss(side, price, decimal.Zero),
		m.TakeProfit(side, price, decimal.Zero))
}

// BreakevenReached 价格向有利方向至少移动了一个 riskUnit。
func (m *Manager) BreakevenReached(price decimal.Decimal, d *deal.Deal) bool {
	if d.Side == deal.SideBuy {
		return price.GreaterThanOrEqual(d.EntryPrice.Add(m.cfg.RiskUnit))
	}
	return price.LessThanOrEqual(d.EntryPrice.Sub(m.cfg.RiskUnit))
}

// BreakevenLevel 返回保本止损价位。
func (m *Manager) BreakevenLevel(d *deal.Deal) decimal.Decimal {
	offset := m.cfg.BreakevenOffset
	if m.cfg.Breakeven == BreakevenRiskRelative {
		offset = m.cfg.RiskUnit.Mul(m.cfg.BreakevenFactor)
	}
	if d.Side == deal.SideBuy {
		return d.EntryPrice.Add(offset)
	}
	return d.EntryPrice.Sub(offset)
}

// TrailingStopCheck 在启用跟踪止损且达到保本条件时移动止损。
// 止损只会向有利方向移动，重复调用不会产生额外变化。
func (m *Manager) TrailingStopCheck(price decimal.Decimal, d *deal.Deal) (bool, error) {
	if !m.cfg.Trailing || !d.IsOpen() {
		return false, nil
	}
	if !m.BreakevenReached(price, d) {
		return false, nil
	}
	return d.MoveStopLoss(m.BreakevenLevel(d))
}
