package strategy

import (
	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
	"tickbot/internal/market"
)

// Signal 是策略对当前价格给出的动作。
type Signal string

const (
	SignalBuy   Signal = "buy"
	SignalSell  Signal = "sell"
	SignalClose Signal = "close"
)

// Side 把开仓信号映射为方向；Close 返回 false。
func (s Signal) Side() (deal.Side, bool) {
	switch s {
	case SignalBuy:
		return deal.SideBuy, true
	case SignalSell:
		return deal.SideSell, true
	default:
		return "", false
	}
}

// Strategy 接收已完成的蜡烛并对当前价格给出信号。
// 调用顺序固定：每根新蜡烛先 AddCandle，再 CheckPrice。
type Strategy interface {
	Name() string
	Kind() string
	AddCandle(c market.Candle)
	CheckPrice(price decimal.Decimal) (Signal, bool)
	History() *market.History
}

// RowSeeder 由需要原始历史行（而非蜡烛）初始化的策略实现。
type RowSeeder interface {
	SeedRows(rows []market.SeedRow)
}

const defaultHistorySize = 1000

type base struct {
	name    string
	kind    string
	history *market.History
}

func newBase(name, kind string, historySize int) base {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if name == "" {
		name = kind
	}
	return base{name: name, kind: kind, history: market.NewHistory(historySize)}
}

func (b *base) Name() string { return b.name }

func (b *base) Kind() string { return b.kind }

func (b *base) AddCandle(c market.Candle) { b.history.Add(c) }

func (b *base) History() *market.History { return b.history }

// closeOrNothing 在禁止做空时把卖出信号降级为 close 策略配置。
func closeOrNothing(policy string) (Signal, bool) {
	if policy == ClosePolicyNone {
		return "", false
	}
	return SignalClose, true
}

const (
	ClosePolicyClose = "close"
	ClosePolicyNone  = "none"
)
