package deal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tickbot/internal/market"
)

var ErrDealClosed = errors.New("deal already closed")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type CloseReason string

const (
	ReasonStopLoss   CloseReason = "stop_loss"
	ReasonTakeProfit CloseReason = "take_profit"
	ReasonSignal     CloseReason = "signal"
	ReasonReverse    CloseReason = "reverse"
)

// Deal 是本地维护的一笔持仓镜像。
type Deal struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Strategy   string          `json:"strategy"`
	Side       Side            `json:"side"`
	Amount     decimal.Decimal `json:"amount"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Status     Status          `json:"status"`
	OpenedAt   time.Time       `json:"opened_at"`

	ExitPrice   decimal.Decimal `json:"exit_price"`
	Profit      decimal.Decimal `json:"profit"`
	CloseReason CloseReason     `json:"close_reason,omitempty"`
	ClosedAt    time.Time       `json:"closed_at"`
}

func New(side Side, amount, entry, stopLoss, takeProfit decimal.Decimal) *Deal {
	return &Deal{
		ID:         uuid.NewString(),
		Side:       side,
		Amount:     amount,
		EntryPrice: entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Status:     StatusOpen,
		OpenedAt:   time.Now().UTC(),
	}
}

func (d *Deal) IsOpen() bool {
	return d != nil && d.Status == StatusOpen
}

// ProfitAt 以 price 平仓时的盈亏：买入为 (price-entry)×amount，卖出为 (entry-price)×amount。
func (d *Deal) ProfitAt(price decimal.Decimal) decimal.Decimal {
	diff := d.EntryPrice.Sub(price)
	if d.Side == SideBuy {
		diff = price.Sub(d.EntryPrice)
	}
	return diff.Mul(d.Amount)
}

// Close 以 price 平仓并返回盈亏。
func (d *Deal) Close(price decimal.Decimal, reason CloseReason) (decimal.Decimal, error) {
	if !d.IsOpen() {
		return decimal.Zero, ErrDealClosed
	}
	d.Status = StatusClosed
	d.ExitPrice = price
	d.Profit = d.ProfitAt(price)
	d.CloseReason = reason
	d.ClosedAt = time.Now().UTC()
	return d.Profit, nil
}

// Check 用一根已完成的蜡烛检查止损/止盈：价位落在 [low, high] 区间内即触发，止损优先。
// 触发时按对应价位平仓并返回 (profit, true)。
func (d *Deal) Check(c market.Candle) (decimal.Decimal, bool) {
	if !d.IsOpen() {
		return decimal.Zero, false
	}
	low, high := c.PriceRange()
	within := func(level decimal.Decimal) bool {
		return level.GreaterThanOrEqual(low) && level.LessThanOrEqual(high)
	}
	switch {
	case within(d.StopLoss):
		profit, _ := d.Close(d.StopLoss, ReasonStopLoss)
		return profit, true
	case within(d.TakeProfit):
		profit, _ := d.Close(d.TakeProfit, ReasonTakeProfit)
		return profit, true
	default:
		return decimal.Zero, false
	}
}

// MoveStopLoss 仅在新止损对持仓更有利时才移动；返回是否发生变化。
func (d *Deal) MoveStopLoss(level decimal.Decimal) (bool, error) {
	if !d.IsOpen() {
		return false, ErrDealClosed
	}
	better := level.GreaterThan(d.StopLoss)
	if d.Side == SideSell {
		better = level.LessThan(d.StopLoss)
	}
	if !better {
		return false, nil
	}
	d.StopLoss = level
	return true, nil
}

func (d *Deal) String() string {
	if d == nil {
		return "<nil deal>"
	}
	return fmt.Sprintf("%s %s %s@%s sl=%s tp=%s status=%s",
		shortID(d.ID), d.Side, d.Amount, d.EntryPrice, d.StopLoss, d.TakeProfit, d.Status)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
