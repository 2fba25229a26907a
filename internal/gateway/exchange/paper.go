package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
	"tickbot/internal/logger"
	"tickbot/internal/market"
)

// Paper 是内存模拟盘：按信号价格立即成交，止损/止盈由 FillProtective 按蜡烛区间撮合。
type Paper struct {
	mu        sync.Mutex
	positions map[string]*paperPosition
	orders    int
}

type paperPosition struct {
	Position
	stop decimal.Decimal
	take decimal.Decimal
}

func NewPaper() *Paper {
	return &Paper{positions: make(map[string]*paperPosition)}
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) OpenPosition(_ context.Context, req OpenRequest) (*OpenResult, error) {
	if !req.Side.Valid() || !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("paper: invalid open request %+v", req)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	qty := req.Quantity
	if req.Side == deal.SideSell {
		qty = qty.Neg()
	}
	p.positions[req.Symbol] = &paperPosition{
		Position: Position{Symbol: req.Symbol, Quantity: qty, AvgPrice: req.Price, UpdatedAt: time.Now().UTC()},
		stop:     req.StopLoss,
		take:     req.TakeProfit,
	}
	p.orders++
	id := uuid.NewString()
	logger.Infof("[paper] %s %s %s @ %s sl=%s tp=%s", req.Symbol, req.Side, req.Quantity, req.Price, req.StopLoss, req.TakeProfit)
	return &OpenResult{OrderID: id}, nil
}

func (p *Paper) ClosePosition(_ context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return ErrPositionNotFound
	}
	if pos.Quantity.IsZero() {
		return ErrPositionAlreadyClosed
	}
	delete(p.positions, symbol)
	p.orders++
	return nil
}

func (p *Paper) GetPosition(_ context.Context, symbol string) (*Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return nil, nil
	}
	cp := pos.Position
	return &cp, nil
}

func (p *Paper) CancelActiveOrders(context.Context, string) error { return nil }

func (p *Paper) MoveStopLoss(_ context.Context, symbol string, stop decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return ErrOrdersNotFound
	}
	pos.stop = stop
	return nil
}

// FillProtective 与 deal.Check 同一规则：价位落在 [low, high] 内即成交，止损优先。
func (p *Paper) FillProtective(symbol string, c market.Candle) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok || pos.Quantity.IsZero() {
		return decimal.Zero, false
	}
	low, high := c.PriceRange()
	within := func(level decimal.Decimal) bool {
		return level.IsPositive() && level.GreaterThanOrEqual(low) && level.LessThanOrEqual(high)
	}
	var fill decimal.Decimal
	switch {
	case within(pos.stop):
		fill = pos.stop
	case within(pos.take):
		fill = pos.take
	default:
		return decimal.Zero, false
	}
	delete(p.positions, symbol)
	p.orders++
	logger.Infof("[paper] %s 保护单成交 @ %s", symbol, fill)
	return fill, true
}

// StopLoss 返回记录的止损价，便于测试与状态展示。
func (p *Paper) StopLoss(symbol string) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return pos.stop, true
}

// Orders 返回累计提交的订单数。
func (p *Paper) Orders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders
}
