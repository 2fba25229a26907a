package trader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
	"tickbot/internal/gateway/exchange"
	"tickbot/internal/gateway/notifier"
	"tickbot/internal/logger"
	"tickbot/internal/market"
	"tickbot/internal/money"
	"tickbot/internal/pkg/interval"
	"tickbot/internal/strategy"
)

const (
	defaultGraceDelay     = 500 * time.Millisecond
	defaultBreakevenEvery = 10 * time.Second
	defaultPricePlaces    = 6
)

type ProcessorConfig struct {
	Unit     string
	Symbol   string
	Opposite deal.OppositePolicy
	// Session 限制平仓信号与保本移动的生效时段，零值表示不限制。
	Session strategy.Session
	// GraceDelay 是平仓后等待成交的固定时长。
	GraceDelay time.Duration
	// BreakevenProfit > 0 时，持仓浮盈达到该值即把通道侧止损移到 均价×(1±BreakevenOffset)。
	BreakevenProfit decimal.Decimal
	BreakevenOffset decimal.Decimal
	BreakevenEvery  time.Duration
	PricePlaces     int32
	Tags            []string
}

type Deps struct {
	Exchange exchange.Exchange
	Journal  Journal
	Archive  CandleArchive
	Notifier notifier.Notifier
}

// Processor 按到达顺序处理单个品种的行情事件，只能由一个协程调用。
// 新蜡烛生成时的调用顺序：归档 -> 检查已有持仓 -> 策略追加蜡烛 -> 组合器检查价格 -> 执行结果。
type Processor struct {
	cfg  ProcessorConfig
	deps Deps

	agg  *market.Aggregator
	comb *strategy.Combinator

	open       *deal.Deal
	openMoney  *money.Manager
	closed     int
	realized   decimal.Decimal
	lastPrice  decimal.Decimal
	lastTick   time.Time
	lastBECall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	snapshot         atomic.Pointer[Snapshot]
	snapshotThrottle time.Duration
	lastSnapshot     time.Time
}

func NewProcessor(cfg ProcessorConfig, deps Deps) (*Processor, error) {
	if deps.Exchange == nil {
		return nil, fmt.Errorf("processor %s: exchange is required", cfg.Unit)
	}
	if cfg.Opposite == "" {
		cfg.Opposite = deal.OppositeIgnore
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = defaultGraceDelay
	}
	if cfg.BreakevenEvery <= 0 {
		cfg.BreakevenEvery = defaultBreakevenEvery
	}
	if cfg.PricePlaces <= 0 {
		cfg.PricePlaces = defaultPricePlaces
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Nop{}
	}
	p := &Processor{
		cfg:              cfg,
		deps:             deps,
		now:              time.Now,
		sleep:            sleepCtx,
		snapshotThrottle: 50 * time.Millisecond,
	}
	p.publish(true)
	return p, nil
}

// Reset 替换聚合器与策略组合（重新拉取历史后调用），已有持仓保持不变。
func (p *Processor) Reset(agg *market.Aggregator, comb *strategy.Combinator) {
	p.agg = agg
	p.comb = comb
	p.publish(true)
}

// OpenDeal 返回当前持仓，无持仓时为 nil。
func (p *Processor) OpenDeal() *deal.Deal {
	if p.open.IsOpen() {
		return p.open
	}
	return nil
}

func (p *Processor) Snapshot() Snapshot {
	if s := p.snapshot.Load(); s != nil {
		return *s
	}
	return Snapshot{Unit: p.cfg.Unit, Symbol: p.cfg.Symbol}
}

// HandleEvent 满足 stream.Handler。返回的错误会使上层重连并重新拉取历史。
func (p *Processor) HandleEvent(ctx context.Context, ev market.StreamEvent) error {
	if ev.Kind != market.EventNewPrice {
		return nil
	}
	if p.agg == nil || p.comb == nil {
		return fmt.Errorf("processor %s: not seeded", p.cfg.Unit)
	}
	started := p.agg.AddTick(ev.Timestamp, ev.Bid, ev.Ask)
	price := market.MidPrice(ev.Bid, ev.Ask, p.cfg.PricePlaces)
	p.lastPrice = price
	p.lastTick = time.UnixMilli(ev.Timestamp).UTC()
	force := false

	if started {
		if candle, ok := p.agg.LastCompletedCandle(); ok {
			force = true
			if err := p.onCandle(ctx, candle, price); err != nil {
				p.publish(true)
				return err
			}
		}
	}
	moved, err := p.trailStop(ctx, price)
	if err != nil {
		return err
	}
	if err := p.brokerBreakeven(ctx); err != nil {
		return err
	}
	p.publish(force || moved)
	return nil
}

func (p *Processor) onCandle(ctx context.Context, candle market.Candle, price decimal.Decimal) error {
	logger.Debugf("[trader] %s 新蜡烛 %s o=%s h=%s l=%s c=%s", p.cfg.Unit,
		candle.Time().Format(time.RFC3339), candle.Open, candle.High, candle.Low, candle.Close)
	if p.deps.Archive != nil {
		if err := p.deps.Archive.ArchiveCandle(ctx, p.cfg.Symbol, p.agg.Interval(), candle); err != nil {
			logger.Warnf("[trader] %s 归档蜡烛失败: %v", p.cfg.Unit, err)
		}
	}
	if filler, ok := p.deps.Exchange.(exchange.ProtectiveFiller); ok {
		if fill, hit := filler.FillProtective(p.cfg.Symbol, candle); hit {
			logger.Infof("[trader] %s 通道保护单成交 @ %s", p.cfg.Unit, fill)
		}
	}
	if p.open.IsOpen() {
		if _, hit := p.open.Check(candle); hit {
			p.afterLocalClose(ctx, p.open)
		}
	}
	p.comb.AddCandle(candle)
	return p.apply(ctx, p.comb.CheckPrice(price), price)
}

func (p *Processor) apply(ctx context.Context, out strategy.Outcome, price decimal.Decimal) error {
	switch out.Kind {
	case strategy.OutcomeOpen:
		return p.applyOpen(ctx, out, price)
	case strategy.OutcomeClose:
		return p.applyClose(ctx, out, price)
	default:
		return nil
	}
}

func (p *Processor) applyOpen(ctx context.Context, out strategy.Outcome, price decimal.Decimal) error {
	d := out.Deal
	d.Symbol = p.cfg.Symbol
	action := deal.Resolve(p.open, d.Side, p.cfg.Opposite)
	logger.Infof("[trader] %s 信号 %s 来自 %s，动作=%s", p.cfg.Unit, d.Side, out.Source, action)
	switch action {
	case deal.ActionKeep:
		return nil
	case deal.ActionReverse:
		if err := p.closeBroker(ctx); err != nil {
			return err
		}
		p.closeLocal(ctx, price, deal.ReasonReverse)
		if !p.sleep(ctx, p.cfg.GraceDelay) {
			return ctx.Err()
		}
	default:
		pos, err := p.deps.Exchange.GetPosition(ctx, p.cfg.Symbol)
		if err != nil && !exchange.IsBenign(err) {
			return fmt.Errorf("get position %s: %w", p.cfg.Symbol, err)
		}
		if !pos.IsFlat() {
			logger.Infof("[trader] %s 通道已有持仓 %s，忽略开仓信号", p.cfg.Unit, pos.Quantity)
			return nil
		}
	}
	return p.openDeal(ctx, d, out.Money)
}

func (p *Processor) applyClose(ctx context.Context, out strategy.Outcome, price decimal.Decimal) error {
	last, ok := p.comb.LastCandle()
	if !ok || !p.cfg.Session.Contains(last.Time()) {
		return nil
	}
	logger.Infof("[trader] %s 平仓信号 来自 %s", p.cfg.Unit, out.Source)
	pos, err := p.deps.Exchange.GetPosition(ctx, p.cfg.Symbol)
	if err != nil && !exchange.IsBenign(err) {
		return fmt.Errorf("get position %s: %w", p.cfg.Symbol, err)
	}
	if !pos.IsFlat() {
		if err := p.closeBroker(ctx); err != nil {
			return err
		}
		if !p.sleep(ctx, p.cfg.GraceDelay) {
			return ctx.Err()
		}
	}
	if p.open.IsOpen() {
		p.closeLocal(ctx, price, deal.ReasonSignal)
	}
	return nil
}

func (p *Processor) openDeal(ctx context.Context, d *deal.Deal, mm *money.Manager) error {
	res, err := p.deps.Exchange.OpenPosition(ctx, exchange.RequestFromDeal(d))
	if err != nil {
		return fmt.Errorf("open position %s: %w", p.cfg.Symbol, err)
	}
	p.open = d
	p.openMoney = mm
	orderID := ""
	if res != nil {
		orderID = res.OrderID
	}
	logger.Trade(p.cfg.Unit, "open",
		logger.TradeField{Key: "deal", Value: d.ID},
		logger.TradeField{Key: "order", Value: orderID},
		logger.TradeField{Key: "side", Value: d.Side},
		logger.TradeField{Key: "amount", Value: d.Amount},
		logger.TradeField{Key: "entry", Value: d.EntryPrice},
		logger.TradeField{Key: "sl", Value: d.StopLoss},
		logger.TradeField{Key: "tp", Value: d.TakeProfit},
		logger.TradeField{Key: "strategy", Value: d.Strategy},
	)
	if p.deps.Journal != nil {
		if err := p.deps.Journal.RecordOpen(ctx, p.cfg.Unit, d); err != nil {
			logger.Warnf("[trader] %s 记录开仓失败: %v", p.cfg.Unit, err)
		}
	}
	p.deps.Notifier.Notify(notifier.DealOpened(p.cfg.Tags, d))
	return nil
}

// closeBroker 平掉通道侧持仓，持仓不存在或已平属于正常情况。
func (p *Processor) closeBroker(ctx context.Context) error {
	err := p.deps.Exchange.ClosePosition(ctx, p.cfg.Symbol)
	if err == nil || exchange.IsBenign(err) {
		if err != nil {
			logger.Debugf("[trader] %s 平仓: %v", p.cfg.Unit, err)
		}
		return nil
	}
	return fmt.Errorf("close position %s: %w", p.cfg.Symbol, err)
}

func (p *Processor) closeLocal(ctx context.Context, price decimal.Decimal, reason deal.CloseReason) {
	if _, err := p.open.Close(price, reason); err != nil {
		if errors.Is(err, deal.ErrDealClosed) {
			return
		}
		logger.Warnf("[trader] %s 本地平仓失败: %v", p.cfg.Unit, err)
		return
	}
	p.afterLocalClose(ctx, p.open)
}

func (p *Processor) afterLocalClose(ctx context.Context, d *deal.Deal) {
	p.closed++
	p.realized = p.realized.Add(d.Profit)
	p.open = nil
	p.openMoney = nil
	logger.Trade(p.cfg.Unit, "close",
		logger.TradeField{Key: "deal", Value: d.ID},
		logger.TradeField{Key: "side", Value: d.Side},
		logger.TradeField{Key: "exit", Value: d.ExitPrice},
		logger.TradeField{Key: "reason", Value: d.CloseReason},
		logger.TradeField{Key: "profit", Value: d.Profit},
	)
	if p.deps.Journal != nil {
		if err := p.deps.Journal.RecordClose(ctx, p.cfg.Unit, d); err != nil {
			logger.Warnf("[trader] %s 记录平仓失败: %v", p.cfg.Unit, err)
		}
	}
	p.deps.Notifier.Notify(notifier.DealClosed(p.cfg.Tags, d))
}

// trailStop 由本地 money manager 判断是否移动到保本位，并同步到通道侧止损单。
func (p *Processor) trailStop(ctx context.Context, price decimal.Decimal) (bool, error) {
	if !p.open.IsOpen() || p.openMoney == nil || !p.inSession() {
		return false, nil
	}
	moved, err := p.openMoney.TrailingStopCheck(price, p.open)
	if err != nil || !moved {
		return false, nil
	}
	level := p.open.StopLoss
	logger.Infof("[trader] %s 止损移至保本 %s", p.cfg.Unit, level)
	if p.deps.Journal != nil {
		if err := p.deps.Journal.RecordStopMove(ctx, p.cfg.Unit, p.open, level); err != nil {
			logger.Warnf("[trader] %s 记录止损移动失败: %v", p.cfg.Unit, err)
		}
	}
	p.pushStop(ctx, level)
	return true, nil
}

// brokerBreakeven 限频检查通道侧浮盈，达到 BreakevenProfit 后把止损单移到保本位。
func (p *Processor) brokerBreakeven(ctx context.Context) error {
	if !p.cfg.BreakevenProfit.IsPositive() || !p.inSession() {
		return nil
	}
	if _, ok := p.deps.Exchange.(exchange.StopMover); !ok {
		return nil
	}
	now := p.now()
	if now.Sub(p.lastBECall) < p.cfg.BreakevenEvery {
		return nil
	}
	p.lastBECall = now
	pos, err := p.deps.Exchange.GetPosition(ctx, p.cfg.Symbol)
	if err != nil {
		if exchange.IsBenign(err) {
			return nil
		}
		return fmt.Errorf("get position %s: %w", p.cfg.Symbol, err)
	}
	if pos.IsFlat() || pos.PnL.LessThan(p.cfg.BreakevenProfit) {
		return nil
	}
	factor := decimal.NewFromInt(1).Add(p.cfg.BreakevenOffset)
	if pos.Side() == deal.SideSell {
		factor = decimal.NewFromInt(1).Sub(p.cfg.BreakevenOffset)
	}
	level := pos.AvgPrice.Mul(factor).Round(p.cfg.PricePlaces)
	if p.open.IsOpen() {
		if moved, _ := p.open.MoveStopLoss(level); moved && p.deps.Journal != nil {
			if err := p.deps.Journal.RecordStopMove(ctx, p.cfg.Unit, p.open, level); err != nil {
				logger.Warnf("[trader] %s 记录止损移动失败: %v", p.cfg.Unit, err)
			}
		}
	}
	p.pushStop(ctx, level)
	return nil
}

func (p *Processor) pushStop(ctx context.Context, level decimal.Decimal) {
	mover, ok := p.deps.Exchange.(exchange.StopMover)
	if !ok {
		return
	}
	err := mover.MoveStopLoss(ctx, p.cfg.Symbol, level)
	switch {
	case err == nil:
	case errors.Is(err, exchange.ErrOrdersNotFound):
		p.deps.Notifier.Notify(notifier.Alert(p.cfg.Tags, "找不到止损单", p.cfg.Symbol))
	default:
		logger.Warnf("[trader] %s 移动通道止损失败: %v", p.cfg.Unit, err)
	}
}

func (p *Processor) inSession() bool {
	if !p.cfg.Session.Enabled() {
		return true
	}
	if p.comb == nil {
		return false
	}
	last, ok := p.comb.LastCandle()
	return ok && p.cfg.Session.Contains(last.Time())
}

func (p *Processor) publish(force bool) {
	now := p.now()
	if !force && now.Sub(p.lastSnapshot) < p.snapshotThrottle {
		return
	}
	p.lastSnapshot = now
	s := &Snapshot{
		Unit:           p.cfg.Unit,
		Symbol:         p.cfg.Symbol,
		Broker:         p.deps.Exchange.Name(),
		LastPrice:      p.lastPrice,
		LastTick:       p.lastTick,
		ClosedDeals:    p.closed,
		RealizedProfit: p.realized,
		UpdatedAt:      now.UTC(),
	}
	if p.agg != nil {
		s.Interval = interval.Format(p.agg.Interval())
		s.Candles = p.agg.Len()
		if c, ok := p.agg.LastCompletedCandle(); ok {
			s.LastCandle = &c
		}
	}
	if p.comb != nil {
		for _, m := range p.comb.Members() {
			s.Strategies = append(s.Strategies, m.Strategy.Name())
		}
	}
	if p.open.IsOpen() {
		cp := *p.open
		s.OpenDeal = &cp
	}
	p.snapshot.Store(s)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
