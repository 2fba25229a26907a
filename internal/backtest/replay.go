// Package backtest 在已归档的蜡烛上重放策略组合，统计持仓结果。
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickbot/internal/deal"
	"tickbot/internal/logger"
	"tickbot/internal/market"
	"tickbot/internal/money"
	"tickbot/internal/strategy"
)

// CandleLoader 按时间升序返回 [from, to] 内的蜡烛。
type CandleLoader interface {
	Load(ctx context.Context, symbol string, interval time.Duration, from, to int64) ([]market.Candle, error)
}

type Config struct {
	Symbol   string
	Interval time.Duration
	From     int64
	To       int64
	Opposite deal.OppositePolicy
}

// Result 是一次重放的结果。
type Result struct {
	Symbol string       `json:"symbol"`
	Stats  Stats        `json:"stats"`
	Deals  []*deal.Deal `json:"deals"`
	Open   *deal.Deal   `json:"open,omitempty"`
}

// Runner 逐根蜡烛重放：先用蜡烛检查持仓的止损/止盈，再把蜡烛交给策略，最后以收盘价评估信号。
type Runner struct {
	cfg  Config
	comb *strategy.Combinator

	open      *deal.Deal
	openMoney *money.Manager
	res       Result
}

func NewRunner(cfg Config, comb *strategy.Combinator) (*Runner, error) {
	if comb == nil || comb.Len() == 0 {
		return nil, errors.New("backtest: at least one strategy is required")
	}
	if cfg.Opposite == "" {
		cfg.Opposite = deal.OppositeIgnore
	}
	return &Runner{cfg: cfg, comb: comb, res: Result{Symbol: cfg.Symbol}}, nil
}

// Replay 从 loader 读取蜡烛并重放。
func Replay(ctx context.Context, loader CandleLoader, cfg Config, comb *strategy.Combinator) (Result, error) {
	candles, err := loader.Load(ctx, cfg.Symbol, cfg.Interval, cfg.From, cfg.To)
	if err != nil {
		return Result{}, fmt.Errorf("load candles: %w", err)
	}
	if len(candles) == 0 {
		return Result{}, fmt.Errorf("backtest: no candles for %s", cfg.Symbol)
	}
	r, err := NewRunner(cfg, comb)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	res, err := r.Run(ctx, candles)
	if err != nil {
		return res, err
	}
	logger.Infof("[backtest] %s 重放 %d 根蜡烛完成，耗时 %s，共 %d 笔，合计 %s",
		cfg.Symbol, res.Stats.Candles, time.Since(start).Round(time.Millisecond), res.Stats.Deals, res.Stats.Total.StringFixed(2))
	return res, nil
}

func (r *Runner) Run(ctx context.Context, candles []market.Candle) (Result, error) {
	for _, c := range candles {
		if err := ctx.Err(); err != nil {
			return r.result(), err
		}
		r.Step(c)
	}
	return r.result(), nil
}

// Step 处理一根已完成的蜡烛。
func (r *Runner) Step(c market.Candle) {
	r.res.Stats.Candles++
	if r.open.IsOpen() {
		if _, hit := r.open.Check(c); hit {
			r.settle()
		}
	}
	r.comb.AddCandle(c)

	price := c.Close
	out := r.comb.CheckPrice(price)
	switch out.Kind {
	case strategy.OutcomeOpen:
		switch deal.Resolve(r.open, out.Deal.Side, r.cfg.Opposite) {
		case deal.ActionOpen:
			r.take(out)
		case deal.ActionReverse:
			if _, err := r.open.Close(price, deal.ReasonReverse); err == nil {
				r.settle()
			}
			r.take(out)
		}
	case strategy.OutcomeClose:
		if r.open.IsOpen() {
			if _, err := r.open.Close(price, deal.ReasonSignal); err == nil {
				r.settle()
			}
		}
	}
	if r.open.IsOpen() && r.openMoney != nil {
		_, _ = r.openMoney.TrailingStopCheck(price, r.open)
	}
}

func (r *Runner) take(out strategy.Outcome) {
	out.Deal.Symbol = r.cfg.Symbol
	r.open = out.Deal
	r.openMoney = out.Money
}

func (r *Runner) settle() {
	r.res.Stats.record(r.open)
	r.res.Deals = append(r.res.Deals, r.open)
	r.open = nil
	r.openMoney = nil
}

func (r *Runner) result() Result {
	res := r.res
	if r.open.IsOpen() {
		res.Open = r.open
	}
	return res
}
