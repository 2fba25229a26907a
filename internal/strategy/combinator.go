package strategy

import (
	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
	"tickbot/internal/market"
	"tickbot/internal/money"
)

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeOpen
	OutcomeClose
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOpen:
		return "open"
	case OutcomeClose:
		return "close"
	default:
		return "none"
	}
}

// Outcome 是组合器一次评估的结果：新开仓、请求平仓或无动作。
type Outcome struct {
	Kind   OutcomeKind
	Deal   *deal.Deal
	Money  *money.Manager
	Source string
}

// Member 将策略与其资金管理配置绑定。
type Member struct {
	Strategy Strategy
	Money    *money.Manager
}

// Combinator 按顺序评估多个策略：第一个 buy/sell 立即胜出；
// 若整轮没有开仓信号但有策略请求 close，则在遍历结束后报告 close。
type Combinator struct {
	members []Member
}

func NewCombinator(members ...Member) *Combinator {
	return &Combinator{members: members}
}

func (c *Combinator) Members() []Member { return c.members }

func (c *Combinator) Len() int { return len(c.members) }

func (c *Combinator) AddCandle(candle market.Candle) {
	for _, m := range c.members {
		m.Strategy.AddCandle(candle)
	}
}

// Seed 用历史行（最新在前）初始化全部策略；rows 中最新一行视为未完成，不参与初始化。
func (c *Combinator) Seed(rows []market.SeedRow) {
	if len(rows) == 0 {
		return
	}
	completed := rows[1:]
	for _, m := range c.members {
		if seeder, ok := m.Strategy.(RowSeeder); ok {
			seeder.SeedRows(completed)
			continue
		}
		for _, row := range market.Chronological(completed) {
			m.Strategy.AddCandle(row.Candle())
		}
	}
}

func (c *Combinator) CheckPrice(price decimal.Decimal) Outcome {
	closeFrom := ""
	for _, m := range c.members {
		sig, ok := m.Strategy.CheckPrice(price)
		if !ok {
			continue
		}
		side, open := sig.Side()
		if !open {
			if closeFrom == "" {
				closeFrom = m.Strategy.Name()
			}
			continue
		}
		d := m.Money.OpenDeal(side, price)
		d.Strategy = m.Strategy.Name()
		return Outcome{Kind: OutcomeOpen, Deal: d, Money: m.Money, Source: m.Strategy.Name()}
	}
	if closeFrom != "" {
		return Outcome{Kind: OutcomeClose, Source: closeFrom}
	}
	return Outcome{Kind: OutcomeNone}
}

// LastCandle 以第一个策略的历史为准。
func (c *Combinator) LastCandle() (market.Candle, bool) {
	if len(c.members) == 0 {
		return market.Candle{}, false
	}
	return c.members[0].Strategy.History().Last()
}
