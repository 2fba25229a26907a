package backtest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
)

// Stats 汇总一次重放的盈亏。盈利（含 0）计入 Wins，亏损计入 Losses。
// 回撤按连续亏损累计，遇到盈利即清零，MaxDrawdown 取历史最大值。
type Stats struct {
	Candles      int             `json:"candles"`
	Deals        int             `json:"deals"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	TakeProfits  int             `json:"take_profits"`
	StopLosses   int             `json:"stop_losses"`
	Profit       decimal.Decimal `json:"profit"`
	Loss         decimal.Decimal `json:"loss"`
	Total        decimal.Decimal `json:"total"`
	ProfitFactor decimal.Decimal `json:"profit_factor"`
	MaxDrawdown  decimal.Decimal `json:"max_drawdown"`

	drawdown decimal.Decimal
}

func (s *Stats) record(d *deal.Deal) {
	s.Deals++
	switch d.CloseReason {
	case deal.ReasonTakeProfit:
		s.TakeProfits++
	case deal.ReasonStopLoss:
		s.StopLosses++
	}
	if !d.Profit.IsNegative() {
		s.Wins++
		s.Profit = s.Profit.Add(d.Profit)
		s.drawdown = decimal.Zero
	} else {
		s.Losses++
		s.Loss = s.Loss.Add(d.Profit.Abs())
		s.drawdown = s.drawdown.Add(d.Profit.Abs())
	}
	if s.drawdown.GreaterThan(s.MaxDrawdown) {
		s.MaxDrawdown = s.drawdown
	}
	s.Total = s.Profit.Sub(s.Loss)
	if s.Loss.IsPositive() {
		s.ProfitFactor = s.Profit.DivRound(s.Loss, 4)
	}
}

// WinRate 返回盈利笔数占比。
func (s Stats) WinRate() float64 {
	if s.Deals == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Deals)
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "candles      : %d\n", s.Candles)
	fmt.Fprintf(&b, "deals        : %d (win %d / loss %d, %.2f%%)\n", s.Deals, s.Wins, s.Losses, s.WinRate()*100)
	fmt.Fprintf(&b, "take_profit  : %d\n", s.TakeProfits)
	fmt.Fprintf(&b, "stop_loss    : %d\n", s.StopLosses)
	fmt.Fprintf(&b, "profit       : %s\n", s.Profit.StringFixed(2))
	fmt.Fprintf(&b, "loss         : %s\n", s.Loss.StringFixed(2))
	fmt.Fprintf(&b, "total        : %s\n", s.Total.StringFixed(2))
	fmt.Fprintf(&b, "profit_factor: %s\n", s.ProfitFactor.StringFixed(2))
	fmt.Fprintf(&b, "max_drawdown : %s\n", s.MaxDrawdown.StringFixed(2))
	return b.String()
}
