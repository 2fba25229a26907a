package exchange

import (
	"time"

	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
)

// Position 是通道侧的持仓快照；Quantity 为带符号数量，空头为负。
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	PnL       decimal.Decimal `json:"pnl"`
	Currency  string          `json:"currency,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (p *Position) IsFlat() bool {
	return p == nil || p.Quantity.IsZero()
}

// Side 根据数量符号返回方向。
func (p *Position) Side() deal.Side {
	if p.Quantity.IsNegative() {
		return deal.SideSell
	}
	return deal.SideBuy
}

// OpenRequest 描述一次带保护单的市价开仓。
type OpenRequest struct {
	Symbol     string
	Side       deal.Side
	Quantity   decimal.Decimal
	// Price 是信号价格，市价单仅作参考。
	Price      decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Tag        string
}

// RequestFromDeal 由本地 deal 生成开仓请求。
func RequestFromDeal(d *deal.Deal) OpenRequest {
	return OpenRequest{
		Symbol:     d.Symbol,
		Side:       d.Side,
		Quantity:   d.Amount,
		Price:      d.EntryPrice,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
		Tag:        d.Strategy,
	}
}

type OpenResult struct {
	OrderID string
}
