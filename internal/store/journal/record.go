package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
)

// Record 是日志中的一笔持仓。
type Record struct {
	Unit      string     `json:"unit"`
	Deal      deal.Deal  `json:"deal"`
	StopMoves []StopMove `json:"stop_moves,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toModel(unit string, d *deal.Deal) DealModel {
	m := DealModel{
		DealID:      d.ID,
		Unit:        unit,
		Symbol:      d.Symbol,
		Strategy:    d.Strategy,
		Side:        string(d.Side),
		Amount:      d.Amount,
		EntryPrice:  d.EntryPrice,
		StopLoss:    d.StopLoss,
		TakeProfit:  d.TakeProfit,
		Status:      string(d.Status),
		ExitPrice:   d.ExitPrice,
		Profit:      d.Profit,
		CloseReason: string(d.CloseReason),
		OpenedAt:    unixMilli(d.OpenedAt),
		ClosedAt:    unixMilli(d.ClosedAt),
	}
	return m
}

func fromModel(m DealModel) (Record, error) {
	rec := Record{
		Unit: m.Unit,
		Deal: deal.Deal{
			ID:          m.DealID,
			Symbol:      m.Symbol,
			Strategy:    m.Strategy,
			Side:        deal.Side(m.Side),
			Amount:      m.Amount,
			EntryPrice:  m.EntryPrice,
			StopLoss:    m.StopLoss,
			TakeProfit:  m.TakeProfit,
			Status:      deal.Status(m.Status),
			ExitPrice:   m.ExitPrice,
			Profit:      m.Profit,
			CloseReason: deal.CloseReason(m.CloseReason),
			OpenedAt:    fromMilli(m.OpenedAt),
			ClosedAt:    fromMilli(m.ClosedAt),
		},
		UpdatedAt: fromMilli(m.UpdatedAt),
	}
	if len(m.StopMoves) > 0 {
		if err := json.Unmarshal(m.StopMoves, &rec.StopMoves); err != nil {
			return Record{}, fmt.Errorf("journal: decode stop moves of %s: %w", m.DealID, err)
		}
	}
	return rec, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// TotalProfit 汇总已平仓记录的盈亏。
func TotalProfit(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Deal.Status == deal.StatusClosed {
			total = total.Add(r.Deal.Profit)
		}
	}
	return total
}
