package trader

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tickbot/internal/deal"
	"tickbot/internal/market"
	"tickbot/internal/stream"
)

// Journal 记录持仓生命周期，实现需自行保证并发安全。
type Journal interface {
	RecordOpen(ctx context.Context, unit string, d *deal.Deal) error
	RecordStopMove(ctx context.Context, unit string, d *deal.Deal, level decimal.Decimal) error
	RecordClose(ctx context.Context, unit string, d *deal.Deal) error
}

// CandleArchive 保存已完成的蜡烛，供回测重放。
type CandleArchive interface {
	ArchiveCandle(ctx context.Context, symbol string, interval time.Duration, c market.Candle) error
}

// SeedSource 返回最新在前的历史 K 线。
type SeedSource interface {
	FetchSeed(ctx context.Context, symbol string, interval time.Duration, size int) ([]market.SeedRow, error)
}

// Snapshot 是单个交易单元对外展示的只读状态。
type Snapshot struct {
	Unit           string          `json:"unit"`
	Symbol         string          `json:"symbol"`
	Broker         string          `json:"broker"`
	Interval       string          `json:"interval"`
	Strategies     []string        `json:"strategies"`
	LastPrice      decimal.Decimal `json:"last_price"`
	LastTick       time.Time       `json:"last_tick"`
	Candles        int             `json:"candles"`
	LastCandle     *market.Candle  `json:"last_candle,omitempty"`
	OpenDeal       *deal.Deal      `json:"open_deal,omitempty"`
	ClosedDeals    int             `json:"closed_deals"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	Stream         stream.Stats    `json:"stream"`
	Restarts       int             `json:"restarts"`
	LastError      string          `json:"last_error,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
