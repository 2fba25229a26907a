// Package exchange 定义下单通道的统一抽象，实盘（Exante）与模拟盘共用同一组接口。
package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"tickbot/internal/market"
)

var (
	// ErrPositionNotFound 表示账户中没有该品种的持仓。
	ErrPositionNotFound = errors.New("position not found")
	// ErrPositionAlreadyClosed 表示持仓数量已为 0。
	ErrPositionAlreadyClosed = errors.New("position already closed")
	// ErrOrdersNotFound 表示找不到可修改的止损/止盈挂单。
	ErrOrdersNotFound = errors.New("protective orders not found")
)

// Exchange 是交易处理链路使用的下单接口。
type Exchange interface {
	Name() string

	OpenPosition(ctx context.Context, req OpenRequest) (*OpenResult, error)

	ClosePosition(ctx context.Context, symbol string) error

	// GetPosition 在无持仓时返回 (nil, nil)。
	GetPosition(ctx context.Context, symbol string) (*Position, error)

	CancelActiveOrders(ctx context.Context, symbol string) error
}

// StopMover 由支持修改止损挂单的通道实现。
type StopMover interface {
	MoveStopLoss(ctx context.Context, symbol string, stop decimal.Decimal) error
}

// ProtectiveFiller 由没有真实保护单的通道实现（模拟盘）：每根完成的蜡烛到来时撮合止损/止盈，
// 触发时平掉持仓并返回成交价。
type ProtectiveFiller interface {
	FillProtective(symbol string, c market.Candle) (decimal.Decimal, bool)
}

// IsBenign 判断错误是否属于业务状态（而非通道故障），这类错误不应触发熔断。
func IsBenign(err error) bool {
	return errors.Is(err, ErrPositionNotFound) ||
		errors.Is(err, ErrPositionAlreadyClosed) ||
		errors.Is(err, ErrOrdersNotFound)
}
