package exante

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"tickbot/internal/deal"
	"tickbot/internal/gateway/exchange"
	"tickbot/internal/logger"
)

const protectiveDuration = "good_till_cancel"

type orderRequest struct {
	AccountID  string `json:"accountId"`
	SymbolID   string `json:"symbolId"`
	Side       string `json:"side"`
	Quantity   string `json:"quantity"`
	OrderType  string `json:"orderType"`
	Duration   string `json:"duration"`
	TakeProfit string `json:"takeProfit,omitempty"`
	StopLoss   string `json:"stopLoss,omitempty"`
	StopPrice  string `json:"stopPrice,omitempty"`
	LimitPrice string `json:"limitPrice,omitempty"`
}

type orderAction struct {
	Action     string            `json:"action"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// OpenPosition 下市价单并附带止损/止盈。市价单有效期与保护单不同时，保护单会按 good_till_cancel 重新挂出。
func (c *Client) OpenPosition(ctx context.Context, req exchange.OpenRequest) (*exchange.OpenResult, error) {
	if !req.Side.Valid() || !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("exante: invalid open request side=%s qty=%s", req.Side, req.Quantity)
	}
	body, err := c.post(ctx, c.endpoint("trade", "orders"), orderRequest{
		AccountID:  c.cfg.AccountID,
		SymbolID:   req.Symbol,
		Side:       string(req.Side),
		Quantity:   req.Quantity.String(),
		OrderType:  "market",
		Duration:   c.cfg.OrderDuration,
		TakeProfit: nonZero(req.TakeProfit),
		StopLoss:   nonZero(req.StopLoss),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", req.Symbol, req.Side, err)
	}
	res := &exchange.OpenResult{}
	for _, o := range gjson.ParseBytes(body).Array() {
		params := o.Get("orderParameters")
		switch params.Get("orderType").String() {
		case "market":
			res.OrderID = o.Get("orderId").String()
		case "stop", "limit":
			if c.cfg.OrderDuration == protectiveDuration {
				continue
			}
			if err := c.reissueProtective(ctx, req.Symbol, o); err != nil {
				logger.Warnf("[exante] 重挂保护单失败 %s: %v", o.Get("orderId").String(), err)
			}
		}
	}
	return res, nil
}

func (c *Client) reissueProtective(ctx context.Context, symbol string, o gjson.Result) error {
	if err := c.cancelOrder(ctx, o.Get("orderId").String()); err != nil {
		return err
	}
	params := o.Get("orderParameters")
	_, err := c.post(ctx, c.endpoint("trade", "orders"), orderRequest{
		AccountID:  c.cfg.AccountID,
		SymbolID:   symbol,
		Side:       params.Get("side").String(),
		Quantity:   params.Get("quantity").String(),
		OrderType:  params.Get("orderType").String(),
		Duration:   protectiveDuration,
		StopPrice:  params.Get("stopPrice").String(),
		LimitPrice: params.Get("limitPrice").String(),
	})
	return err
}

// GetPosition 从账户汇总中查找持仓，数量为 0 或不存在时返回 (nil, nil)。
func (c *Client) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	pos, err := c.findPosition(ctx, symbol)
	if err != nil || pos.IsFlat() {
		return nil, err
	}
	return pos, nil
}

func (c *Client) findPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	body, err := c.get(ctx, c.endpoint("md", "summary", c.cfg.AccountID, c.cfg.Currency), nil)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	for _, p := range gjson.GetBytes(body, "positions").Array() {
		if p.Get("symbolId").String() != symbol {
			continue
		}
		qty, err := decimal.NewFromString(p.Get("quantity").String())
		if err != nil {
			return nil, fmt.Errorf("summary: bad quantity %q", p.Get("quantity").String())
		}
		return &exchange.Position{
			Symbol:    symbol,
			Quantity:  qty,
			AvgPrice:  decimalOrZero(p.Get("averagePrice").String()),
			PnL:       decimalOrZero(p.Get("convertedPnl").String()),
			Currency:  c.cfg.Currency,
			UpdatedAt: time.Now().UTC(),
		}, nil
	}
	return nil, nil
}

// ClosePosition 撤销该品种所有挂单后以市价反向平仓。
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	pos, err := c.findPosition(ctx, symbol)
	if err != nil {
		return err
	}
	if pos == nil {
		return ErrPositionNotFound
	}
	if pos.Quantity.IsZero() {
		return ErrPositionAlreadyClosed
	}
	if err := c.CancelActiveOrders(ctx, symbol); err != nil {
		return err
	}
	_, err = c.post(ctx, c.endpoint("trade", "orders"), orderRequest{
		AccountID: c.cfg.AccountID,
		SymbolID:  symbol,
		Side:      string(pos.Side().Opposite()),
		Quantity:  pos.Quantity.Abs().String(),
		OrderType: "market",
		Duration:  c.cfg.OrderDuration,
	})
	if err != nil {
		return fmt.Errorf("close %s: %w", symbol, err)
	}
	return nil
}

func (c *Client) CancelActiveOrders(ctx context.Context, symbol string) error {
	body, err := c.get(ctx, c.endpoint("trade", "orders", "active"), nil)
	if err != nil {
		return fmt.Errorf("active orders: %w", err)
	}
	for _, o := range gjson.ParseBytes(body).Array() {
		if o.Get("orderParameters.symbolId").String() != symbol {
			continue
		}
		if err := c.cancelOrder(ctx, o.Get("orderId").String()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) cancelOrder(ctx context.Context, id string) error {
	_, err := c.post(ctx, c.endpoint("trade", "orders", id), orderAction{Action: "cancel"})
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	return nil
}

// MoveStopLoss 修改生效中的止损单；新价位不优于当前止损时不做任何事。
func (c *Client) MoveStopLoss(ctx context.Context, symbol string, stop decimal.Decimal) error {
	body, err := c.get(ctx, c.endpoint("trade", "orders"), url.Values{"limit": {"20"}})
	if err != nil {
		return fmt.Errorf("orders: %w", err)
	}
	var stopOrder gjson.Result
	for _, o := range gjson.ParseBytes(body).Array() {
		params := o.Get("orderParameters")
		if params.Get("symbolId").String() != symbol || o.Get("orderState.status").String() != "working" {
			continue
		}
		if params.Get("stopPrice").Exists() {
			stopOrder = o
			break
		}
	}
	if !stopOrder.Exists() {
		return ErrOrdersNotFound
	}
	params := stopOrder.Get("orderParameters")
	current := decimalOrZero(params.Get("stopPrice").String())
	// 卖出止损保护多头，只能上移；买入止损保护空头，只能下移。
	improves := stop.GreaterThan(current)
	if deal.Side(params.Get("side").String()) == deal.SideBuy {
		improves = stop.LessThan(current)
	}
	if !improves {
		return nil
	}
	id := stopOrder.Get("orderId").String()
	_, err = c.post(ctx, c.endpoint("trade", "orders", id), orderAction{
		Action: "replace",
		Parameters: map[string]string{
			"stopPrice": stop.String(),
			"quantity":  params.Get("quantity").String(),
		},
	})
	if err != nil {
		return fmt.Errorf("replace stop %s: %w", id, err)
	}
	logger.Infof("[exante] %s 止损 %s -> %s", symbol, current, stop)
	return nil
}

func nonZero(v decimal.Decimal) string {
	if v.IsZero() {
		return ""
	}
	return v.String()
}

func decimalOrZero(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
