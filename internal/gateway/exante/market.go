package exante

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tickbot/internal/market"
	"tickbot/internal/stream"
)

// FetchSeed 拉取最近 size 根 K 线，返回顺序与接口一致（最新在前）。
func (c *Client) FetchSeed(ctx context.Context, symbol string, interval time.Duration, size int) ([]market.SeedRow, error) {
	sec := int64(interval / time.Second)
	if sec <= 0 {
		return nil, fmt.Errorf("exante: invalid candle interval %s", interval)
	}
	query := url.Values{}
	if size > 0 {
		query.Set("size", strconv.Itoa(size))
	}
	body, err := c.get(ctx, c.endpoint("md", "ohlc", symbol, strconv.FormatInt(sec, 10)), query)
	if err != nil {
		return nil, fmt.Errorf("fetch ohlc %s: %w", symbol, err)
	}
	return market.ParseSeedRows(body)
}

// QuoteFeed 返回该品种的报价流。长连接走 net/http，便于逐行读取 body。
func (c *Client) QuoteFeed(symbol string) *stream.HTTPFeed {
	uri := c.endpoint("md", "feed", symbol)
	newRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.auth)
		req.Header.Set("Accept", "application/x-json-stream")
		return req, nil
	}
	return stream.NewHTTPFeed("exante:"+symbol, nil, newRequest, c.cfg.StreamReadTimeout)
}
