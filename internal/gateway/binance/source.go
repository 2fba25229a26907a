// Package binance 基于 go-binance 的 U 本位合约接口提供历史 K 线，并通过 bookTicker 推送提供报价流。
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tickbot/internal/market"
	"tickbot/internal/pkg/interval"
	"tickbot/internal/pkg/symbol"
	"tickbot/internal/stream"
)

const (
	maxHistoryLimit = 1500

	codeTooManyRequests = -1003
	codeIPBanned        = -1015
)

// Source 是 Binance 的历史数据与行情入口。
type Source struct {
	cfg    Config
	client *futures.Client
	dialer *websocket.Dialer
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	dialer := &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	if final.ProxyEnabled && final.WSProxyURL != "" {
		wsProxy, err := url.Parse(final.WSProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid WS proxy url: %w", err)
		}
		dialer.Proxy = http.ProxyURL(wsProxy)
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client, dialer: dialer}, nil
}

// FetchSeed 拉取最近 size 根 K 线并按最新在前返回，与 Exante 的历史接口保持一致。
func (s *Source) FetchSeed(ctx context.Context, sym string, iv time.Duration, size int) ([]market.SeedRow, error) {
	if size <= 0 {
		size = 100
	}
	if size > maxHistoryLimit {
		size = maxHistoryLimit
	}
	clean := symbol.Binance(sym)
	if clean == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval(interval.Format(iv)).Limit(size).Do(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	rows := make([]market.SeedRow, 0, len(kls))
	for i := len(kls) - 1; i >= 0; i-- {
		kl := kls[i]
		if kl == nil {
			continue
		}
		row, err := seedRow(kl)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", kl.OpenTime, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func seedRow(kl *futures.Kline) (market.SeedRow, error) {
	row := market.SeedRow{Timestamp: kl.OpenTime}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{kl.Open, &row.Open},
		{kl.High, &row.High},
		{kl.Low, &row.Low},
		{kl.Close, &row.Close},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return market.SeedRow{}, fmt.Errorf("%w: %q", market.ErrMalformedRecord, f.raw)
		}
		*f.dst = v
	}
	return row, nil
}

// mapError 把限流类错误统一映射为 stream.ErrRateLimited。
func mapError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == codeTooManyRequests || apiErr.Code == codeIPBanned) {
		return fmt.Errorf("%w: %s", stream.ErrRateLimited, apiErr.Message)
	}
	return err
}

// QuoteFeed 订阅最优买卖价推送，记录需用 market.ParseBookTicker 解码。
func (s *Source) QuoteFeed(sym string) *stream.WSFeed {
	clean := symbol.Binance(sym)
	uri := s.cfg.WSBaseURL + "/" + strings.ToLower(clean) + "@bookTicker"
	return stream.NewWSFeed("binance:"+clean, uri, s.cfg.ReadTimeout, stream.WithDialer(s.dialer))
}
