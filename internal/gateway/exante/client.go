// Package exante 是 Exante HTTP API 的客户端：历史 K 线、行情流与下单。
package exante

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"tickbot/internal/gateway/exchange"
	"tickbot/internal/logger"
	"tickbot/internal/pkg/circuit"
	"tickbot/internal/stream"
)

const (
	DemoURL = "https://api-demo.exante.eu"
	LiveURL = "https://api-live.exante.eu"

	apiVersion = "3.0"
)

var (
	ErrPositionNotFound      = exchange.ErrPositionNotFound
	ErrPositionAlreadyClosed = exchange.ErrPositionAlreadyClosed
	ErrOrdersNotFound        = exchange.ErrOrdersNotFound
)

// APIError 是非 2xx 响应。
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exante: status %d: %s", e.Status, e.Body)
}

type Config struct {
	BaseURL       string
	ApplicationID string
	AccessKey     string
	AccountID     string
	// Currency 是账户汇总的计价货币。
	Currency string
	// OrderDuration 用于市价单，保护单始终为 good_till_cancel。
	OrderDuration     string
	Timeout           time.Duration
	StreamReadTimeout time.Duration
}

type Client struct {
	cfg     Config
	http    *fasthttp.Client
	auth    string
	breaker *circuit.CircuitBreaker
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ApplicationID) == "" || strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, fmt.Errorf("exante: application_id and access_key are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DemoURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	cfg.Currency = strings.ToUpper(cfg.Currency)
	if cfg.OrderDuration == "" {
		cfg.OrderDuration = "good_till_cancel"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	token := base64.StdEncoding.EncodeToString([]byte(cfg.ApplicationID + ":" + cfg.AccessKey))
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                "tickbot",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		auth:    "Basic " + token,
		breaker: circuit.New("exante", 5, 30*time.Second, circuit.WithTripFilter(tripOn)),
	}, nil
}

func (c *Client) Name() string { return "exante" }

// tripOn 只有通道故障（网络错误、5xx）计入熔断。
func tripOn(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return !exchange.IsBenign(err) && !errors.Is(err, stream.ErrRateLimited)
}

func (c *Client) endpoint(kind, method string, params ...string) string {
	var b strings.Builder
	b.WriteString(c.cfg.BaseURL)
	b.WriteString("/")
	b.WriteString(kind)
	b.WriteString("/")
	b.WriteString(apiVersion)
	b.WriteString("/")
	b.WriteString(method)
	for _, p := range params {
		b.WriteString("/")
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func (c *Client) get(ctx context.Context, uri string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	return c.do(ctx, fasthttp.MethodGet, uri, nil)
}

func (c *Client) post(ctx context.Context, uri string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, fasthttp.MethodPost, uri, body)
}

func (c *Client) do(ctx context.Context, method, uri string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := c.breaker.Execute(func() error {
		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(method)
		req.Header.Set("Authorization", c.auth)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.SetContentType("application/json")
			req.SetBody(body)
		}

		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(c.cfg.Timeout)
		}
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			return fmt.Errorf("exante %s %s: %w", method, uri, err)
		}
		status := resp.StatusCode()
		if status == fasthttp.StatusTooManyRequests {
			return stream.ErrRateLimited
		}
		if status < 200 || status >= 300 {
			return &APIError{Status: status, Body: truncate(resp.Body(), 256)}
		}
		out = append([]byte(nil), resp.Body()...)
		return nil
	})
	if err != nil {
		logger.Debugf("[exante] %s %s 失败: %v", method, uri, err)
	}
	return out, err
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
