package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSFeed 是 websocket 行情源，每条文本消息视为一条记录。
type WSFeed struct {
	name        string
	url         string
	header      http.Header
	dialer      *websocket.Dialer
	readTimeout time.Duration
	subscribe   []byte
}

type WSOption func(*WSFeed)

// WithSubscribe 在连接建立后发送一条订阅消息。
func WithSubscribe(msg []byte) WSOption {
	return func(f *WSFeed) { f.subscribe = msg }
}

func WithHeader(h http.Header) WSOption {
	return func(f *WSFeed) { f.header = h }
}

func WithDialer(d *websocket.Dialer) WSOption {
	return func(f *WSFeed) {
		if d != nil {
			f.dialer = d
		}
	}
}

func NewWSFeed(name, url string, readTimeout time.Duration, opts ...WSOption) *WSFeed {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	f := &WSFeed{
		name:        name,
		url:         url,
		readTimeout: readTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *WSFeed) Name() string { return f.name }

func (f *WSFeed) Connect(ctx context.Context) (Conn, error) {
	conn, resp, err := f.dialer.DialContext(ctx, f.url, f.header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, ErrRateLimited
		}
		return nil, err
	}
	if len(f.subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, f.subscribe); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	return &wsConn{conn: conn, timeout: f.readTimeout}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (c *wsConn) Next() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, ErrReadTimeout
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrStreamClosed
		}
		return nil, err
	}
	return msg, nil
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
