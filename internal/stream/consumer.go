package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"tickbot/internal/logger"
	"tickbot/internal/market"
)

var (
	// ErrRateLimited 由数据源在被限流时返回，消费循环不会自行重试，交由上层冷却。
	ErrRateLimited = errors.New("rate limited")
	// ErrReadTimeout 表示连接在读超时内没有任何数据。
	ErrReadTimeout = errors.New("stream read timeout")
	// ErrStreamClosed 表示服务端正常关闭了连接。
	ErrStreamClosed = errors.New("stream closed by remote")
)

// Conn 是一条已建立的行情连接，Next 逐条返回原始记录。
type Conn interface {
	Next() ([]byte, error)
	Close() error
}

// Feed 负责建立连接。
type Feed interface {
	Name() string
	Connect(ctx context.Context) (Conn, error)
}

// Handler 按到达顺序处理事件，返回错误会触发重连。
type Handler func(ctx context.Context, ev market.StreamEvent) error

type Options struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Decoder  market.Decoder
	// BeforeConnect 在每次建立连接前执行（例如重新拉取历史数据）。
	BeforeConnect func(ctx context.Context) error
	// OnError 在每次退避等待之前调用（限流与 ctx 取消除外），delay 为随后的等待时长。
	OnError func(ctx context.Context, err error, delay time.Duration)
	// Sleep 可在测试中替换；返回 false 表示 ctx 已取消。
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Stats 是消费循环的运行计数。
type Stats struct {
	Connects   int       `json:"connects"`
	Failures   int       `json:"failures"`
	Events     int64     `json:"events"`
	LastError  string    `json:"last_error,omitempty"`
	LastEvent  time.Time `json:"last_event"`
	LastDelay  string    `json:"last_delay,omitempty"`
	Connecting bool      `json:"connecting"`
}

// Consumer 维持一条行情订阅：断线按指数退避重连，成功处理事件后退避复位。
// 事件严格按到达顺序同步处理，前一条处理完之前不会读取下一条。
type Consumer struct {
	feed    Feed
	opts    Options
	backoff *backoff.Backoff

	mu    sync.Mutex
	stats Stats
}

func NewConsumer(feed Feed, opts Options) *Consumer {
	if opts.MinDelay <= 0 {
		opts.MinDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Decoder == nil {
		opts.Decoder = market.ParseQuoteRecord
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	return &Consumer{
		feed: feed,
		opts: opts,
		backoff: &backoff.Backoff{
			Min:    opts.MinDelay,
			Max:    opts.MaxDelay,
			Factor: 2,
			Jitter: false,
		},
	}
}

func (c *Consumer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run 阻塞直至 ctx 取消或数据源返回 ErrRateLimited。其它错误只经 OnError 上报，不会返回。
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrRateLimited) {
			c.recordFailure(err, 0)
			return err
		}
		delay := c.backoff.Duration()
		c.recordFailure(err, delay)
		switch {
		case errors.Is(err, ErrReadTimeout):
			logger.Warnf("[stream] %s 读超时，%s 后重连", c.feed.Name(), delay)
		case errors.Is(err, ErrStreamClosed):
			logger.Infof("[stream] %s 连接被关闭，%s 后重连", c.feed.Name(), delay)
		default:
			logger.Errorf("[stream] %s 异常: %v，%s 后重连", c.feed.Name(), err, delay)
		}
		if c.opts.OnError != nil {
			c.opts.OnError(ctx, err, delay)
		}
		if !c.opts.Sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) session(ctx context.Context, handle Handler) error {
	c.setConnecting(true)
	if c.opts.BeforeConnect != nil {
		if err := c.opts.BeforeConnect(ctx); err != nil {
			c.setConnecting(false)
			return fmt.Errorf("prepare %s: %w", c.feed.Name(), err)
		}
	}
	conn, err := c.feed.Connect(ctx)
	c.setConnecting(false)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.feed.Name(), err)
	}
	defer conn.Close()
	c.mu.Lock()
	c.stats.Connects++
	c.mu.Unlock()
	logger.Infof("[stream] %s 已连接", c.feed.Name())

	for {
		record, err := conn.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return err
		}
		record = bytes.TrimSpace(record)
		if len(record) == 0 {
			continue
		}
		ev, err := c.opts.Decoder(record)
		if err != nil {
			return err
		}
		if err := safeHandle(ctx, handle, ev); err != nil {
			return fmt.Errorf("process event: %w", err)
		}
		c.backoff.Reset()
		c.mu.Lock()
		c.stats.Events++
		c.stats.LastEvent = time.Now().UTC()
		c.mu.Unlock()
	}
}

func safeHandle(ctx context.Context, handle Handler, ev market.StreamEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handle(ctx, ev)
}

func (c *Consumer) setConnecting(v bool) {
	c.mu.Lock()
	c.stats.Connecting = v
	c.mu.Unlock()
}

func (c *Consumer) recordFailure(err error, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Failures++
	if err != nil {
		c.stats.LastError = err.Error()
	}
	if delay > 0 {
		c.stats.LastDelay = delay.String()
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
