package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tickbot/internal/gateway/notifier"
	"tickbot/internal/logger"
	"tickbot/internal/market"
	"tickbot/internal/strategy"
	"tickbot/internal/stream"
)

const (
	defaultRateLimitCooldown = 60 * time.Second
	defaultErrorCooldown     = 3 * time.Second
	defaultSeedSize          = 1000
)

type RunnerConfig struct {
	Unit     string
	Symbol   string
	Interval time.Duration
	SeedSize int
	// Capacity 是聚合器保留的蜡烛数量。
	Capacity          int
	PricePlaces       int32
	MinDelay          time.Duration
	MaxDelay          time.Duration
	RateLimitCooldown time.Duration
	ErrorCooldown     time.Duration
	Tags              []string
}

// CombinatorFactory 每次重新拉取历史时构造一组全新的策略实例。
type CombinatorFactory func() (*strategy.Combinator, error)

// Runner 是一个交易单元（品种 × 账户）：维持行情订阅，每次建立连接前重新拉取历史并重建策略。
// 限流时整体冷却较长时间后从头开始，其它异常发送通知、短暂冷却后按退避重连，进程本身不会因错误退出。
type Runner struct {
	cfg     RunnerConfig
	seed    SeedSource
	feed    stream.Feed
	decoder market.Decoder
	build   CombinatorFactory
	proc    *Processor
	notify  notifier.Notifier
	sleep   func(ctx context.Context, d time.Duration) bool

	mu        sync.Mutex
	consumer  *stream.Consumer
	restarts  int
	lastError string
}

func NewRunner(cfg RunnerConfig, seed SeedSource, feed stream.Feed, decoder market.Decoder,
	build CombinatorFactory, proc *Processor, notify notifier.Notifier) (*Runner, error) {
	if seed == nil || feed == nil || build == nil || proc == nil {
		return nil, fmt.Errorf("runner %s: seed, feed, factory and processor are required", cfg.Unit)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("runner %s: candle interval is required", cfg.Unit)
	}
	if cfg.SeedSize <= 0 {
		cfg.SeedSize = defaultSeedSize
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = defaultRateLimitCooldown
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = defaultErrorCooldown
	}
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Runner{
		cfg:     cfg,
		seed:    seed,
		feed:    feed,
		decoder: decoder,
		build:   build,
		proc:    proc,
		notify:  notify,
		sleep:   sleepCtx,
	}, nil
}

func (r *Runner) Name() string { return r.cfg.Unit }

// Run 阻塞直至 ctx 取消。
func (r *Runner) Run(ctx context.Context) error {
	logger.Infof("[runner] %s 启动 symbol=%s feed=%s", r.cfg.Unit, r.cfg.Symbol, r.feed.Name())
	for {
		consumer := stream.NewConsumer(r.feed, stream.Options{
			MinDelay:      r.cfg.MinDelay,
			MaxDelay:      r.cfg.MaxDelay,
			Decoder:       r.decoder,
			BeforeConnect: r.reseed,
			OnError:       r.onStreamError,
		})
		r.mu.Lock()
		r.consumer = consumer
		r.mu.Unlock()

		// Consumer 只在限流或 ctx 取消时返回，其它错误已在 onStreamError 中处理。
		err := consumer.Run(ctx, r.proc.HandleEvent)
		if ctx.Err() != nil {
			logger.Infof("[runner] %s 已停止", r.cfg.Unit)
			return nil
		}
		delay := r.cfg.RateLimitCooldown
		logger.Errorf("[runner] %s 被限流: %v，%s 后重启", r.cfg.Unit, err, delay)
		r.notify.Notify(notifier.Alert(r.cfg.Tags, "TooManyRequests", ""))
		r.recordRestart(err)
		if !r.sleep(ctx, delay) {
			return nil
		}
	}
}

// onStreamError 处理订阅内部的异常：读超时与对端关闭属于常规重连，只记录；
// 其它错误（处理失败、解析失败、拉取历史失败等）发送通知并额外冷却 ErrorCooldown。
func (r *Runner) onStreamError(ctx context.Context, err error, _ time.Duration) {
	r.recordRestart(err)
	if errors.Is(err, stream.ErrReadTimeout) || errors.Is(err, stream.ErrStreamClosed) {
		return
	}
	logger.Errorf("[runner] %s 异常: %v，冷却 %s", r.cfg.Unit, err, r.cfg.ErrorCooldown)
	r.notify.Notify(notifier.Alert(r.cfg.Tags, "unexpected error", fmt.Sprint(err)))
	r.sleep(ctx, r.cfg.ErrorCooldown)
}

// reseed 拉取历史，重建聚合器与策略后交给 Processor。
func (r *Runner) reseed(ctx context.Context) error {
	rows, err := r.seed.FetchSeed(ctx, r.cfg.Symbol, r.cfg.Interval, r.cfg.SeedSize)
	if err != nil {
		return fmt.Errorf("seed %s: %w", r.cfg.Symbol, err)
	}
	opts := []market.AggregatorOption{market.WithCapacity(r.cfg.Capacity)}
	if r.cfg.PricePlaces > 0 {
		opts = append(opts, market.WithPricePlaces(r.cfg.PricePlaces))
	}
	agg := market.NewAggregator(r.cfg.Interval, opts...)
	agg.Seed(rows)
	comb, err := r.build()
	if err != nil {
		return fmt.Errorf("build strategies: %w", err)
	}
	comb.Seed(rows)
	r.proc.Reset(agg, comb)
	logger.Infof("[runner] %s 历史数据已加载: %d 条", r.cfg.Unit, len(rows))
	return nil
}

func (r *Runner) recordRestart(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarts++
	if err != nil {
		r.lastError = err.Error()
	}
}

// Snapshot 合并 Processor 状态与订阅统计。
func (r *Runner) Snapshot() Snapshot {
	s := r.proc.Snapshot()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumer != nil {
		s.Stream = r.consumer.Stats()
	}
	s.Restarts = r.restarts
	s.LastError = r.lastError
	return s
}
