// Package app 按配置构建交易单元、存储与状态服务，并统一启动与关闭。
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tickbot/internal/config"
	"tickbot/internal/gateway/notifier"
	"tickbot/internal/logger"
	"tickbot/internal/store/archive"
	"tickbot/internal/store/journal"
	"tickbot/internal/trader"
	statushttp "tickbot/internal/transport/http/status"
)

// App 持有全部交易单元及其共享依赖。单元之间互不共享可变状态。
type App struct {
	cfg     *config.Config
	units   []*trader.Runner
	notify  *notifier.Async
	journal *journal.Store
	archive *archive.Store
	http    *statushttp.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg).Build(ctx)
}

// Run 启动通知、状态服务与全部交易单元，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if len(a.units) == 0 {
		return fmt.Errorf("no trading units configured")
	}
	defer a.Close()
	// 通知协程独立于单元的生命周期，单元全部停止后再把队列发完。
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	go func() { _ = a.notify.Run(notifyCtx) }()
	defer func() {
		stopNotify()
		<-a.notify.Done()
	}()

	group, gctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(gctx); err != nil {
				return fmt.Errorf("status http server error: %w", err)
			}
			return nil
		})
	}
	for _, r := range a.units {
		r := r
		group.Go(func() error { return r.Run(gctx) })
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Snapshots 返回所有单元的状态。
func (a *App) Snapshots() []trader.Snapshot {
	out := make([]trader.Snapshot, 0, len(a.units))
	for _, r := range a.units {
		out = append(out, r.Snapshot())
	}
	return out
}

func (a *App) Units() []*trader.Runner { return a.units }

func (a *App) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("[app] 关闭持仓日志失败: %v", err)
		}
		a.journal = nil
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			logger.Warnf("[app] 关闭蜡烛归档失败: %v", err)
		}
		a.archive = nil
	}
}
