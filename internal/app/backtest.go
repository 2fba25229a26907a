package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"tickbot/internal/backtest"
	"tickbot/internal/config"
	"tickbot/internal/deal"
	"tickbot/internal/store/archive"
)

// RunBacktest 在归档的蜡烛上重放 backtest.unit（未设置时为第一个单元）的策略组合。
func RunBacktest(ctx context.Context, cfg *config.Config, w io.Writer) (backtest.Result, error) {
	u, err := backtestUnit(cfg)
	if err != nil {
		return backtest.Result{}, err
	}
	iv, err := u.IntervalDuration()
	if err != nil {
		return backtest.Result{}, err
	}
	from, to, err := cfg.Backtest.Range()
	if err != nil {
		return backtest.Result{}, err
	}
	opposite, err := deal.ParseOppositePolicy(u.Opposite)
	if err != nil {
		return backtest.Result{}, err
	}
	comb, err := CombinatorFactory(u)()
	if err != nil {
		return backtest.Result{}, err
	}
	store, err := archive.New(cfg.Storage.ArchiveDir)
	if err != nil {
		return backtest.Result{}, err
	}
	defer store.Close()

	res, err := backtest.Replay(ctx, store, backtest.Config{
		Symbol:   u.Symbol,
		Interval: iv,
		From:     from,
		To:       to,
		Opposite: opposite,
	}, comb)
	if err != nil {
		return res, err
	}
	fmt.Fprintf(w, "backtest %s (%s@%s)\n", u.Name, u.Symbol, u.Interval)
	fmt.Fprint(w, res.Stats.String())
	return res, nil
}

func backtestUnit(cfg *config.Config) (config.UnitConfig, error) {
	if len(cfg.Units) == 0 {
		return config.UnitConfig{}, fmt.Errorf("no units configured")
	}
	name := strings.TrimSpace(cfg.Backtest.Unit)
	if name == "" {
		return cfg.Units[0], nil
	}
	for _, u := range cfg.Units {
		if u.Name == name {
			return u, nil
		}
	}
	return config.UnitConfig{}, fmt.Errorf("backtest unit %q not found", name)
}
