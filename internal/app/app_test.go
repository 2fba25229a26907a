package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/config"
	"tickbot/internal/gateway/exchange"
	"tickbot/internal/market"
	"tickbot/internal/store/archive"
	"tickbot/internal/stream"
)

const paperYAML = `
storage:
  journal_path: %[1]s/journal.db
  archive_dir: %[1]s/candles
units:
  - name: btc-paper
    symbol: BTCUSDT
    source: binance
    broker: paper
    interval: 1m
    archive: true
    money:
      order_amount: 0.01
      risk_unit: 50
    strategies:
      - kind: pinbar
      - kind: rsi_band
        name: rsi-fast
  - name: eth-paper
    symbol: ETHUSDT
    source: binance
    broker: paper
    interval: 5m
    opposite_signal: reverse
    money:
      order_amount: 0.1
      risk_unit: 5
    strategies:
      - kind: sma_trend
`

func loadPaperConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(paperYAML, dir)), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

type nopSeed struct{}

func (nopSeed) FetchSeed(context.Context, string, time.Duration, int) ([]market.SeedRow, error) {
	return nil, nil
}

type refusedFeed struct{ name string }

func (f refusedFeed) Name() string { return f.name }

func (refusedFeed) Connect(context.Context) (stream.Conn, error) {
	return nil, errors.New("offline")
}

func fakeMarket(u config.UnitConfig) (MarketBinding, error) {
	return MarketBinding{Seed: nopSeed{}, Feed: refusedFeed{name: u.Symbol}, Decoder: market.ParseBookTicker}, nil
}

func TestBuildPaperUnits(t *testing.T) {
	cfg := loadPaperConfig(t)
	a, err := NewAppBuilder(cfg,
		WithMarket(fakeMarket),
		WithExchange(func(config.UnitConfig) (exchange.Exchange, error) { return exchange.NewPaper(), nil }),
		WithoutHTTP(),
	).Build(context.Background())
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Units(), 2)
	assert.Equal(t, "btc-paper", a.Units()[0].Name())
	assert.NotNil(t, a.journal)
	assert.NotNil(t, a.archive)
	assert.Nil(t, a.http)

	snaps := a.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "ETHUSDT", snaps[1].Symbol)
	assert.Equal(t, "paper", snaps[1].Broker)
}

func TestBuildFailsOnExchangeError(t *testing.T) {
	cfg := loadPaperConfig(t)
	_, err := NewAppBuilder(cfg,
		WithMarket(fakeMarket),
		WithExchange(func(config.UnitConfig) (exchange.Exchange, error) { return nil, errors.New("no broker") }),
		WithoutHTTP(),
	).Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit btc-paper")
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := loadPaperConfig(t)
	a, err := NewAppBuilder(cfg, WithMarket(fakeMarket), WithoutHTTP()).Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)
	assert.NoError(t, a.Run(ctx))
}

func TestCombinatorFactoryBuildsFreshMembers(t *testing.T) {
	cfg := loadPaperConfig(t)
	factory := CombinatorFactory(cfg.Units[0])
	first, err := factory()
	require.NoError(t, err)
	second, err := factory()
	require.NoError(t, err)
	require.Len(t, first.Members(), 2)
	assert.Equal(t, "rsi-fast", first.Members()[1].Strategy.Name())
	assert.NotSame(t, first.Members()[0].Money, second.Members()[0].Money)
}

func TestRunBacktestOverArchive(t *testing.T) {
	cfg := loadPaperConfig(t)
	cfg.Backtest.Unit = "btc-paper"

	store, err := archive.New(cfg.Storage.ArchiveDir)
	require.NoError(t, err)
	var candles []market.Candle
	for i := 0; i < 30; i++ {
		p := decimal.NewFromInt(int64(100 + i%5))
		candles = append(candles, market.NewCandle(int64(60*i), p, p.Add(decimal.NewFromInt(1)), p.Sub(decimal.NewFromInt(1)), p))
	}
	_, err = store.InsertCandles(context.Background(), "BTCUSDT", time.Minute, candles)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	res, err := RunBacktest(context.Background(), cfg, &out)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Stats.Candles)
	assert.Contains(t, out.String(), "backtest btc-paper")
	assert.Contains(t, out.String(), "profit_factor")
}

func TestRunBacktestUnknownUnit(t *testing.T) {
	cfg := loadPaperConfig(t)
	cfg.Backtest.Unit = "missing"
	_, err := RunBacktest(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPrintSummaryListsUnits(t *testing.T) {
	cfg := loadPaperConfig(t)
	var out bytes.Buffer
	require.NoError(t, PrintSummary(&out, cfg))
	assert.Contains(t, out.String(), "btc-paper")
	assert.Contains(t, out.String(), "pinbar, rsi-fast")
}
