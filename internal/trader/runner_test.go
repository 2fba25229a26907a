package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tickbot/internal/market"
	"tickbot/internal/money"
	"tickbot/internal/strategy"
	"tickbot/internal/stream"
)

type fakeSeed struct {
	rows  []market.SeedRow
	calls int
	err   error
}

func (f *fakeSeed) FetchSeed(context.Context, string, time.Duration, int) ([]market.SeedRow, error) {
	f.calls++
	return f.rows, f.err
}

type onceFeed struct {
	records [][]byte
	tail    error
}

func (f *onceFeed) Name() string { return "once" }

func (f *onceFeed) Connect(context.Context) (stream.Conn, error) {
	return &recordConn{records: f.records, tail: f.tail}, nil
}

type recordConn struct {
	records [][]byte
	tail    error
}

func (c *recordConn) Next() ([]byte, error) {
	if len(c.records) == 0 {
		return nil, c.tail
	}
	r := c.records[0]
	c.records = c.records[1:]
	return r, nil
}

func (c *recordConn) Close() error { return nil }

func TestRunnerSeedsProcessesAndCoolsDownOnRateLimit(t *testing.T) {
	seed := &fakeSeed{rows: []market.SeedRow{
		{Timestamp: 120_000, Open: d("3"), High: d("3"), Low: d("3"), Close: d("3")},
		{Timestamp: 60_000, Open: d("2"), High: d("2"), Low: d("2"), Close: d("2")},
		{Timestamp: 0, Open: d("1"), High: d("1"), Low: d("1"), Close: d("1")},
	}}
	feed := &onceFeed{
		records: [][]byte{
			[]byte(`{"timestamp":150000,"bid":[{"price":"3.1"}],"ask":[{"price":"3.1"}]}`),
			[]byte(`{"timestamp":180000,"bid":[{"price":"3.2"}],"ask":[{"price":"3.2"}]}`),
		},
		tail: stream.ErrRateLimited,
	}
	mm, err := money.New(money.Config{OrderAmount: d("1"), RiskUnit: d("1"), StopLossFactor: d("1"), TakeProfitFactor: d("1")})
	require.NoError(t, err)
	var built []*scriptedStrategy
	factory := func() (*strategy.Combinator, error) {
		s := newScripted("s")
		built = append(built, s)
		return strategy.NewCombinator(strategy.Member{Strategy: s, Money: mm}), nil
	}
	ex := &MockExchange{}
	notes := &captureNotifier{}
	proc, err := NewProcessor(ProcessorConfig{Unit: "u", Symbol: "X"}, Deps{Exchange: ex})
	require.NoError(t, err)
	r, err := NewRunner(RunnerConfig{Unit: "u", Symbol: "X", Interval: time.Minute}, seed, feed, nil, factory, proc, notes)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		cancel()
		return false
	}
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, 1, seed.calls)
	assert.Equal(t, []time.Duration{60 * time.Second}, delays)
	assert.Equal(t, []string{"TooManyRequests"}, notes.titles())
	require.Len(t, built, 1)
	// 两行已完成的历史 + 一根实时完成的蜡烛（120s 桶）。
	assert.Equal(t, 3, built[0].History().Len())
	last, ok := built[0].History().Last()
	require.True(t, ok)
	assert.True(t, d("3.1").Equal(last.Close))

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Restarts)
	assert.Contains(t, snap.LastError, "rate limited")
	assert.Equal(t, int64(2), snap.Stream.Events)
	assert.True(t, d("3.2").Equal(snap.LastPrice))
}

func TestRunnerSeedFailureBacksOffInsideConsumer(t *testing.T) {
	seed := &fakeSeed{err: stream.ErrRateLimited}
	proc, err := NewProcessor(ProcessorConfig{Unit: "u"}, Deps{Exchange: &MockExchange{}})
	require.NoError(t, err)
	r, err := NewRunner(RunnerConfig{Unit: "u", Interval: time.Minute, RateLimitCooldown: time.Hour},
		seed, &onceFeed{}, nil, func() (*strategy.Combinator, error) { return strategy.NewCombinator(), nil }, proc, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		cancel()
		return false
	}
	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []time.Duration{time.Hour}, delays)
	assert.Equal(t, 1, seed.calls)
	assert.Contains(t, r.Snapshot().LastError, "seed")
}

func TestRunnerNotifiesProcessingError(t *testing.T) {
	seed := &fakeSeed{rows: []market.SeedRow{
		{Timestamp: 60_000, Open: d("2"), High: d("2"), Low: d("2"), Close: d("2")},
		{Timestamp: 0, Open: d("1"), High: d("1"), Low: d("1"), Close: d("1")},
	}}
	feed := &onceFeed{records: [][]byte{
		[]byte(`{"timestamp":130000,"bid":[{"price":"3"}],"ask":[{"price":"3"}]}`),
		[]byte(`{"timestamp":180000,"bid":[{"price":"3.2"}],"ask":[{"price":"3.2"}]}`),
	}}
	mm, err := money.New(money.Config{OrderAmount: d("1"), RiskUnit: d("1"), StopLossFactor: d("1"), TakeProfitFactor: d("1")})
	require.NoError(t, err)
	factory := func() (*strategy.Combinator, error) {
		return strategy.NewCombinator(strategy.Member{Strategy: newScripted("s", strategy.SignalBuy), Money: mm}), nil
	}
	ex := &MockExchange{}
	ex.On("GetPosition", mock.Anything, "X").Return(nil, errors.New("gateway down"))
	notes := &captureNotifier{}
	proc, err := NewProcessor(ProcessorConfig{Unit: "u", Symbol: "X"}, Deps{Exchange: ex})
	require.NoError(t, err)
	r, err := NewRunner(RunnerConfig{Unit: "u", Symbol: "X", Interval: time.Minute, ErrorCooldown: 7 * time.Second,
		Tags: []string{"#u"}}, seed, feed, nil, factory, proc, notes)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		cancel()
		return false
	}
	require.NoError(t, r.Run(ctx))

	assert.Equal(t, []string{"unexpected error"}, notes.titles())
	require.Len(t, notes.msgs, 1)
	require.NotEmpty(t, notes.msgs[0].Sections)
	assert.Contains(t, notes.msgs[0].Sections[0].Lines[0], "gateway down")
	assert.Equal(t, []time.Duration{7 * time.Second}, delays)
	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Restarts)
	assert.Contains(t, snap.LastError, "process event")
	ex.AssertExpectations(t)
}

func TestRunnerReadTimeoutIsNotNotified(t *testing.T) {
	seed := &fakeSeed{}
	proc, err := NewProcessor(ProcessorConfig{Unit: "u"}, Deps{Exchange: &MockExchange{}})
	require.NoError(t, err)
	notes := &captureNotifier{}
	r, err := NewRunner(RunnerConfig{Unit: "u", Interval: time.Minute}, seed, &onceFeed{tail: stream.ErrReadTimeout},
		nil, func() (*strategy.Combinator, error) { return strategy.NewCombinator(), nil }, proc, notes)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.onStreamError(ctx, stream.ErrReadTimeout, time.Second)
	assert.Empty(t, notes.titles())
	assert.Equal(t, 1, r.Snapshot().Restarts)
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(RunnerConfig{Unit: "u"}, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}
