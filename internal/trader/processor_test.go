package trader

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tickbot/internal/deal"
	"tickbot/internal/gateway/exchange"
	"tickbot/internal/market"
	"tickbot/internal/money"
	"tickbot/internal/strategy"
)

const sym = "URA.ARCA"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tick(sec int64, price string) market.StreamEvent {
	return market.StreamEvent{Kind: market.EventNewPrice, Timestamp: sec * 1000, Bid: d(price), Ask: d(price)}
}

type harness struct {
	proc    *Processor
	ex      *MockExchange
	journal *memJournal
	archive *memArchive
	notes   *captureNotifier
	strat   *scriptedStrategy
	sleeps  []time.Duration
	clock   time.Time
}

func newHarness(t *testing.T, cfg ProcessorConfig, mcfg money.Config) *harness {
	t.Helper()
	if mcfg.OrderAmount.IsZero() {
		mcfg = money.Config{OrderAmount: d("2"), RiskUnit: d("1"), StopLossFactor: d("1"), TakeProfitFactor: d("2")}
	}
	mm, err := money.New(mcfg)
	require.NoError(t, err)
	h := &harness{
		ex:      &MockExchange{},
		journal: &memJournal{},
		archive: &memArchive{},
		notes:   &captureNotifier{},
		strat:   newScripted("scripted"),
		clock:   time.Unix(1_700_000_000, 0),
	}
	cfg.Unit = "unit"
	cfg.Symbol = sym
	h.proc, err = NewProcessor(cfg, Deps{Exchange: h.ex, Journal: h.journal, Archive: h.archive, Notifier: h.notes})
	require.NoError(t, err)
	h.proc.sleep = func(_ context.Context, d time.Duration) bool {
		h.sleeps = append(h.sleeps, d)
		return true
	}
	h.proc.now = func() time.Time { return h.clock }
	h.proc.Reset(market.NewAggregator(time.Minute), strategy.NewCombinator(strategy.Member{Strategy: h.strat, Money: mm}))
	return h
}

func (h *harness) feed(t *testing.T, events ...market.StreamEvent) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, h.proc.HandleEvent(context.Background(), ev))
	}
}

func (h *harness) openBuyAt102(t *testing.T) {
	t.Helper()
	h.strat.push(strategy.SignalBuy)
	h.ex.On("GetPosition", mock.Anything, sym).Return(nil, nil).Once()
	h.ex.On("OpenPosition", mock.Anything, mock.MatchedBy(func(r exchange.OpenRequest) bool {
		return r.Side == deal.SideBuy
	})).Return(&exchange.OpenResult{OrderID: "m1"}, nil).Once()
	h.feed(t, tick(0, "100"), tick(30, "101"), tick(60, "102"))
	require.NotNil(t, h.proc.OpenDeal())
}

func TestProcessorOpensDealOnRollover(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	h.openBuyAt102(t)

	h.ex.AssertCalled(t, "OpenPosition", mock.Anything, mock.MatchedBy(func(r exchange.OpenRequest) bool {
		return r.Symbol == sym && r.Quantity.Equal(d("2")) &&
			r.StopLoss.Equal(d("101")) && r.TakeProfit.Equal(d("104")) && r.Tag == "scripted"
	}))
	require.Len(t, h.archive.candles, 1)
	c := h.archive.candles[0]
	assert.True(t, d("100").Equal(c.Open))
	assert.True(t, d("101").Equal(c.Close))
	assert.Equal(t, []string{"open"}, h.journal.actions())
	assert.Equal(t, 1, h.strat.History().Len())

	snap := h.proc.Snapshot()
	require.NotNil(t, snap.OpenDeal)
	assert.Equal(t, "mock", snap.Broker)
	assert.Equal(t, "1m", snap.Interval)
	assert.Equal(t, []string{"scripted"}, snap.Strategies)
}

func TestProcessorChecksStopBeforeNewSignals(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	h.openBuyAt102(t)

	h.strat.push(strategy.SignalSell)
	h.ex.On("GetPosition", mock.Anything, sym).Return(nil, nil).Once()
	h.ex.On("OpenPosition", mock.Anything, mock.MatchedBy(func(r exchange.OpenRequest) bool {
		return r.Side == deal.SideSell
	})).Return(&exchange.OpenResult{}, nil).Once()

	h.feed(t, tick(90, "100.5"), tick(120, "100.4"))

	assert.Equal(t, []string{"open", "close", "open"}, h.journal.actions())
	closed := h.journal.entries[1].Deal
	assert.Equal(t, deal.ReasonStopLoss, closed.CloseReason)
	assert.True(t, d("-2").Equal(closed.Profit))
	assert.Equal(t, deal.SideSell, h.proc.OpenDeal().Side)
	snap := h.proc.Snapshot()
	assert.Equal(t, 1, snap.ClosedDeals)
	assert.True(t, d("-2").Equal(snap.RealizedProfit))
}

func TestProcessorIgnoresOppositeSignalByDefault(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	h.openBuyAt102(t)
	open := h.proc.OpenDeal()

	h.strat.push(strategy.SignalSell)
	h.feed(t, tick(90, "102.5"), tick(120, "102.5"))

	assert.Same(t, open, h.proc.OpenDeal())
	h.ex.AssertNumberOfCalls(t, "OpenPosition", 1)
	h.ex.AssertNotCalled(t, "ClosePosition", mock.Anything, mock.Anything)
}

func TestProcessorReversesWithGraceDelay(t *testing.T) {
	h := newHarness(t, ProcessorConfig{Opposite: deal.OppositeReverse}, money.Config{})
	h.openBuyAt102(t)

	h.strat.push(strategy.SignalSell)
	h.ex.On("ClosePosition", mock.Anything, sym).Return(exchange.ErrPositionNotFound).Once()
	h.ex.On("OpenPosition", mock.Anything, mock.MatchedBy(func(r exchange.OpenRequest) bool {
		return r.Side == deal.SideSell
	})).Return(&exchange.OpenResult{}, nil).Once()

	h.feed(t, tick(90, "102.5"), tick(120, "103"))

	assert.Equal(t, []time.Duration{500 * time.Millisecond}, h.sleeps)
	assert.Equal(t, []string{"open", "close", "open"}, h.journal.actions())
	reversed := h.journal.entries[1].Deal
	assert.Equal(t, deal.ReasonReverse, reversed.CloseReason)
	assert.True(t, d("103").Equal(reversed.ExitPrice))
	assert.Equal(t, deal.SideSell, h.proc.OpenDeal().Side)
	h.ex.AssertExpectations(t)
}

func TestProcessorCloseSignal(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	h.openBuyAt102(t)

	h.strat.push(strategy.SignalClose)
	h.ex.On("GetPosition", mock.Anything, sym).Return(&exchange.Position{Symbol: sym, Quantity: d("2")}, nil).Once()
	h.ex.On("ClosePosition", mock.Anything, sym).Return(nil).Once()

	h.feed(t, tick(90, "102.5"), tick(120, "102.7"))

	assert.Nil(t, h.proc.OpenDeal())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, h.sleeps)
	closed := h.journal.entries[1].Deal
	assert.Equal(t, deal.ReasonSignal, closed.CloseReason)
	assert.True(t, d("1.4").Equal(closed.Profit))
	h.ex.AssertExpectations(t)
}

func TestProcessorCloseSignalOutsideSession(t *testing.T) {
	session, err := strategy.NewSession(strategy.SessionConfig{Enabled: true, Start: "16:30", End: "23:00"})
	require.NoError(t, err)
	h := newHarness(t, ProcessorConfig{Session: session}, money.Config{})
	h.strat.push("", strategy.SignalClose)

	// 1970-01-01 00:00 UTC 不在交易时段内。
	h.feed(t, tick(0, "100"), tick(60, "101"), tick(120, "102"))
	h.ex.AssertNotCalled(t, "GetPosition", mock.Anything, mock.Anything)
}

func TestProcessorSkipsOpenWhenBrokerHasPosition(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	h.strat.push(strategy.SignalBuy)
	h.ex.On("GetPosition", mock.Anything, sym).Return(&exchange.Position{Symbol: sym, Quantity: d("-1")}, nil).Once()

	h.feed(t, tick(0, "100"), tick(60, "101"))
	assert.Nil(t, h.proc.OpenDeal())
	h.ex.AssertNotCalled(t, "OpenPosition", mock.Anything, mock.Anything)
}

func TestProcessorTrailingStopPushedToBroker(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{
		OrderAmount: d("2"), RiskUnit: d("1"), StopLossFactor: d("1"), TakeProfitFactor: d("5"), Trailing: true,
	})
	h.openBuyAt102(t)
	h.ex.On("MoveStopLoss", mock.Anything, sym, mock.MatchedBy(func(v decimal.Decimal) bool {
		return v.Equal(d("102"))
	})).Return(nil).Once()

	h.feed(t, tick(70, "102.5"), tick(80, "103"), tick(85, "103.5"))

	assert.True(t, d("102").Equal(h.proc.OpenDeal().StopLoss))
	assert.Equal(t, []string{"open", "stop"}, h.journal.actions())
	h.ex.AssertExpectations(t)
}

func TestProcessorBrokerBreakevenIsThrottled(t *testing.T) {
	h := newHarness(t, ProcessorConfig{BreakevenProfit: d("100"), BreakevenOffset: d("0.0002")}, money.Config{})
	pos := &exchange.Position{Symbol: sym, Quantity: d("5"), AvgPrice: d("10"), PnL: d("120")}
	h.ex.On("GetPosition", mock.Anything, sym).Return(pos, nil).Once()
	h.ex.On("MoveStopLoss", mock.Anything, sym, mock.MatchedBy(func(v decimal.Decimal) bool {
		return v.Equal(d("10.002"))
	})).Return(nil).Once()

	h.feed(t, tick(0, "10"))
	h.clock = h.clock.Add(5 * time.Second)
	h.feed(t, tick(5, "10"))
	h.ex.AssertNumberOfCalls(t, "GetPosition", 1)

	h.clock = h.clock.Add(6 * time.Second)
	h.ex.On("GetPosition", mock.Anything, sym).Return(nil, nil).Once()
	h.feed(t, tick(11, "10"))
	h.ex.AssertNumberOfCalls(t, "GetPosition", 2)
	h.ex.AssertNumberOfCalls(t, "MoveStopLoss", 1)
}

func TestProcessorIgnoresUndefinedAndRequiresSeed(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	require.NoError(t, h.proc.HandleEvent(context.Background(), market.StreamEvent{Kind: market.EventUndefined}))

	p, err := NewProcessor(ProcessorConfig{Unit: "x"}, Deps{Exchange: &MockExchange{}})
	require.NoError(t, err)
	assert.Error(t, p.HandleEvent(context.Background(), tick(0, "1")))

	_, err = NewProcessor(ProcessorConfig{}, Deps{})
	assert.Error(t, err)
}

func TestProcessorOpenFailureIsReturned(t *testing.T) {
	h := newHarness(t, ProcessorConfig{}, money.Config{})
	h.strat.push(strategy.SignalBuy)
	h.ex.On("GetPosition", mock.Anything, sym).Return(nil, nil).Once()
	h.ex.On("OpenPosition", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	require.NoError(t, h.proc.HandleEvent(context.Background(), tick(0, "100")))
	err := h.proc.HandleEvent(context.Background(), tick(60, "101"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, h.proc.OpenDeal())
}

func TestProcessorPaperBrokerReopensAfterStopLoss(t *testing.T) {
	paper := exchange.NewPaper()
	mm, err := money.New(money.Config{OrderAmount: d("2"), RiskUnit: d("1"), StopLossFactor: d("1"), TakeProfitFactor: d("2")})
	require.NoError(t, err)
	journal := &memJournal{}
	proc, err := NewProcessor(ProcessorConfig{Unit: "paper", Symbol: sym}, Deps{Exchange: paper, Journal: journal})
	require.NoError(t, err)
	proc.sleep = func(context.Context, time.Duration) bool { return true }
	strat := newScripted("scripted", strategy.SignalBuy)
	proc.Reset(market.NewAggregator(time.Minute), strategy.NewCombinator(strategy.Member{Strategy: strat, Money: mm}))

	ctx := context.Background()
	for _, ev := range []market.StreamEvent{tick(0, "100"), tick(30, "101"), tick(60, "102")} {
		require.NoError(t, proc.HandleEvent(ctx, ev))
	}
	first := proc.OpenDeal()
	require.NotNil(t, first)
	assert.True(t, d("101").Equal(first.StopLoss))

	strat.push(strategy.SignalBuy)
	for _, ev := range []market.StreamEvent{tick(90, "100.5"), tick(120, "100.4")} {
		require.NoError(t, proc.HandleEvent(ctx, ev))
	}

	assert.Equal(t, []string{"open", "close", "open"}, journal.actions())
	assert.Equal(t, deal.ReasonStopLoss, journal.entries[1].Deal.CloseReason)
	second := proc.OpenDeal()
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, d("100.4").Equal(second.EntryPrice))

	pos, err := paper.GetPosition(ctx, sym)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.True(t, d("100.4").Equal(pos.AvgPrice))
	assert.Equal(t, 3, paper.Orders())
}
