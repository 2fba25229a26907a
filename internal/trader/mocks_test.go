package trader

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"tickbot/internal/deal"
	"tickbot/internal/gateway/exchange"
	"tickbot/internal/gateway/notifier"
	"tickbot/internal/market"
	"tickbot/internal/strategy"
)

type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) Name() string { return "mock" }

func (m *MockExchange) OpenPosition(ctx context.Context, req exchange.OpenRequest) (*exchange.OpenResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*exchange.OpenResult)
	return res, args.Error(1)
}

func (m *MockExchange) ClosePosition(ctx context.Context, symbol string) error {
	return m.Called(ctx, symbol).Error(0)
}

func (m *MockExchange) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	args := m.Called(ctx, symbol)
	pos, _ := args.Get(0).(*exchange.Position)
	return pos, args.Error(1)
}

func (m *MockExchange) CancelActiveOrders(ctx context.Context, symbol string) error {
	return m.Called(ctx, symbol).Error(0)
}

func (m *MockExchange) MoveStopLoss(ctx context.Context, symbol string, stop decimal.Decimal) error {
	return m.Called(ctx, symbol, stop).Error(0)
}

// scriptedStrategy 依次返回预设信号，队列耗尽后不再给出信号。
type scriptedStrategy struct {
	name    string
	signals []strategy.Signal
	history *market.History
}

func newScripted(name string, signals ...strategy.Signal) *scriptedStrategy {
	return &scriptedStrategy{name: name, signals: signals, history: market.NewHistory(100)}
}

func (s *scriptedStrategy) Name() string { return s.name }
func (s *scriptedStrategy) Kind() string { return "scripted" }
func (s *scriptedStrategy) AddCandle(c market.Candle) { s.history.Add(c) }
func (s *scriptedStrategy) History() *market.History { return s.history }
func (s *scriptedStrategy) push(sig ...strategy.Signal) { s.signals = append(s.signals, sig...) }

func (s *scriptedStrategy) CheckPrice(decimal.Decimal) (strategy.Signal, bool) {
	if len(s.signals) == 0 {
		return "", false
	}
	sig := s.signals[0]
	s.signals = s.signals[1:]
	if sig == "" {
		return "", false
	}
	return sig, true
}

type journalEntry struct {
	Action string
	Deal   deal.Deal
	Level  decimal.Decimal
}

type memJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func (j *memJournal) add(action string, d *deal.Deal, level decimal.Decimal) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{Action: action, Deal: *d, Level: level})
	return nil
}

func (j *memJournal) RecordOpen(_ context.Context, _ string, d *deal.Deal) error {
	return j.add("open", d, decimal.Zero)
}

func (j *memJournal) RecordStopMove(_ context.Context, _ string, d *deal.Deal, level decimal.Decimal) error {
	return j.add("stop", d, level)
}

func (j *memJournal) RecordClose(_ context.Context, _ string, d *deal.Deal) error {
	return j.add("close", d, decimal.Zero)
}

func (j *memJournal) actions() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e.Action)
	}
	return out
}

type memArchive struct {
	candles []market.Candle
}

func (a *memArchive) ArchiveCandle(_ context.Context, _ string, _ time.Duration, c market.Candle) error {
	a.candles = append(a.candles, c)
	return nil
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notifier.StructuredMessage
}

func (c *captureNotifier) Notify(msg notifier.StructuredMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *captureNotifier) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Title)
	}
	return out
}
