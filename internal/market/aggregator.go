package market

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultCandleCapacity = 5000
	defaultPricePlaces    = 6
)

// Aggregator 将逐笔报价按固定周期聚合为 OHLC 蜡烛。
// 非并发安全，每个订阅单元独占一个实例。
type Aggregator struct {
	interval int64
	places   int32
	capacity int

	keys    []int64
	candles map[int64]Candle

	acc     bucket
	lastKey int64
	hasKey  bool
}

type AggregatorOption func(*Aggregator)

func WithCapacity(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 1 {
			a.capacity = n
		}
	}
}

func WithPricePlaces(places int32) AggregatorOption {
	return func(a *Aggregator) {
		if places >= 0 {
			a.places = places
		}
	}
}

func NewAggregator(interval time.Duration, opts ...AggregatorOption) *Aggregator {
	sec := int64(interval / time.Second)
	if sec <= 0 {
		sec = 1
	}
	a := &Aggregator{
		interval: sec,
		places:   defaultPricePlaces,
		capacity: defaultCandleCapacity,
		candles:  make(map[int64]Candle),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BucketKey 把毫秒时间戳映射到桶起始秒。
func BucketKey(tsMillis, intervalSec int64) int64 {
	return tsMillis / (1000 * intervalSec) * intervalSec
}

func (a *Aggregator) Interval() time.Duration {
	return time.Duration(a.interval) * time.Second
}

// Seed 用最新在前的历史行初始化；最新一行所在桶视为正在成型。
func (a *Aggregator) Seed(rows []SeedRow) {
	for _, row := range Chronological(rows) {
		c := row.Candle()
		key := BucketKey(row.Timestamp, a.interval)
		c.Timestamp = key
		a.put(key, c)
		a.lastKey = key
		a.hasKey = true
	}
	if a.hasKey {
		a.acc = bucketFrom(a.candles[a.lastKey])
	}
}

// AddTick 累加一笔报价；仅当上一个桶存在且本笔进入新桶时返回 true。
func (a *Aggregator) AddTick(tsMillis int64, bid, ask decimal.Decimal) bool {
	key := BucketKey(tsMillis, a.interval)
	started := false
	if !a.hasKey || key != a.lastKey {
		started = a.hasKey
		if existing, ok := a.candles[key]; ok {
			a.acc = bucketFrom(existing)
		} else {
			a.acc = bucket{}
		}
		a.lastKey = key
		a.hasKey = true
	}
	a.acc.add(MidPrice(bid, ask, a.places))
	a.put(key, a.acc.candle(key))
	return started
}

// LastCompletedCandle 返回倒数第二根蜡烛（最后一根正在成型）。
func (a *Aggregator) LastCompletedCandle() (Candle, bool) {
	if len(a.keys) < 2 {
		return Candle{}, false
	}
	return a.candles[a.keys[len(a.keys)-2]], true
}

// Forming 返回当前正在成型的蜡烛。
func (a *Aggregator) Forming() (Candle, bool) {
	if len(a.keys) == 0 {
		return Candle{}, false
	}
	return a.candles[a.keys[len(a.keys)-1]], true
}

func (a *Aggregator) Len() int { return len(a.keys) }

// Candles 按时间正序返回全部蜡烛，包含正在成型的一根。
func (a *Aggregator) Candles() []Candle {
	out := make([]Candle, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, a.candles[k])
	}
	return out
}

// CompletedCandles 不含正在成型的一根。
func (a *Aggregator) CompletedCandles() []Candle {
	all := a.Candles()
	if len(all) == 0 {
		return all
	}
	return all[:len(all)-1]
}

func (a *Aggregator) put(key int64, c Candle) {
	if _, ok := a.candles[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.candles[key] = c
	for len(a.keys) > a.capacity {
		delete(a.candles, a.keys[0])
		a.keys = a.keys[1:]
	}
}

type bucket struct {
	open, high, low, close decimal.Decimal
	ticks                  int
}

func bucketFrom(c Candle) bucket {
	return bucket{open: c.Open, high: c.High, low: c.Low, close: c.Close, ticks: 1}
}

func (b *bucket) add(price decimal.Decimal) {
	if b.ticks == 0 {
		b.open, b.high, b.low = price, price, price
	}
	if price.GreaterThan(b.high) {
		b.high = price
	}
	if price.LessThan(b.low) {
		b.low = price
	}
	b.close = price
	b.ticks++
}

func (b bucket) candle(key int64) Candle {
	return NewCandle(key, b.open, b.high, b.low, b.close)
}
