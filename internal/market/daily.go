package market

import (
	"time"
)

// DailyBuckets 将蜡烛按自然日（指定时区）合并为日线。
type DailyBuckets struct {
	loc      *time.Location
	capacity int
	days     []int64
	bars     map[int64]Candle
}

func NewDailyBuckets(loc *time.Location, capacity int) *DailyBuckets {
	if loc == nil {
		loc = time.UTC
	}
	if capacity <= 0 {
		capacity = defaultCandleCapacity
	}
	return &DailyBuckets{loc: loc, capacity: capacity, bars: make(map[int64]Candle)}
}

// AddRow 合并一行毫秒时间戳的历史数据。
func (d *DailyBuckets) AddRow(row SeedRow) {
	d.merge(row.Candle())
}

// AddCandle 合并一根秒级时间戳的蜡烛。
func (d *DailyBuckets) AddCandle(c Candle) {
	d.merge(c)
}

func (d *DailyBuckets) merge(c Candle) {
	day := d.dayStart(c.Timestamp)
	bar, ok := d.bars[day]
	if !ok {
		d.days = append(d.days, day)
		bar = NewCandle(day, c.Open, c.High, c.Low, c.Close)
	} else {
		if c.High.GreaterThan(bar.High) {
			bar.High = c.High
		}
		if c.Low.LessThan(bar.Low) {
			bar.Low = c.Low
		}
		bar.Close = c.Close
	}
	d.bars[day] = bar
	for len(d.days) > d.capacity {
		delete(d.bars, d.days[0])
		d.days = d.days[1:]
	}
}

func (d *DailyBuckets) dayStart(sec int64) int64 {
	t := time.Unix(sec, 0).In(d.loc)
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, d.loc).Unix()
}

func (d *DailyBuckets) Len() int { return len(d.days) }

func (d *DailyBuckets) Candles() []Candle {
	out := make([]Candle, 0, len(d.days))
	for _, day := range d.days {
		out = append(out, d.bars[day])
	}
	return out
}

// TypicalPrices 返回每日 (high+low+close)/3 序列。
func (d *DailyBuckets) TypicalPrices() []float64 {
	out := make([]float64, 0, len(d.days))
	for _, day := range d.days {
		out = append(out, d.bars[day].TypicalPrice().InexactFloat64())
	}
	return out
}
