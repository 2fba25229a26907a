package market

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var ErrMalformedRecord = errors.New("malformed record")

type EventKind int

const (
	EventUndefined EventKind = iota
	EventNewPrice
)

func (k EventKind) String() string {
	if k == EventNewPrice {
		return "new_price"
	}
	return "undefined"
}

// StreamEvent 是行情流中解析出的一条记录；Timestamp 为毫秒。
// 只有 EventNewPrice 携带有效的 Bid/Ask。
type StreamEvent struct {
	Kind      EventKind
	Type      string
	Timestamp int64
	Bid       decimal.Decimal
	Ask       decimal.Decimal
}

// Decoder 将一条原始记录解码为事件。
type Decoder func(record []byte) (StreamEvent, error)

// MidPrice = bid + (ask - bid) / 2，按 places 位小数四舍五入。
func MidPrice(bid, ask decimal.Decimal, places int32) decimal.Decimal {
	return bid.Add(ask.Sub(bid).Div(decimal.NewFromInt(2))).Round(places)
}

// ParseQuoteRecord 解析报价流：{"timestamp":..,"bid":[{"price":..}],"ask":[{"price":..}]}
// 或 {"event":"heartbeat"}。
func ParseQuoteRecord(record []byte) (StreamEvent, error) {
	if !gjson.ValidBytes(record) {
		return StreamEvent{}, fmt.Errorf("%w: %q", ErrMalformedRecord, truncate(record))
	}
	res := gjson.ParseBytes(record)
	ev := StreamEvent{Type: res.Get("event").String()}
	bid := res.Get("bid.0.price")
	ask := res.Get("ask.0.price")
	if !bid.Exists() || !ask.Exists() {
		return ev, nil
	}
	return priceEvent(ev, res.Get("timestamp").Int(), bid.String(), ask.String())
}

// ParseBookTicker 解析 Binance bookTicker 推送：{"b":..,"a":..,"T":..,"E":..}。
func ParseBookTicker(record []byte) (StreamEvent, error) {
	if !gjson.ValidBytes(record) {
		return StreamEvent{}, fmt.Errorf("%w: %q", ErrMalformedRecord, truncate(record))
	}
	res := gjson.ParseBytes(record)
	ev := StreamEvent{Type: res.Get("e").String()}
	bid := res.Get("b")
	ask := res.Get("a")
	if !bid.Exists() || !ask.Exists() {
		return ev, nil
	}
	ts := res.Get("T").Int()
	if ts == 0 {
		ts = res.Get("E").Int()
	}
	if ts == 0 {
		return ev, nil
	}
	return priceEvent(ev, ts, bid.String(), ask.String())
}

func priceEvent(ev StreamEvent, ts int64, bidRaw, askRaw string) (StreamEvent, error) {
	bid, err := decimal.NewFromString(bidRaw)
	if err != nil {
		return StreamEvent{}, fmt.Errorf("%w: bid=%q", ErrMalformedRecord, bidRaw)
	}
	ask, err := decimal.NewFromString(askRaw)
	if err != nil {
		return StreamEvent{}, fmt.Errorf("%w: ask=%q", ErrMalformedRecord, askRaw)
	}
	if ev.Type == "" {
		ev.Type = EventNewPrice.String()
	}
	ev.Kind = EventNewPrice
	ev.Timestamp = ts
	ev.Bid = bid
	ev.Ask = ask
	return ev, nil
}

func truncate(b []byte) string {
	const max = 120
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
