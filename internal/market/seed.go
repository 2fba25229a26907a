package market

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// SeedRow 是历史查询返回的一行 OHLC，Timestamp 为毫秒，行序为最新在前。
type SeedRow struct {
	Timestamp int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
}

// Candle 将毫秒时间戳换算为秒。
func (r SeedRow) Candle() Candle {
	return NewCandle(r.Timestamp/1000, r.Open, r.High, r.Low, r.Close)
}

// Chronological 返回按时间正序排列的副本。
func Chronological(rows []SeedRow) []SeedRow {
	out := make([]SeedRow, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out
}

// ParseSeedRows 解析 [{"timestamp":..,"open":..,...}] 形式的历史数据。
func ParseSeedRows(body []byte) ([]SeedRow, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: seed payload is not valid json", ErrMalformedRecord)
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: seed payload is not an array", ErrMalformedRecord)
	}
	items := root.Array()
	rows := make([]SeedRow, 0, len(items))
	for i, item := range items {
		row, err := parseSeedRow(item)
		if err != nil {
			return nil, fmt.Errorf("seed row %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSeedRow(item gjson.Result) (SeedRow, error) {
	ts := item.Get("timestamp")
	if !ts.Exists() {
		return SeedRow{}, fmt.Errorf("%w: missing timestamp", ErrMalformedRecord)
	}
	row := SeedRow{Timestamp: ts.Int()}
	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"open", &row.Open},
		{"high", &row.High},
		{"low", &row.Low},
		{"close", &row.Close},
	}
	for _, f := range fields {
		v, err := decimalField(item, f.key)
		if err != nil {
			return SeedRow{}, err
		}
		*f.dst = v
	}
	return row, nil
}

func decimalField(item gjson.Result, path string) (decimal.Decimal, error) {
	res := item.Get(path)
	if !res.Exists() {
		return decimal.Zero, fmt.Errorf("%w: missing %s", ErrMalformedRecord, path)
	}
	v, err := decimal.NewFromString(res.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrMalformedRecord, path, res.String())
	}
	return v, nil
}
