package market

// History 是定长的蜡烛队列，超出容量时淘汰最旧的一根。
type History struct {
	capacity int
	items    []Candle
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultCandleCapacity
	}
	return &History{capacity: capacity, items: make([]Candle, 0, capacity)}
}

func (h *History) Add(c Candle) {
	if len(h.items) == h.capacity {
		copy(h.items, h.items[1:])
		h.items[len(h.items)-1] = c
		return
	}
	h.items = append(h.items, c)
}

func (h *History) Len() int { return len(h.items) }

func (h *History) Cap() int { return h.capacity }

func (h *History) Last() (Candle, bool) {
	return h.At(-1)
}

// At 支持负下标（-1 为最新）。
func (h *History) At(i int) (Candle, bool) {
	if i < 0 {
		i += len(h.items)
	}
	if i < 0 || i >= len(h.items) {
		return Candle{}, false
	}
	return h.items[i], true
}

func (h *History) Candles() []Candle {
	out := make([]Candle, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Closes() []float64 {
	out := make([]float64, len(h.items))
	for i, c := range h.items {
		out[i] = c.Close.InexactFloat64()
	}
	return out
}

func (h *History) Highs() []float64 {
	out := make([]float64, len(h.items))
	for i, c := range h.items {
		out[i] = c.High.InexactFloat64()
	}
	return out
}

func (h *History) Lows() []float64 {
	out := make([]float64, len(h.items))
	for i, c := range h.items {
		out[i] = c.Low.InexactFloat64()
	}
	return out
}
