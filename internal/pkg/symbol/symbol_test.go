package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USDT"}, Parse("btc/usdt"))
	assert.Equal(t, Symbol{Base: "ETH", Quote: "USDT"}, Parse("ETHUSDT"))
	assert.Equal(t, Symbol{Base: "SOL", Quote: "USDT"}, Parse("SOL/USDT:USDT"))
	assert.Equal(t, Symbol{}, Parse("URA.ARCA"))
	assert.Equal(t, Symbol{}, Parse(""))
}

func TestBinance(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance("BTC/USDT"))
	assert.Equal(t, "BTCUSDT", Binance(" btcusdt "))
	assert.Equal(t, "XYZ", Binance("x/yz"))
}

func TestFileKey(t *testing.T) {
	assert.Equal(t, "BTC_USDT", FileKey("btc/usdt"))
	assert.Equal(t, "URA.ARCA", FileKey("URA.ARCA"))
	assert.Equal(t, "EUR_USD.E.FX", FileKey("EUR/USD.E.FX"))
}
