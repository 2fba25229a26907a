// Package symbol 统一处理配置中的品种写法（BTC/USDT、btcusdt、URA.ARCA 等）。
package symbol

import "strings"

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

// Parse 识别加密货币交易对；Exante 这类 "代码.交易所" 写法返回零值。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{}
}

// Binance 返回币安合约接口使用的写法，无法识别时只做大写与去分隔符。
func Binance(s string) string {
	if out := Parse(s).Binance(); out != "" {
		return out
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "/", "")
}

var fileReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// FileKey 返回可以安全用作目录名的写法。
func FileKey(s string) string {
	return fileReplacer.Replace(strings.ToUpper(strings.TrimSpace(s)))
}
