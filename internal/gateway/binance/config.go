package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	WSBaseURL   string
	HTTPTimeout time.Duration
	// ReadTimeout 是行情流的读静默超时。
	ReadTimeout time.Duration

	ProxyEnabled bool
	RESTProxyURL string
	WSProxyURL   string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimSpace(out.RESTBaseURL)
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	out.WSBaseURL = strings.TrimRight(strings.TrimSpace(out.WSBaseURL), "/")
	if out.WSBaseURL == "" {
		out.WSBaseURL = "wss://fstream.binance.com/ws"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	out.WSProxyURL = strings.TrimSpace(out.WSProxyURL)
	if out.WSProxyURL == "" {
		out.WSProxyURL = out.RESTProxyURL
	}
	return out
}
