package config

import (
	"strings"
	"time"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9991"
	defaultMinDelay          = 500 * time.Millisecond
	defaultMaxDelay          = 30 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultRateLimitCooldown = 60 * time.Second
	defaultErrorCooldown     = 3 * time.Second
	defaultExanteEnv         = "demo"
	defaultExanteCurrency    = "EUR"
	defaultOrderDuration     = "good_till_cancel"
	defaultHTTPTimeout       = 15 * time.Second
	defaultBinanceREST       = "https://fapi.binance.com"
	defaultBinanceWS         = "wss://fstream.binance.com/ws"
	defaultNotifyBuffer      = 64
	defaultJournalPath       = "data/journal.db"
	defaultArchiveDir        = "data/candles"
	defaultUnitSource        = "exante"
	defaultSeedSize          = 1000
	defaultCapacity          = 5000
	defaultPricePlaces       = 6
	defaultGraceDelay        = 500 * time.Millisecond
	defaultBreakevenEvery    = 10 * time.Second
	defaultBreakevenOffset   = 0.0002
	defaultStopLossFactor    = 1
	defaultTakeProfitFactor  = 2
)

// applyDefaults 为所有子配置应用默认值，用户显式设置过的键不会被覆盖。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Stream.applyDefaults(keys)
	for i := range c.Exante {
		c.Exante[i].applyDefaults()
	}
	c.Binance.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
	for i := range c.Units {
		c.Units[i].applyDefaults()
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
	a.LogLevel = strings.ToLower(strings.TrimSpace(a.LogLevel))
}

func (s *StreamConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		durationFieldDefault("stream.min_delay", &s.MinDelay, defaultMinDelay),
		durationFieldDefault("stream.max_delay", &s.MaxDelay, defaultMaxDelay),
		durationFieldDefault("stream.read_timeout", &s.ReadTimeout, defaultReadTimeout),
		durationFieldDefault("stream.rate_limit_cooldown", &s.RateLimitCooldown, defaultRateLimitCooldown),
		durationFieldDefault("stream.error_cooldown", &s.ErrorCooldown, defaultErrorCooldown),
	)
}

func (e *ExanteConfig) applyDefaults() {
	e.Name = strings.TrimSpace(e.Name)
	if strings.TrimSpace(e.Env) == "" {
		e.Env = defaultExanteEnv
	}
	if strings.TrimSpace(e.Currency) == "" {
		e.Currency = defaultExanteCurrency
	}
	if strings.TrimSpace(e.OrderDuration) == "" {
		e.OrderDuration = defaultOrderDuration
	}
	if e.Timeout <= 0 {
		e.Timeout = defaultHTTPTimeout
	}
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("binance.rest_base_url", &b.RESTBaseURL, defaultBinanceREST),
		stringFieldDefault("binance.ws_base_url", &b.WSBaseURL, defaultBinanceWS),
		durationFieldDefault("binance.timeout", &b.Timeout, defaultHTTPTimeout),
	)
	b.Proxy.RESTURL = strings.TrimSpace(b.Proxy.RESTURL)
	b.Proxy.WSURL = strings.TrimSpace(b.Proxy.WSURL)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "notify.buffer",
			need:  func() bool { return n.Buffer <= 0 },
			apply: func() { n.Buffer = defaultNotifyBuffer },
		},
	)
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("storage.journal_path", &s.JournalPath, defaultJournalPath),
		stringFieldDefault("storage.archive_dir", &s.ArchiveDir, defaultArchiveDir),
	)
}

// 列表项无法按键区分是否设置，只对零值补默认。
func (u *UnitConfig) applyDefaults() {
	u.Name = strings.TrimSpace(u.Name)
	u.Symbol = strings.TrimSpace(u.Symbol)
	u.Broker = strings.TrimSpace(u.Broker)
	u.Source = strings.ToLower(strings.TrimSpace(u.Source))
	if u.Source == "" {
		u.Source = defaultUnitSource
	}
	u.Interval = strings.ToLower(strings.TrimSpace(u.Interval))
	if u.SeedSize == 0 {
		u.SeedSize = defaultSeedSize
	}
	if u.Capacity == 0 {
		u.Capacity = defaultCapacity
	}
	if u.PricePlaces == 0 {
		u.PricePlaces = defaultPricePlaces
	}
	u.Opposite = strings.ToLower(strings.TrimSpace(u.Opposite))
	if u.GraceDelay <= 0 {
		u.GraceDelay = defaultGraceDelay
	}
	if u.Breakeven.Every <= 0 {
		u.Breakeven.Every = defaultBreakevenEvery
	}
	if u.Breakeven.Profit > 0 && u.Breakeven.Offset == 0 {
		u.Breakeven.Offset = defaultBreakevenOffset
	}
	u.Money.applyDefaults()
	for i := range u.Strategies {
		s := &u.Strategies[i]
		s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
		if strings.TrimSpace(s.Name) == "" {
			s.Name = s.Kind
		}
		if s.Money != nil {
			s.Money.applyDefaults()
		}
	}
}

func (m *MoneyConfig) applyDefaults() {
	if m.StopLossFactor == 0 {
		m.StopLossFactor = defaultStopLossFactor
	}
	if m.TakeProfitFactor == 0 {
		m.TakeProfitFactor = defaultTakeProfitFactor
	}
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func durationFieldDefault(key string, target *time.Duration, def time.Duration) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
