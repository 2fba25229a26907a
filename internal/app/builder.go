package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tickbot/internal/config"
	"tickbot/internal/deal"
	"tickbot/internal/gateway/binance"
	"tickbot/internal/gateway/exante"
	"tickbot/internal/gateway/exchange"
	"tickbot/internal/gateway/notifier"
	"tickbot/internal/logger"
	"tickbot/internal/market"
	"tickbot/internal/store/archive"
	"tickbot/internal/store/journal"
	"tickbot/internal/strategy"
	"tickbot/internal/stream"
	"tickbot/internal/trader"
	statushttp "tickbot/internal/transport/http/status"
)

// MarketBinding 是一个单元的行情来源：历史数据、实时订阅与记录解码。
type MarketBinding struct {
	Seed    trader.SeedSource
	Feed    stream.Feed
	Decoder market.Decoder
}

type AppBuilder struct {
	cfg *config.Config

	marketFn   func(u config.UnitConfig) (MarketBinding, error)
	exchangeFn func(u config.UnitConfig) (exchange.Exchange, error)
	senderFn   func(t config.TelegramConfig) notifier.TextNotifier
	withHTTP   bool

	exanteClients map[string]*exante.Client
	binanceSource *binance.Source
}

type AppBuilderOption func(*AppBuilder)

// WithMarket 替换行情来源的构造（测试用）。
func WithMarket(fn func(u config.UnitConfig) (MarketBinding, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.marketFn = fn }
}

func WithExchange(fn func(u config.UnitConfig) (exchange.Exchange, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.exchangeFn = fn }
}

func WithoutHTTP() AppBuilderOption {
	return func(b *AppBuilder) { b.withHTTP = false }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{cfg: cfg, withHTTP: true, exanteClients: make(map[string]*exante.Client)}
	b.marketFn = b.defaultMarket
	b.exchangeFn = b.defaultExchange
	b.senderFn = defaultSender
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	a := &App{cfg: b.cfg}
	if err := b.buildStores(a); err != nil {
		a.Close()
		return nil, err
	}
	a.notify = notifier.NewAsync(b.senderFn(b.cfg.Notify.Telegram), b.cfg.Notify.Buffer)
	for _, u := range b.cfg.Units {
		runner, err := b.buildUnit(a, u)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("unit %s: %w", u.Name, err)
		}
		a.units = append(a.units, runner)
	}
	if b.withHTTP && strings.TrimSpace(b.cfg.App.HTTPAddr) != "" {
		cfg := statushttp.ServerConfig{Addr: b.cfg.App.HTTPAddr, Units: a}
		if a.journal != nil {
			cfg.Deals = a.journal
		}
		srv, err := statushttp.NewServer(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.http = srv
	}
	return a, nil
}

func (b *AppBuilder) buildStores(a *App) error {
	if path := strings.TrimSpace(b.cfg.Storage.JournalPath); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
	}
	for _, u := range b.cfg.Units {
		if !u.Archive {
			continue
		}
		arc, err := archive.New(b.cfg.Storage.ArchiveDir)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		a.archive = arc
		break
	}
	return nil
}

func (b *AppBuilder) buildUnit(a *App, u config.UnitConfig) (*trader.Runner, error) {
	iv, err := u.IntervalDuration()
	if err != nil {
		return nil, err
	}
	session, err := u.Session.Build()
	if err != nil {
		return nil, err
	}
	opposite, err := deal.ParseOppositePolicy(u.Opposite)
	if err != nil {
		return nil, err
	}
	ex, err := b.exchangeFn(u)
	if err != nil {
		return nil, err
	}
	mb, err := b.marketFn(u)
	if err != nil {
		return nil, err
	}
	tags := append([]string{u.Name}, u.Tags...)

	deps := trader.Deps{Exchange: ex, Notifier: a.notify}
	if a.journal != nil {
		deps.Journal = a.journal
	}
	if a.archive != nil && u.Archive {
		deps.Archive = a.archive
	}
	proc, err := trader.NewProcessor(trader.ProcessorConfig{
		Unit:            u.Name,
		Symbol:          u.Symbol,
		Opposite:        opposite,
		Session:         session,
		GraceDelay:      u.GraceDelay,
		BreakevenProfit: decimal.NewFromFloat(u.Breakeven.Profit),
		BreakevenOffset: decimal.NewFromFloat(u.Breakeven.Offset),
		BreakevenEvery:  u.Breakeven.Every,
		PricePlaces:     u.PricePlaces,
		Tags:            tags,
	}, deps)
	if err != nil {
		return nil, err
	}
	sc := b.cfg.Stream
	runner, err := trader.NewRunner(trader.RunnerConfig{
		Unit:              u.Name,
		Symbol:            u.Symbol,
		Interval:          iv,
		SeedSize:          u.SeedSize,
		Capacity:          u.Capacity,
		PricePlaces:       u.PricePlaces,
		MinDelay:          sc.MinDelay,
		MaxDelay:          sc.MaxDelay,
		RateLimitCooldown: sc.RateLimitCooldown,
		ErrorCooldown:     sc.ErrorCooldown,
		Tags:              tags,
	}, mb.Seed, mb.Feed, mb.Decoder, CombinatorFactory(u), proc, a.notify)
	if err != nil {
		return nil, err
	}
	logger.Infof("[app] 单元 %s 已构建 symbol=%s source=%s broker=%s interval=%s strategies=%d",
		u.Name, u.Symbol, u.Source, ex.Name(), u.Interval, len(u.Strategies))
	return runner, nil
}

// CombinatorFactory 按单元配置构造全新的策略组合。
func CombinatorFactory(u config.UnitConfig) trader.CombinatorFactory {
	return func() (*strategy.Combinator, error) {
		members := make([]strategy.Member, 0, len(u.Strategies))
		for _, sc := range u.Strategies {
			s, err := strategy.Build(sc.Kind, sc.Name, sc.Params)
			if err != nil {
				return nil, err
			}
			mm, err := u.MoneyFor(sc).Build()
			if err != nil {
				return nil, fmt.Errorf("strategy %s: %w", sc.Name, err)
			}
			members = append(members, strategy.Member{Strategy: s, Money: mm})
		}
		return strategy.NewCombinator(members...), nil
	}
}

func (b *AppBuilder) defaultExchange(u config.UnitConfig) (exchange.Exchange, error) {
	if u.IsPaper() {
		return exchange.NewPaper(), nil
	}
	return b.exanteClient(u.Broker)
}

func (b *AppBuilder) defaultMarket(u config.UnitConfig) (MarketBinding, error) {
	switch u.Source {
	case "binance":
		src, err := b.binance()
		if err != nil {
			return MarketBinding{}, err
		}
		return MarketBinding{Seed: src, Feed: src.QuoteFeed(u.Symbol), Decoder: market.ParseBookTicker}, nil
	default:
		name := u.Broker
		if u.IsPaper() && len(b.cfg.Exante) > 0 {
			name = b.cfg.Exante[0].Name
		}
		client, err := b.exanteClient(name)
		if err != nil {
			return MarketBinding{}, err
		}
		return MarketBinding{Seed: client, Feed: client.QuoteFeed(u.Symbol), Decoder: market.ParseQuoteRecord}, nil
	}
}

// exanteClient 同一账户的单元共用一个客户端（及其熔断器）。
func (b *AppBuilder) exanteClient(name string) (*exante.Client, error) {
	if c, ok := b.exanteClients[name]; ok {
		return c, nil
	}
	for _, acc := range b.cfg.Exante {
		if acc.Name != name {
			continue
		}
		baseURL := acc.BaseURL
		if baseURL == "" {
			baseURL = exante.DemoURL
			if acc.Env == "live" {
				baseURL = exante.LiveURL
			}
		}
		c, err := exante.New(exante.Config{
			BaseURL:           baseURL,
			ApplicationID:     acc.ApplicationID,
			AccessKey:         acc.AccessKey,
			AccountID:         acc.AccountID,
			Currency:          acc.Currency,
			OrderDuration:     acc.OrderDuration,
			Timeout:           acc.Timeout,
			StreamReadTimeout: b.cfg.Stream.ReadTimeout,
		})
		if err != nil {
			return nil, err
		}
		b.exanteClients[name] = c
		return c, nil
	}
	return nil, fmt.Errorf("exante account %q not configured", name)
}

func (b *AppBuilder) binance() (*binance.Source, error) {
	if b.binanceSource != nil {
		return b.binanceSource, nil
	}
	bc := b.cfg.Binance
	src, err := binance.New(binance.Config{
		RESTBaseURL:  bc.RESTBaseURL,
		WSBaseURL:    bc.WSBaseURL,
		HTTPTimeout:  bc.Timeout,
		ReadTimeout:  b.cfg.Stream.ReadTimeout,
		ProxyEnabled: bc.Proxy.Enabled,
		RESTProxyURL: bc.Proxy.RESTURL,
		WSProxyURL:   bc.Proxy.WSURL,
	})
	if err != nil {
		return nil, err
	}
	b.binanceSource = src
	return src, nil
}

func defaultSender(t config.TelegramConfig) notifier.TextNotifier {
	if !t.Enabled {
		return logSender{}
	}
	tg := notifier.NewTelegram(t.BotToken, t.ChatID)
	if t.BaseURL != "" {
		tg.BaseURL = t.BaseURL
	}
	return tg
}

// logSender 在未启用 Telegram 时把通知写进日志。
type logSender struct{}

func (logSender) SendText(_ context.Context, text string) error {
	logger.Infof("[notify] %s", strings.ReplaceAll(text, "\n", " | "))
	return nil
}
