package config

import (
	"strings"
	"time"
)

// Config 是 tickbot 的主配置载体。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Stream   StreamConfig   `yaml:"stream"`
	Exante   []ExanteConfig `yaml:"exante" validate:"dive"`
	Binance  BinanceConfig  `yaml:"binance"`
	Notify   NotifyConfig   `yaml:"notify"`
	Storage  StorageConfig  `yaml:"storage"`
	Units    []UnitConfig   `yaml:"units" validate:"required,min=1,dive"`
	Backtest BacktestConfig `yaml:"backtest"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogPath  string `yaml:"log_path"`
	// TradeLogPath 单独记录开平仓流水，为空时不输出。
	TradeLogPath string `yaml:"trade_log_path"`
	HTTPAddr     string `yaml:"http_addr"`
}

// StreamConfig 是所有交易单元共用的订阅重连参数。
type StreamConfig struct {
	MinDelay          time.Duration `yaml:"min_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	ErrorCooldown     time.Duration `yaml:"error_cooldown"`
}

// ExanteConfig 描述一个 Exante 账户。
type ExanteConfig struct {
	Name          string        `yaml:"name" validate:"required"`
	Env           string        `yaml:"env" validate:"omitempty,oneof=demo live"`
	BaseURL       string        `yaml:"base_url" validate:"omitempty,url"`
	ApplicationID string        `yaml:"application_id" validate:"required"`
	AccessKey     string        `yaml:"access_key" validate:"required"`
	AccountID     string        `yaml:"account_id" validate:"required"`
	Currency      string        `yaml:"currency"`
	OrderDuration string        `yaml:"order_duration"`
	Timeout       time.Duration `yaml:"timeout"`
}

type BinanceConfig struct {
	RESTBaseURL string        `yaml:"rest_base_url"`
	WSBaseURL   string        `yaml:"ws_base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Proxy       ProxyConfig   `yaml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	RESTURL string `yaml:"rest_url"`
	WSURL   string `yaml:"ws_url"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Buffer   int            `yaml:"buffer"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	BaseURL  string `yaml:"base_url"`
}

type StorageConfig struct {
	JournalPath string `yaml:"journal_path"`
	ArchiveDir  string `yaml:"archive_dir"`
}

// UnitConfig 描述一个交易单元：一个品种的行情订阅 + 一个下单通道。
type UnitConfig struct {
	Name        string           `yaml:"name" validate:"required"`
	Symbol      string           `yaml:"symbol" validate:"required"`
	Source      string           `yaml:"source" validate:"oneof=exante binance"`
	Broker      string           `yaml:"broker" validate:"required"`
	Interval    string           `yaml:"interval" validate:"required"`
	SeedSize    int              `yaml:"seed_size" validate:"gte=0,lte=5000"`
	Capacity    int              `yaml:"capacity" validate:"gte=0,lte=5000"`
	PricePlaces int32            `yaml:"price_places" validate:"gte=0,lte=12"`
	Opposite    string           `yaml:"opposite_signal" validate:"omitempty,oneof=ignore reverse"`
	GraceDelay  time.Duration    `yaml:"grace_delay"`
	Archive     bool             `yaml:"archive"`
	Session     SessionConfig    `yaml:"session"`
	Breakeven   BreakevenConfig  `yaml:"breakeven"`
	Money       MoneyConfig      `yaml:"money"`
	Strategies  []StrategyConfig `yaml:"strategies" validate:"required,min=1,dive"`
	Tags        []string         `yaml:"tags"`
}

// IsPaper 表示该单元只在内存中模拟下单。
func (u UnitConfig) IsPaper() bool {
	return strings.EqualFold(strings.TrimSpace(u.Broker), BrokerPaper)
}

const BrokerPaper = "paper"

type SessionConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

// BreakevenConfig 控制通道侧的保本止损移动，Profit 为 0 表示关闭。
type BreakevenConfig struct {
	Profit float64       `yaml:"profit" validate:"gte=0"`
	Offset float64       `yaml:"offset" validate:"gte=0"`
	Every  time.Duration `yaml:"every"`
}

type MoneyConfig struct {
	OrderAmount      float64 `yaml:"order_amount" validate:"gte=0"`
	RiskUnit         float64 `yaml:"risk_unit" validate:"gte=0"`
	StopLossFactor   float64 `yaml:"stop_loss_factor" validate:"gte=0"`
	TakeProfitFactor float64 `yaml:"take_profit_factor" validate:"gte=0"`
	Trailing         bool    `yaml:"trailing"`
	Breakeven        string  `yaml:"breakeven" validate:"omitempty,oneof=fixed_offset risk_relative"`
	BreakevenOffset  float64 `yaml:"breakeven_offset"`
	BreakevenFactor  float64 `yaml:"breakeven_factor"`
}

// StrategyConfig 描述组合中的一个策略，Money 为空时沿用单元的资金配置。
type StrategyConfig struct {
	Kind   string         `yaml:"kind" validate:"required"`
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
	Money  *MoneyConfig   `yaml:"money"`
}

// BacktestConfig 描述 --backtest 模式要重放的单元与区间（RFC3339 或 2006-01-02）。
type BacktestConfig struct {
	Unit string `yaml:"unit"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// keySet 记录用户显式设置过的配置键（小写、点分）。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
