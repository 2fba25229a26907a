package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tickbot/internal/deal"
	"tickbot/internal/strategy"
)

var structValidator = validator.New()

// validate 先做字段级规则校验，再做跨字段检查。
func validate(c *Config) error {
	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config %s failed on %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if c.Stream.MaxDelay < c.Stream.MinDelay {
		return fmt.Errorf("stream.max_delay %s must be >= stream.min_delay %s", c.Stream.MaxDelay, c.Stream.MinDelay)
	}
	accounts := make(map[string]bool, len(c.Exante))
	for _, acc := range c.Exante {
		if accounts[acc.Name] {
			return fmt.Errorf("exante account %q defined twice", acc.Name)
		}
		accounts[acc.Name] = true
	}
	units := make(map[string]bool, len(c.Units))
	for i := range c.Units {
		u := &c.Units[i]
		if units[u.Name] {
			return fmt.Errorf("unit %q defined twice", u.Name)
		}
		units[u.Name] = true
		if err := u.validate(accounts); err != nil {
			return fmt.Errorf("unit %s: %w", u.Name, err)
		}
	}
	return c.Backtest.validate(units)
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

func (u *UnitConfig) validate(accounts map[string]bool) error {
	if !u.IsPaper() && !accounts[u.Broker] {
		return fmt.Errorf("broker %q is neither %q nor a configured exante account", u.Broker, BrokerPaper)
	}
	if u.Source == "exante" && len(accounts) == 0 {
		return fmt.Errorf("source exante requires at least one exante account")
	}
	iv, err := u.IntervalDuration()
	if err != nil {
		return err
	}
	if iv < time.Second {
		return fmt.Errorf("interval %s must be at least 1s", u.Interval)
	}
	if _, err := deal.ParseOppositePolicy(u.Opposite); err != nil {
		return err
	}
	if _, err := u.Session.Build(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	for _, sc := range u.Strategies {
		if _, err := strategy.Build(sc.Kind, sc.Name, sc.Params); err != nil {
			return err
		}
		if _, err := u.MoneyFor(sc).Build(); err != nil {
			return fmt.Errorf("strategy %s: %w", sc.Name, err)
		}
	}
	return nil
}

func (b *BacktestConfig) validate(units map[string]bool) error {
	if strings.TrimSpace(b.Unit) != "" && !units[b.Unit] {
		return fmt.Errorf("backtest.unit %q not found in units", b.Unit)
	}
	if _, err := parseBound(b.From); err != nil {
		return fmt.Errorf("backtest.from: %w", err)
	}
	if _, err := parseBound(b.To); err != nil {
		return fmt.Errorf("backtest.to: %w", err)
	}
	return nil
}
