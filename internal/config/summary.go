package config

import (
	"gopkg.in/yaml.v3"
)

const redacted = "******"

// Redacted 返回隐藏了密钥的配置副本。
func (c Config) Redacted() Config {
	out := c
	out.Exante = make([]ExanteConfig, len(c.Exante))
	for i, acc := range c.Exante {
		acc.AccessKey = mask(acc.AccessKey)
		out.Exante[i] = acc
	}
	out.Notify.Telegram.BotToken = mask(c.Notify.Telegram.BotToken)
	return out
}

// Summary 渲染启动时打印的生效配置。
func (c Config) Summary() (string, error) {
	raw, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return redacted
}
