package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"tickbot/internal/logger"
)

// Watch 监听主配置文件，变更后重新加载并回调；加载失败时保留旧配置。
// 目前只有 app.log_level 支持热更新，其余字段需要重启生效。
func Watch(path string, onChange func(*Config)) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("watch requires config path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("[config] 重新加载失败 (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("[config] 配置已重新加载: %s", evt.Name)
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
