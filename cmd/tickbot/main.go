package main

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"tickbot/internal/app"
	"tickbot/internal/config"
	"tickbot/internal/logger"
)

func main() {
	cfgPath := pflag.StringP("config", "c", config.PathFromEnv(), "配置文件路径（也可通过 "+config.EnvConfigPath+" 指定）")
	backtest := pflag.Bool("backtest", false, "在归档蜡烛上回测 backtest.unit 后退出")
	watch := pflag.Bool("watch", true, "监听配置文件变更并热更新日志级别")
	pflag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	tradeFile, err := setupTradeLog(cfg.App.TradeLogPath)
	if err != nil {
		log.Fatalf("初始化交易日志失败: %v", err)
	}
	if tradeFile != nil {
		defer tradeFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，单元=%d）", cfg.App.Env, len(cfg.Units))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *backtest {
		if _, err := app.RunBacktest(ctx, cfg, os.Stdout); err != nil {
			log.Fatalf("回测失败: %v", err)
		}
		return
	}

	if err := app.PrintSummary(os.Stdout, cfg); err != nil {
		logger.Warnf("打印配置摘要失败: %v", err)
	}
	if *watch {
		if err := config.Watch(*cfgPath, func(next *config.Config) {
			logger.SetLevel(next.App.LogLevel)
		}); err != nil {
			logger.Warnf("监听配置文件失败: %v", err)
		}
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("已退出")
}

func openAppend(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	file, err := openAppend(trimmed)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupTradeLog(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	f, err := openAppend(trimmed)
	if err != nil {
		return nil, err
	}
	logger.SetTradeWriter(f)
	return f, nil
}
