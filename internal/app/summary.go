package app

import (
	"fmt"
	"io"
	"strings"

	"tickbot/internal/config"
)

// PrintSummary 打印启动配置摘要（密钥已隐藏）。
func PrintSummary(w io.Writer, cfg *config.Config) error {
	body, err := cfg.Summary()
	if err != nil {
		return err
	}
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w, "[交易单元 (UNITS)]")
	for _, u := range cfg.Units {
		names := make([]string, 0, len(u.Strategies))
		for _, s := range u.Strategies {
			names = append(names, s.Name)
		}
		fmt.Fprintf(w, "  > %s  %s@%s  source=%s broker=%s opposite=%s\n",
			u.Name, u.Symbol, u.Interval, u.Source, u.Broker, formatOr(u.Opposite, "ignore"))
		fmt.Fprintf(w, "    策略组合: %s\n", formatList(names))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[生效配置 (EFFECTIVE CONFIG)]")
	fmt.Fprint(w, body)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	return nil
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func formatOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
