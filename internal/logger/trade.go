package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

var (
	tradeMu  sync.Mutex
	tradeLog *log.Logger
)

// SetTradeWriter 设置独立的成交日志输出；nil 关闭。
func SetTradeWriter(w io.Writer) {
	tradeMu.Lock()
	defer tradeMu.Unlock()
	if w == nil {
		tradeLog = nil
		return
	}
	tradeLog = log.New(w, "", log.LstdFlags)
}

// TradeField 是成交日志中的一个键值，Value 以 fmt.Sprint 输出。
type TradeField struct {
	Key   string
	Value any
}

// Trade 以单行 [TRADE][unit][action] k=v ... 写入成交日志，同时输出一条 info。
func Trade(unit, action string, fields ...TradeField) {
	var b strings.Builder
	b.WriteString("[TRADE]")
	for _, tag := range []string{unit, action} {
		if tag == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("]")
	}
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		v := fmt.Sprint(f.Value)
		if strings.TrimSpace(v) == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString("=")
		b.WriteString(v)
	}
	line := b.String()
	Infof("%s", line)

	tradeMu.Lock()
	l := tradeLog
	tradeMu.Unlock()
	if l != nil {
		l.Print(line)
	}
}
