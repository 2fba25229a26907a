package notifier

import (
	"fmt"
	"strings"
	"time"

	"tickbot/internal/deal"
)

const maxStructuredMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的 Telegram 推送。
type StructuredMessage struct {
	// Tags 渲染为首行的 #标签，便于在群内检索，例如 exante、品种、账户。
	Tags      []string
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本，自动裁剪长度。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	if tags := renderTags(m.Tags); tags != "" {
		b.WriteString(tags + "\n")
	}
	header := strings.TrimSpace(strings.TrimSpace(m.Icon + " " + m.Title))
	if header != "" {
		b.WriteString(header + "\n\n")
	}
	if block := renderSections(m.Sections); block != "" {
		b.WriteString(block)
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(sanitize(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}
	body := strings.TrimSpace(b.String())
	if len(body) > maxStructuredMessageLen {
		body = body[:maxStructuredMessageLen] + "..."
	}
	return body
}

func renderSections(secs []MessageSection) string {
	hasContent := false
	for _, sec := range secs {
		if len(sanitizeLines(sec.Lines)) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	var b strings.Builder
	b.WriteString("```\n")
	for idx, sec := range secs {
		lines := sanitizeLines(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		title := strings.TrimSpace(sec.Title)
		if title != "" {
			b.WriteString(sanitize(title))
			b.WriteString("\n")
		}
		for _, line := range lines {
			b.WriteString("- ")
			b.WriteString(sanitize(line))
			b.WriteString("\n")
		}
		if idx != len(secs)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n\n")
	return b.String()
}

func sanitizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "```", "'''")
	return s
}

func renderTags(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ReplaceAll(strings.TrimSpace(tag), " ", "_")
		if tag != "" {
			parts = append(parts, "#"+tag)
		}
	}
	return strings.Join(parts, " ")
}

// DealOpened 生成开仓通知。
func DealOpened(tags []string, d *deal.Deal) StructuredMessage {
	return StructuredMessage{
		Tags:  tags,
		Icon:  "🟢",
		Title: fmt.Sprintf("%s 开仓 %s", d.Symbol, d.Side),
		Sections: []MessageSection{{
			Title: d.Strategy,
			Lines: []string{
				"amount=" + d.Amount.String(),
				"entry=" + d.EntryPrice.String(),
				"tp=" + d.TakeProfit.String(),
				"sl=" + d.StopLoss.String(),
			},
		}},
		Timestamp: d.OpenedAt,
	}
}

// DealClosed 生成平仓通知。
func DealClosed(tags []string, d *deal.Deal) StructuredMessage {
	icon := "🔴"
	if d.Profit.IsPositive() {
		icon = "✅"
	}
	return StructuredMessage{
		Tags:  tags,
		Icon:  icon,
		Title: fmt.Sprintf("%s 平仓 %s (%s)", d.Symbol, d.Side, d.CloseReason),
		Sections: []MessageSection{{
			Lines: []string{
				"entry=" + d.EntryPrice.String(),
				"exit=" + d.ExitPrice.String(),
				"profit=" + d.Profit.String(),
			},
		}},
		Timestamp: d.ClosedAt,
	}
}

// Alert 生成告警通知（限流、未知异常等）。
func Alert(tags []string, title, detail string) StructuredMessage {
	msg := StructuredMessage{Tags: tags, Icon: "⚠️", Title: title, Timestamp: time.Now()}
	if detail = strings.TrimSpace(detail); detail != "" {
		msg.Sections = []MessageSection{{Lines: []string{detail}}}
	}
	return msg
}
