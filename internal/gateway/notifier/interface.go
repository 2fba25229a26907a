package notifier

import "context"

// TextNotifier 是发送一条纯文本通知的最小接口。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Notifier 由交易处理链路使用；实现必须不阻塞调用方。
type Notifier interface {
	Notify(msg StructuredMessage)
}

// Nop 丢弃所有通知。
type Nop struct{}

func (Nop) Notify(StructuredMessage) {}
