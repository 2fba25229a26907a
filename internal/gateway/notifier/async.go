package notifier

import (
	"context"
	"sync"
	"time"

	"tickbot/internal/logger"
)

// Async 在后台协程中按顺序发送通知，队列满时直接丢弃。
type Async struct {
	sender  TextNotifier
	queue   chan StructuredMessage
	timeout time.Duration

	once sync.Once
	done chan struct{}
}

func NewAsync(sender TextNotifier, buffer int) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	return &Async{
		sender:  sender,
		queue:   make(chan StructuredMessage, buffer),
		timeout: 30 * time.Second,
		done:    make(chan struct{}),
	}
}

func (a *Async) Notify(msg StructuredMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case a.queue <- msg:
	default:
		logger.Warnf("[notifier] 队列已满，丢弃通知: %s", msg.Title)
	}
}

// Run 持续发送直到 ctx 取消，取消后会尽量发完队列中剩余的消息。
func (a *Async) Run(ctx context.Context) error {
	defer a.once.Do(func() { close(a.done) })
	for {
		select {
		case msg := <-a.queue:
			a.send(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-a.queue:
					a.send(msg)
				default:
					return nil
				}
			}
		}
	}
}

// Done 在 Run 返回后关闭。
func (a *Async) Done() <-chan struct{} { return a.done }

func (a *Async) send(msg StructuredMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.sender.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("[notifier] 发送失败: %v", err)
	}
}
