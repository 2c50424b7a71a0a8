package record

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"SwapRelay/pkg/logger"
)

// ErrQueueClosed 表示队列已关闭。
var ErrQueueClosed = errors.New("队列已关闭")

// MemoryQueue 使用 channel 模拟消息队列，用于单进程部署与测试。
// 处理失败的记录不会重投，只记录错误日志。
type MemoryQueue struct {
	ch        chan Record
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan Record, size), done: make(chan struct{})}
}

// Publish 将记录投递到队列。队列满时阻塞，直到有空位、ctx 结束或队列关闭。
func (q *MemoryQueue) Publish(ctx context.Context, rec Record) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- rec:
		return nil
	}
}

// Consume 启动指定数量的工作协程消费队列中的记录。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case rec, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handler(ctx, rec); err != nil {
						logger.L().Error("记录处理失败，已丢弃",
							slog.String("record_id", rec.ID),
							slog.String("tx_id", rec.TxID),
							slog.Any("error", err))
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close 关闭内存队列，消费者在取完剩余记录后退出。阻塞中的 Publish 会先被唤醒。
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		defer q.mu.Unlock()
		close(q.ch)
		q.closed = true
	})
	return nil
}
