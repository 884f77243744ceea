package realtime

import (
	"encoding/json"
	"sync"
)

// 批处理进度事件类型。
const (
	EventBatchStarted   = "batch_started"
	EventHostAnalyzed   = "host_analyzed"
	EventHostDropped    = "host_dropped"
	EventBatchCompleted = "batch_completed"
)

// Event 描述 SSE 推送时的消息载荷。
type Event struct {
	Type    string      `json:"type"`
	BatchID string      `json:"batchId,omitempty"`
	HostID  string      `json:"hostId,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Broker 负责向实时订阅者（SSE 客户端）分发事件。
type Broker struct {
	mu       sync.RWMutex
	clients  map[chan []byte]struct{}
	shutdown chan struct{}
	once     sync.Once
}

// NewBroker 创建一个新的 Broker 实例。
func NewBroker() *Broker {
	return &Broker{
		clients:  make(map[chan []byte]struct{}),
		shutdown: make(chan struct{}),
	}
}

// Subscribe 注册客户端通道并返回同时提供清理函数。
func (b *Broker) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 8)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	cleanup := func() {
		b.mu.Lock()
		if _, ok := b.clients[ch]; ok {
			delete(b.clients, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cleanup
}

// Publish 将事件广播给所有订阅者。
func (b *Broker) Publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- data:
		default:
			// 订阅者处理过慢则丢弃消息。
		}
	}
}

// Subscribers 返回当前订阅者数量。
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Done 在 Close 之后关闭，供长连接退出。
func (b *Broker) Done() <-chan struct{} {
	return b.shutdown
}

// Close 通知所有长连接退出，可重复调用。
func (b *Broker) Close() {
	b.once.Do(func() { close(b.shutdown) })
}
