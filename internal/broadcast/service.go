package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber is one presentation-layer consumer of the live feed.
type Subscriber struct {
	ID string
	Ch chan []byte
}

// Service fans encoded telemetry samples out to subscribers. Slow consumers
// lose messages instead of blocking the publisher.
type Service struct {
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
	bufferSize  int
	metrics     *Metrics
	closed      bool
}

type Metrics struct {
	SubscriberCount   int
	MessagesSent      int64
	DroppedMessages   int64
	LastBroadcastTime time.Time
	mu                sync.RWMutex
}

func NewService(bufferSize int) *Service {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Service{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		metrics:     &Metrics{},
	}
}

func (b *Service) Subscribe() (string, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan []byte, b.bufferSize)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = &Subscriber{ID: id, Ch: ch}

	b.metrics.mu.Lock()
	b.metrics.SubscriberCount++
	b.metrics.mu.Unlock()

	return id, ch
}

func (b *Service) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, exists := b.subscribers[id]; exists {
		close(sub.Ch)
		delete(b.subscribers, id)

		b.metrics.mu.Lock()
		b.metrics.SubscriberCount--
		b.metrics.mu.Unlock()
	}
}

func (b *Service) Publish(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.metrics.mu.Lock()
	b.metrics.LastBroadcastTime = time.Now()
	b.metrics.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Ch <- msg:
			b.metrics.mu.Lock()
			b.metrics.MessagesSent++
			b.metrics.mu.Unlock()
		default:
			// Channel buffer is full, drop message for this subscriber
			b.metrics.mu.Lock()
			b.metrics.DroppedMessages++
			b.metrics.mu.Unlock()
		}
	}
}

func (b *Service) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Ch)
	}
	b.subscribers = make(map[string]*Subscriber)
}

func (b *Service) GetMetrics() Metrics {
	b.metrics.mu.RLock()
	defer b.metrics.mu.RUnlock()
	return Metrics{
		SubscriberCount:   b.metrics.SubscriberCount,
		MessagesSent:      b.metrics.MessagesSent,
		DroppedMessages:   b.metrics.DroppedMessages,
		LastBroadcastTime: b.metrics.LastBroadcastTime,
	}
}
