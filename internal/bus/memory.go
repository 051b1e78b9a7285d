package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus. It backs single-binary deployments and
// tests, delivering every published message asynchronously to all handlers
// subscribed on the topic at publish time.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]*memorySub
	wg       sync.WaitGroup
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]*memorySub),
	}
}

type memorySub struct {
	bus     *MemoryBus
	topic   string
	handler Handler
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.handlers[s.topic]
	for i, sub := range subs {
		if sub == s {
			s.bus.handlers[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	return nil
}

// Publish delivers data to every current subscriber of topic.
func (b *MemoryBus) Publish(_ context.Context, topic string, data []byte) error {
	b.mu.RLock()
	subs := make([]*memorySub, len(b.handlers[topic]))
	copy(subs, b.handlers[topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		h := sub.handler
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			h(data)
		}()
	}
	return nil
}

// PublishTransient behaves like Publish; there is no connection to dial.
func (b *MemoryBus) PublishTransient(ctx context.Context, topic string, data []byte) error {
	return b.Publish(ctx, topic, data)
}

// Subscribe registers a handler for one topic.
func (b *MemoryBus) Subscribe(topic string, h Handler) (Subscription, error) {
	sub := &memorySub{bus: b, topic: topic, handler: h}
	b.mu.Lock()
	b.handlers[topic] = append(b.handlers[topic], sub)
	b.mu.Unlock()
	return sub, nil
}

// WaitForPeers returns immediately; the process is its own peer.
func (b *MemoryBus) WaitForPeers(_ context.Context) error {
	return nil
}

// Flush waits for all in-flight deliveries to finish.
func (b *MemoryBus) Flush() {
	b.wg.Wait()
}
