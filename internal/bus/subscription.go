package bus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/metrics"
)

// SubscriptionManager keeps one long-lived listener alive on one topic.
//
// It is a two-state machine: unsubscribed until the substrate accepts the
// subscription, then subscribed until the context is canceled. A failed
// subscribe attempt is retried forever on a fixed delay; the substrate is
// expected to recover eventually, so a transient failure is never fatal.
// Handler errors do not feed back into the state machine: a bad message is
// the handler's problem, the subscription stays up.
type SubscriptionManager struct {
	logger     *zap.Logger
	bus        Bus
	topic      string
	handler    Handler
	retryDelay time.Duration

	mu         sync.Mutex
	sub        Subscription
	subscribed chan struct{}
	once       sync.Once
}

// NewSubscriptionManager wires a manager for one topic and handler.
func NewSubscriptionManager(logger *zap.Logger, b Bus, topic string, h Handler, retryDelay time.Duration) *SubscriptionManager {
	return &SubscriptionManager{
		logger:     logger,
		bus:        b,
		topic:      topic,
		handler:    h,
		retryDelay: retryDelay,
		subscribed: make(chan struct{}),
	}
}

// Run drives the subscribe/retry loop until ctx is canceled. Callers run it
// on its own goroutine and cancel the context to shut down cleanly; no timer
// survives cancellation.
func (m *SubscriptionManager) Run(ctx context.Context) {
	for {
		sub, err := m.bus.Subscribe(m.topic, m.handler)
		if err != nil {
			m.logger.Warn("bus.subscribe_retry",
				zap.String("topic", m.topic),
				zap.Duration("retry_in", m.retryDelay),
				zap.Error(err))
			metrics.IncSubscribeRetry(m.topic)

			select {
			case <-time.After(m.retryDelay):
				continue
			case <-ctx.Done():
				return
			}
		}

		m.mu.Lock()
		m.sub = sub
		m.mu.Unlock()
		m.once.Do(func() { close(m.subscribed) })

		m.logger.Info("bus.subscribed", zap.String("topic", m.topic))

		<-ctx.Done()

		m.mu.Lock()
		m.sub = nil
		m.mu.Unlock()
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Warn("bus.unsubscribe_failed",
				zap.String("topic", m.topic),
				zap.Error(err))
		}
		return
	}
}

// Subscribed reports whether the listener is currently established.
func (m *SubscriptionManager) Subscribed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub != nil
}

// AwaitSubscribed blocks until the first successful subscription or ctx
// cancellation. Requesters use it to guarantee the response listener is
// active before any request is sent.
func (m *SubscriptionManager) AwaitSubscribed(ctx context.Context) error {
	select {
	case <-m.subscribed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
