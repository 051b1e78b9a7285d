// Package bus wraps the broadcast substrate behind the three operations the
// protocol core is allowed to use: publish, subscribe, and wait-for-peers.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/metrics"
)

// Handler is invoked once per received message. The substrate may deliver
// concurrently, so handlers must be safe for concurrent invocation.
type Handler func(data []byte)

// Subscription is a live listener on one topic.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the messaging substrate contract. The core never inspects the
// substrate beyond these operations.
type Bus interface {
	// Publish sends one message on the long-lived connection.
	Publish(ctx context.Context, topic string, data []byte) error

	// PublishTransient dials a short-lived, independently owned connection,
	// publishes once, and tears the connection down.
	PublishTransient(ctx context.Context, topic string, data []byte) error

	// Subscribe registers a handler for one topic.
	Subscribe(topic string, h Handler) (Subscription, error)

	// WaitForPeers blocks until at least one peer is reachable.
	WaitForPeers(ctx context.Context) error
}

// NATSBus implements Bus on a NATS connection. Canonical slash-form topic
// strings are used verbatim as subjects: the topic string is the wire
// contract, the substrate does not reinterpret it.
type NATSBus struct {
	nc     *nats.Conn
	url    string
	name   string
	logger *zap.Logger
}

// Connect establishes the long-lived listening connection.
func Connect(url, name string, logger *zap.Logger) (*NATSBus, error) {
	nc, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc, url: url, name: name, logger: logger}, nil
}

// Publish sends one message on the persistent connection.
func (b *NATSBus) Publish(ctx context.Context, topic string, data []byte) error {
	start := time.Now()
	if err := b.nc.Publish(topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", topic, err)
	}
	metrics.ObservePublish(topic, start)
	return nil
}

// PublishTransient dials a fresh connection for a single send. Responses use
// this path so a solver never holds a second long-lived connection open.
func (b *NATSBus) PublishTransient(ctx context.Context, topic string, data []byte) error {
	start := time.Now()
	nc, err := nats.Connect(b.url, nats.Name(b.name+"-transient"))
	if err != nil {
		return fmt.Errorf("dial transient connection: %w", err)
	}
	defer nc.Close()

	if err := nc.Publish(topic, data); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if err := nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", topic, err)
	}
	metrics.ObservePublish(topic, start)
	return nil
}

// Subscribe registers a handler for one topic.
func (b *NATSBus) Subscribe(topic string, h Handler) (Subscription, error) {
	sub, err := b.nc.Subscribe(topic, func(msg *nats.Msg) {
		h(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return sub, nil
}

// WaitForPeers blocks until the server answers a round trip.
func (b *NATSBus) WaitForPeers(ctx context.Context) error {
	for {
		if b.nc.IsConnected() {
			if err := b.nc.FlushWithContext(ctx); err == nil {
				return nil
			}
		}
		b.logger.Debug("bus.waiting_for_peers", zap.String("url", b.url))
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HealthCheck verifies the substrate connection with a bounded round trip.
func (b *NATSBus) HealthCheck(ctx context.Context) error {
	if b.nc == nil || !b.nc.IsConnected() {
		return fmt.Errorf("nats disconnected")
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush failed: %w", err)
	}
	return nil
}

// Close drains the persistent connection.
func (b *NATSBus) Close() {
	if b.nc != nil && b.nc.IsConnected() {
		if err := b.nc.Drain(); err != nil {
			b.logger.Warn("bus.drain_failed", zap.Error(err))
		}
	}
}
