package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyBus fails the first n Subscribe calls, then delegates to a MemoryBus.
type flakyBus struct {
	*MemoryBus
	failures int32
}

func (b *flakyBus) Subscribe(topic string, h Handler) (Subscription, error) {
	if atomic.AddInt32(&b.failures, -1) >= 0 {
		return nil, assert.AnError
	}
	return b.MemoryBus.Subscribe(topic, h)
}

func TestSubscriptionManager_SubscribesImmediately(t *testing.T) {
	mb := NewMemoryBus()
	var got atomic.Int32
	mgr := NewSubscriptionManager(zap.NewNop(), mb, "/iLayer/1/rfq/proto", func([]byte) {
		got.Add(1)
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	require.NoError(t, mgr.AwaitSubscribed(context.Background()))
	assert.True(t, mgr.Subscribed())

	require.NoError(t, mb.Publish(context.Background(), "/iLayer/1/rfq/proto", []byte("msg")))
	mb.Flush()
	assert.Equal(t, int32(1), got.Load())
}

func TestSubscriptionManager_RetriesUntilSuccess(t *testing.T) {
	fb := &flakyBus{MemoryBus: NewMemoryBus(), failures: 2}
	var got atomic.Int32
	mgr := NewSubscriptionManager(zap.NewNop(), fb, "topic", func([]byte) {
		got.Add(1)
	}, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, mgr.AwaitSubscribed(waitCtx), "manager should recover after transient failures")

	// Exactly one live subscription: one publish, one delivery.
	require.NoError(t, fb.Publish(context.Background(), "topic", []byte("msg")))
	fb.Flush()
	assert.Equal(t, int32(1), got.Load())
}

func TestSubscriptionManager_CancelDuringRetry(t *testing.T) {
	fb := &flakyBus{MemoryBus: NewMemoryBus(), failures: 1 << 30}
	mgr := NewSubscriptionManager(zap.NewNop(), fb, "topic", func([]byte) {}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation; retry timer leaked")
	}
	assert.False(t, mgr.Subscribed())
}

func TestSubscriptionManager_UnsubscribesOnCancel(t *testing.T) {
	mb := NewMemoryBus()
	var got atomic.Int32
	mgr := NewSubscriptionManager(zap.NewNop(), mb, "topic", func([]byte) {
		got.Add(1)
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()
	require.NoError(t, mgr.AwaitSubscribed(context.Background()))

	cancel()
	<-done

	require.NoError(t, mb.Publish(context.Background(), "topic", []byte("msg")))
	mb.Flush()
	assert.Equal(t, int32(0), got.Load(), "no delivery after teardown")
}

func TestMemoryBus_TopicPartitioning(t *testing.T) {
	mb := NewMemoryBus()
	var a, b atomic.Int32

	_, err := mb.Subscribe("/iLayer/1/aaaa1111/proto", func([]byte) { a.Add(1) })
	require.NoError(t, err)
	_, err = mb.Subscribe("/iLayer/1/bbbb2222/proto", func([]byte) { b.Add(1) })
	require.NoError(t, err)

	require.NoError(t, mb.Publish(context.Background(), "/iLayer/1/aaaa1111/proto", []byte("x")))
	mb.Flush()

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(0), b.Load())
}
