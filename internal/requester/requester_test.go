package requester

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/bus"
	"github.com/ilayer-labs/rfq-exchange/internal/codec"
	"github.com/ilayer-labs/rfq-exchange/internal/identity"
	"github.com/ilayer-labs/rfq-exchange/pkg/model"
)

func newTestRequester(t *testing.T, mb *bus.MemoryBus, responseTimeout time.Duration) *Requester {
	t.Helper()
	r, err := New(zap.NewNop(), mb, 10*time.Millisecond, responseTimeout)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, r.Start(ctx))
	return r
}

func testResponse(solver string) *model.QuoteResponse {
	return &model.QuoteResponse{
		Solver: solver,
		From:   model.AmountSide{Network: "mainnet", Tokens: []model.TokenAmount{{Address: "0xAAA", Amount: 1000}}},
		To:     model.AmountSide{Network: "base", Tokens: []model.TokenAmount{{Address: "0xBBB", Amount: 150}}},
	}
}

func publishResponse(t *testing.T, mb *bus.MemoryBus, bucket string, resp *model.QuoteResponse) {
	t.Helper()
	data, err := codec.EncodeResponse(resp)
	require.NoError(t, err)
	require.NoError(t, mb.Publish(context.Background(), identity.ResponseTopic(bucket), data))
	mb.Flush()
}

func TestRequester_ListensBeforeSending(t *testing.T) {
	mb := bus.NewMemoryBus()
	r := newTestRequester(t, mb, 0)

	// A response arriving immediately after Start must be heard: the
	// listener is established before any request leaves the process.
	publishResponse(t, mb, r.Bucket(), testResponse("solver-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := r.AwaitResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "solver-1", resp.Solver)
}

func TestRequester_SendStampsBucket(t *testing.T) {
	mb := bus.NewMemoryBus()

	received := make(chan *model.QuoteRequest, 1)
	_, err := mb.Subscribe(identity.RequestTopic(), func(data []byte) {
		req, err := codec.DecodeRequest(data)
		if err == nil {
			received <- req
		}
	})
	require.NoError(t, err)

	r := newTestRequester(t, mb, 0)

	req := &model.QuoteRequest{
		From: model.WeightedSide{Network: "mainnet", Tokens: []model.TokenWeight{{Address: "0xAAA", Weight: 1000}}},
		To:   model.WeightedSide{Network: "base", Tokens: []model.TokenWeight{{Address: "0xBBB", Weight: 100}}},
	}
	require.NoError(t, r.SendRequest(context.Background(), req))
	mb.Flush()

	select {
	case got := <-received:
		assert.Equal(t, r.Bucket(), got.Bucket)
	case <-time.After(time.Second):
		t.Fatal("request never reached the broadcast topic")
	}
}

func TestRequester_ResponseHeldForLateWaiter(t *testing.T) {
	mb := bus.NewMemoryBus()
	r := newTestRequester(t, mb, 0)

	// Delivery logs the arrival but must not consume it: nothing besides
	// AwaitResponse reads the channel, so a response that lands before
	// anyone is waiting stays buffered for the eventual caller.
	publishResponse(t, mb, r.Bucket(), testResponse("solver-1"))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := r.AwaitResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "solver-1", resp.Solver)
}

func TestRequester_TimeoutYieldsErrNoResponse(t *testing.T) {
	mb := bus.NewMemoryBus()
	r := newTestRequester(t, mb, 30*time.Millisecond)

	_, err := r.AwaitResponse(context.Background())
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestRequester_MalformedResponseIsDropped(t *testing.T) {
	mb := bus.NewMemoryBus()
	r := newTestRequester(t, mb, 0)

	require.NoError(t, mb.Publish(context.Background(), identity.ResponseTopic(r.Bucket()), []byte("garbage")))
	mb.Flush()

	// The listener survives and the next valid response is delivered.
	publishResponse(t, mb, r.Bucket(), testResponse("solver-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := r.AwaitResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "solver-1", resp.Solver)
}

func TestRequester_FirstResponseWins(t *testing.T) {
	mb := bus.NewMemoryBus()
	r := newTestRequester(t, mb, 0)

	publishResponse(t, mb, r.Bucket(), testResponse("solver-1"))
	publishResponse(t, mb, r.Bucket(), testResponse("solver-2"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := r.AwaitResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "solver-1", resp.Solver)

	// The losing response was discarded, not queued.
	select {
	case extra := <-r.Responses():
		t.Fatalf("unexpected second response from %s", extra.Solver)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequester_BucketIsolation(t *testing.T) {
	mb := bus.NewMemoryBus()
	r1 := newTestRequester(t, mb, 0)
	r2 := newTestRequester(t, mb, 0)

	require.NotEqual(t, r1.Bucket(), r2.Bucket())

	publishResponse(t, mb, r1.Bucket(), testResponse("solver-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := r1.AwaitResponse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "solver-1", resp.Solver)

	select {
	case <-r2.Responses():
		t.Fatal("response leaked across buckets")
	case <-time.After(50 * time.Millisecond):
	}
}
