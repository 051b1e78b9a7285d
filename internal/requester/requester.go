// Package requester originates quote requests and privately listens for the
// bucket-scoped responses.
package requester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/bus"
	"github.com/ilayer-labs/rfq-exchange/internal/codec"
	"github.com/ilayer-labs/rfq-exchange/internal/identity"
	"github.com/ilayer-labs/rfq-exchange/internal/metrics"
	"github.com/ilayer-labs/rfq-exchange/pkg/model"
)

// ErrNoResponse means no solver answered within the configured timeout.
// It is distinct from any pricing failure: silence is the protocol's only
// failure signal, and the timeout is the caller's, not the protocol's.
var ErrNoResponse = errors.New("requester: no response within timeout")

// Requester is one RFQ session: a fresh identity, its bucket, and a
// long-lived listener on the bucket's response topic. The session bundle is
// immutable after New; nothing here mutates across requests.
type Requester struct {
	logger *zap.Logger
	bus    bus.Bus
	id     *identity.Identity
	bucket string

	requestTopic  string
	responseTopic string

	responseTimeout time.Duration
	subMgr          *bus.SubscriptionManager

	// Buffered to one: the first response wins, later arrivals are
	// logged and discarded.
	responses chan *model.QuoteResponse
}

// New derives a fresh session identity and its topic set.
func New(logger *zap.Logger, b bus.Bus, retryDelay, responseTimeout time.Duration) (*Requester, error) {
	id, err := identity.New()
	if err != nil {
		return nil, err
	}

	bucket := id.Bucket()
	r := &Requester{
		logger:          logger,
		bus:             b,
		id:              id,
		bucket:          bucket,
		requestTopic:    identity.RequestTopic(),
		responseTopic:   identity.ResponseTopic(bucket),
		responseTimeout: responseTimeout,
		responses:       make(chan *model.QuoteResponse, 1),
	}
	r.subMgr = bus.NewSubscriptionManager(logger, b, r.responseTopic, r.handleResponse, retryDelay)
	return r, nil
}

// Bucket returns the session's correlation bucket.
func (r *Requester) Bucket() string {
	return r.bucket
}

// Start waits for the substrate, then establishes the response listener.
// It returns only once the listener is active, so a fast solver cannot
// answer before the requester is able to hear it.
func (r *Requester) Start(ctx context.Context) error {
	if err := r.bus.WaitForPeers(ctx); err != nil {
		return fmt.Errorf("wait for peers: %w", err)
	}

	go r.subMgr.Run(ctx)
	if err := r.subMgr.AwaitSubscribed(ctx); err != nil {
		return fmt.Errorf("await response listener: %w", err)
	}

	r.logger.Info("requester.listening",
		zap.String("bucket", r.bucket),
		zap.String("topic", r.responseTopic))
	return nil
}

// SendRequest stamps the session bucket onto req and publishes it once on
// the well-known request topic. At-most-once: no acknowledgment, no retry.
// If no solver is listening the request is silently lost.
func (r *Requester) SendRequest(ctx context.Context, req *model.QuoteRequest) error {
	req.Bucket = r.bucket

	data, err := codec.EncodeRequest(req)
	if err != nil {
		return err
	}

	if err := r.bus.Publish(ctx, r.requestTopic, data); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}

	r.logger.Info("requester.request_sent",
		zap.String("bucket", r.bucket),
		zap.String("from_network", req.From.Network),
		zap.String("to_network", req.To.Network),
		zap.Int("to_tokens", len(req.To.Tokens)))
	return nil
}

// Responses exposes decoded quote responses as they arrive. It returns the
// same one-slot channel AwaitResponse reads; a second concurrent consumer
// would race the waiter for each delivery, so use one or the other.
func (r *Requester) Responses() <-chan *model.QuoteResponse {
	return r.responses
}

// AwaitResponse blocks for the next response, bounded by the configured
// timeout when one is set. Absence of a response is the only failure
// indicator the protocol provides; ErrNoResponse makes it explicit.
func (r *Requester) AwaitResponse(ctx context.Context) (*model.QuoteResponse, error) {
	if r.responseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.responseTimeout)
		defer cancel()
	}

	select {
	case resp := <-r.responses:
		return resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrNoResponse
		}
		return nil, ctx.Err()
	}
}

// handleResponse runs once per message on the bucket topic. Every failure is
// contained here; nothing may tear down the subscription.
func (r *Requester) handleResponse(data []byte) {
	resp, err := codec.DecodeResponse(data)
	if err != nil {
		r.logger.Warn("requester.bad_response",
			zap.String("bucket", r.bucket),
			zap.Error(err))
		metrics.IncMessage(r.responseTopic, "decode_error")
		return
	}

	select {
	case r.responses <- resp:
		metrics.IncMessage(r.responseTopic, "ok")
		r.logger.Info("requester.response_received",
			zap.String("bucket", r.bucket),
			zap.String("solver", resp.Solver),
			zap.Int("to_tokens", len(resp.To.Tokens)))
	default:
		// First response won; this one loses the race.
		metrics.IncMessage(r.responseTopic, "dropped")
		r.logger.Warn("requester.response_discarded",
			zap.String("bucket", r.bucket),
			zap.String("solver", resp.Solver))
	}
}
