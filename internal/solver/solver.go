// Package solver listens for broadcast quote requests, prices them, and
// publishes responses on each requester's private bucket topic.
package solver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/bus"
	"github.com/ilayer-labs/rfq-exchange/internal/codec"
	"github.com/ilayer-labs/rfq-exchange/internal/identity"
	"github.com/ilayer-labs/rfq-exchange/internal/metrics"
	"github.com/ilayer-labs/rfq-exchange/internal/pricing"
)

// Buckets are 8 hex chars. Ours are lowercase, but casing is a peer's
// choice; the bucket is echoed verbatim into the response topic either way.
var bucketPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}$`)

// Solver is one quoting session. Its request handler mutates no shared state
// beyond emitting a publish, so the substrate may deliver requests
// concurrently without coordination.
type Solver struct {
	logger *zap.Logger
	bus    bus.Bus
	engine *pricing.Engine
	id     *identity.Identity

	requestTopic string
	subMgr       *bus.SubscriptionManager

	ctx context.Context
}

// New derives a fresh solver identity and wires the request listener.
func New(logger *zap.Logger, b bus.Bus, engine *pricing.Engine, retryDelay time.Duration) (*Solver, error) {
	id, err := identity.New()
	if err != nil {
		return nil, err
	}

	s := &Solver{
		logger:       logger,
		bus:          b,
		engine:       engine,
		id:           id,
		requestTopic: identity.RequestTopic(),
	}
	s.subMgr = bus.NewSubscriptionManager(logger, b, s.requestTopic, s.handleRequest, retryDelay)
	return s, nil
}

// SolverID returns the public key material echoed in responses.
func (s *Solver) SolverID() string {
	return s.id.PublicKeyHex()
}

// Start waits for the substrate and establishes the long-lived request
// listener. It returns once the listener is active.
func (s *Solver) Start(ctx context.Context) error {
	if err := s.bus.WaitForPeers(ctx); err != nil {
		return fmt.Errorf("wait for peers: %w", err)
	}

	s.ctx = ctx
	go s.subMgr.Run(ctx)
	if err := s.subMgr.AwaitSubscribed(ctx); err != nil {
		return fmt.Errorf("await request listener: %w", err)
	}

	s.logger.Info("solver.listening",
		zap.String("solver", s.SolverID()),
		zap.String("topic", s.requestTopic))
	return nil
}

// handleRequest runs once per broadcast request. Every failure is contained
// here: a bad message, a failed pricing pass, or a failed publish drops the
// request and leaves the subscription untouched.
func (s *Solver) handleRequest(data []byte) {
	req, err := codec.DecodeRequest(data)
	if err != nil {
		s.logger.Warn("solver.bad_request", zap.Error(err))
		metrics.IncMessage(s.requestTopic, "decode_error")
		return
	}

	if !bucketPattern.MatchString(req.Bucket) {
		s.logger.Warn("solver.invalid_bucket", zap.String("bucket", req.Bucket))
		metrics.IncMessage(s.requestTopic, "dropped")
		return
	}

	s.logger.Info("solver.request_received",
		zap.String("bucket", req.Bucket),
		zap.String("from_network", req.From.Network),
		zap.String("to_network", req.To.Network),
		zap.Int("to_tokens", len(req.To.Tokens)))

	resp, err := s.engine.Quote(s.ctx, req, s.SolverID())
	if err != nil {
		// Missing source price means "do not respond": the requester's
		// only failure signal is silence.
		if errors.Is(err, pricing.ErrMissingSourcePrice) {
			s.logger.Error("solver.request_dropped",
				zap.String("bucket", req.Bucket),
				zap.Error(err))
		} else {
			s.logger.Error("solver.pricing_failed",
				zap.String("bucket", req.Bucket),
				zap.Error(err))
		}
		metrics.IncMessage(s.requestTopic, "dropped")
		return
	}

	payload, err := codec.EncodeResponse(resp)
	if err != nil {
		s.logger.Error("solver.encode_failed",
			zap.String("bucket", req.Bucket),
			zap.Error(err))
		metrics.IncMessage(s.requestTopic, "dropped")
		return
	}

	topic := identity.ResponseTopic(req.Bucket)
	if err := s.bus.PublishTransient(s.ctx, topic, payload); err != nil {
		s.logger.Error("solver.publish_failed",
			zap.String("topic", topic),
			zap.Error(err))
		metrics.IncMessage(s.requestTopic, "dropped")
		return
	}

	metrics.IncMessage(s.requestTopic, "ok")
	s.logger.Info("solver.response_published",
		zap.String("bucket", req.Bucket),
		zap.String("topic", topic))
}
