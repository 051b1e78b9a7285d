package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/metrics"
	"github.com/ilayer-labs/rfq-exchange/pkg/model"
)

// Fee bounds for the uniform per-token fee draw (0.1% - 1%).
const (
	feeMin = 0.001
	feeMax = 0.01
)

// ErrMissingSourcePrice means the feed knows no price for the source token.
// The whole quote fails: without a source valuation there is nothing to
// allocate, and the solver must stay silent rather than respond with zeros.
var ErrMissingSourcePrice = errors.New("pricing: missing source price")

// ErrNoSourceToken means the request carries no source token at all.
var ErrNoSourceToken = errors.New("pricing: request has no source token")

// Feed looks up spot prices for token addresses. Addresses without a known
// price are simply absent from the result; a missing price is "unknown",
// never zero.
type Feed interface {
	Lookup(ctx context.Context, addresses []string) ([]model.Price, error)
}

// FeeSource draws the fee fraction applied to one destination token.
type FeeSource func() float64

// Engine turns a weighted quote request plus external spot prices into
// priced response amounts. It holds no per-request state: Quote is safe to
// invoke concurrently.
type Engine struct {
	logger *zap.Logger
	feed   Feed
	fee    FeeSource
}

// Option customizes an Engine.
type Option func(*Engine)

// WithFeeSource overrides the fee draw (tests pin it to zero).
func WithFeeSource(fee FeeSource) Option {
	return func(e *Engine) { e.fee = fee }
}

// NewEngine constructs a pricing engine backed by the given price feed.
func NewEngine(logger *zap.Logger, feed Feed, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		feed:   feed,
		fee:    defaultFeeSource,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultFeeSource() float64 {
	return feeMin + rand.Float64()*(feeMax-feeMin)
}

// ExtractAddresses returns the union of all token addresses in the request:
// from-tokens first, then to-tokens, duplicates preserved.
func ExtractAddresses(req *model.QuoteRequest) []string {
	addrs := make([]string, 0, len(req.From.Tokens)+len(req.To.Tokens))
	for _, t := range req.From.Tokens {
		addrs = append(addrs, t.Address)
	}
	for _, t := range req.To.Tokens {
		addrs = append(addrs, t.Address)
	}
	return addrs
}

// Quote computes the priced response for a request.
//
// The first source token's weight is interpreted directly as an absolute
// quantity; destination weights are 0-100 percentage shares of the source
// value, each computed independently with no normalization across the list.
// Both sides of the protocol rely on that asymmetry.
func (e *Engine) Quote(ctx context.Context, req *model.QuoteRequest, solverID string) (*model.QuoteResponse, error) {
	if len(req.From.Tokens) == 0 {
		return nil, ErrNoSourceToken
	}

	prices, err := e.feed.Lookup(ctx, ExtractAddresses(req))
	if err != nil {
		metrics.IncPricingError("lookup_failed")
		return nil, fmt.Errorf("price lookup: %w", err)
	}

	priceOf := make(map[string]float64, len(prices))
	for _, p := range prices {
		priceOf[strings.ToLower(p.Address)] = p.Price
	}

	src := req.From.Tokens[0]
	srcPrice, ok := priceOf[strings.ToLower(src.Address)]
	if !ok {
		metrics.IncPricingError("missing_source_price")
		return nil, fmt.Errorf("%w: %s", ErrMissingSourcePrice, src.Address)
	}
	sourceValue := src.Weight * srcPrice

	resp := &model.QuoteResponse{
		Solver: solverID,
		From: model.AmountSide{
			Network: req.From.Network,
			Tokens:  make([]model.TokenAmount, 0, len(req.From.Tokens)),
		},
		To: model.AmountSide{
			Network: req.To.Network,
			Tokens:  make([]model.TokenAmount, 0, len(req.To.Tokens)),
		},
	}

	// Echo the source weights back as amounts, untouched.
	for _, t := range req.From.Tokens {
		resp.From.Tokens = append(resp.From.Tokens, model.TokenAmount{
			Address: t.Address,
			Amount:  t.Weight,
		})
	}

	for _, dst := range req.To.Tokens {
		dstPrice, ok := priceOf[strings.ToLower(dst.Address)]
		if !ok {
			// Non-fatal: one unpriced destination must not sink the quote.
			e.logger.Warn("pricing.missing_destination_price",
				zap.String("address", dst.Address),
				zap.String("network", req.To.Network))
			metrics.IncPricingError("missing_dest_price")
			resp.To.Tokens = append(resp.To.Tokens, model.TokenAmount{
				Address: dst.Address,
				Amount:  0,
			})
			continue
		}

		destValue := sourceValue * dst.Weight / 100
		quantity := destValue / dstPrice
		fee := e.fee()
		resp.To.Tokens = append(resp.To.Tokens, model.TokenAmount{
			Address: dst.Address,
			Amount:  quantity * (1 - fee),
		})
	}

	metrics.MarkQuoteComputed(time.Now())
	return resp, nil
}
