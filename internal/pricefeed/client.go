// Package pricefeed looks up token spot prices from the external feed.
// Partial results are valid: an address the feed cannot price is omitted,
// never reported as zero.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/internal/rate"
	"github.com/ilayer-labs/rfq-exchange/pkg/model"
)

// priceResponse is the feed's wire shape. Prices arrive as decimal strings.
type priceResponse struct {
	Address string `json:"address"`
	Price   string `json:"price"`
}

// Client fetches spot prices over HTTP, one round trip per address.
// Lookups are independent, so total latency scales linearly with the number
// of distinct addresses; results are cached to keep repeat quotes cheap.
type Client struct {
	logger  *zap.Logger
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
	cache   Cache
}

// NewClient constructs a price feed client.
func NewClient(logger *zap.Logger, baseURL, apiKey string, limiter *rate.Limiter, cache Cache) *Client {
	return &Client{
		logger:  logger,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		cache:   cache,
	}
}

// Lookup resolves prices for the given addresses. Addresses the feed does
// not know, or whose round trip fails, are absent from the result; a network
// failure for one address never aborts the batch.
func (c *Client) Lookup(ctx context.Context, addresses []string) ([]model.Price, error) {
	out := make([]model.Price, 0, len(addresses))
	for _, addr := range addresses {
		if price, ok := c.cache.Get(addr); ok {
			out = append(out, model.Price{Address: addr, Price: price})
			continue
		}

		price, err := c.fetchOne(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("pricefeed.lookup_failed",
				zap.String("address", addr),
				zap.Error(err))
			continue
		}

		c.cache.Put(addr, price)
		out = append(out, model.Price{Address: addr, Price: price})
	}
	return out, nil
}

func (c *Client) fetchOne(ctx context.Context, address string) (float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	url := c.baseURL + "/v1/prices/" + address
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("no price for %s", address)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed returned %d for %s", resp.StatusCode, address)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("decode price for %s: %w", address, err)
	}

	d, err := decimal.NewFromString(pr.Price)
	if err != nil {
		return 0, fmt.Errorf("parse price %q for %s: %w", pr.Price, address, err)
	}
	return d.InexactFloat64(), nil
}
