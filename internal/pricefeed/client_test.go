package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// priceServer serves GET /v1/prices/{address} from a fixed table and counts hits.
func priceServer(t *testing.T, table map[string]string, hits *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		addr := strings.TrimPrefix(r.URL.Path, "/v1/prices/")
		price, ok := table[addr]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"address": addr, "price": price})
	}))
}

func TestLookup_PartialResults(t *testing.T) {
	var hits int64
	server := priceServer(t, map[string]string{"0xAAA": "1.5", "0xCCC": "5"}, &hits)
	defer server.Close()

	c := NewClient(zap.NewNop(), server.URL, "", nil, NewMemoryCache(time.Minute))

	prices, err := c.Lookup(context.Background(), []string{"0xAAA", "0xBBB", "0xCCC"})
	require.NoError(t, err)

	// 0xBBB is unknown: omitted, not zero.
	require.Len(t, prices, 2)
	assert.Equal(t, "0xAAA", prices[0].Address)
	assert.Equal(t, 1.5, prices[0].Price)
	assert.Equal(t, "0xCCC", prices[1].Address)
	assert.Equal(t, 5.0, prices[1].Price)
}

func TestLookup_ServerErrorsAreOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(zap.NewNop(), server.URL, "", nil, NewMemoryCache(time.Minute))

	prices, err := c.Lookup(context.Background(), []string{"0xAAA", "0xBBB"})
	require.NoError(t, err, "per-address failures must not abort the batch")
	assert.Empty(t, prices)
}

func TestLookup_CacheAvoidsRepeatRoundTrips(t *testing.T) {
	var hits int64
	server := priceServer(t, map[string]string{"0xAAA": "2"}, &hits)
	defer server.Close()

	c := NewClient(zap.NewNop(), server.URL, "", nil, NewMemoryCache(time.Minute))

	_, err := c.Lookup(context.Background(), []string{"0xAAA"})
	require.NoError(t, err)
	_, err = c.Lookup(context.Background(), []string{"0xAAA"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestLookup_CacheIsCaseInsensitive(t *testing.T) {
	var hits int64
	server := priceServer(t, map[string]string{"0xAAA": "2"}, &hits)
	defer server.Close()

	c := NewClient(zap.NewNop(), server.URL, "", nil, NewMemoryCache(time.Minute))

	_, err := c.Lookup(context.Background(), []string{"0xAAA"})
	require.NoError(t, err)

	prices, err := c.Lookup(context.Background(), []string{"0xaaa"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 2.0, prices[0].Price)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestLookup_SendsAPIKey(t *testing.T) {
	var gotKey atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"address": "0xAAA", "price": "1"})
	}))
	defer server.Close()

	c := NewClient(zap.NewNop(), server.URL, "sekrit", nil, NewMemoryCache(time.Minute))

	_, err := c.Lookup(context.Background(), []string{"0xAAA"})
	require.NoError(t, err)
	assert.Equal(t, "sekrit", gotKey.Load())
}

func TestLookup_ContextCancellationPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := NewClient(zap.NewNop(), server.URL, "", nil, NewMemoryCache(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Lookup(ctx, []string{"0xAAA"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
