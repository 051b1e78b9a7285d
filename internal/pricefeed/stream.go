package pricefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// tick is one streamed price update.
type tick struct {
	Address string `json:"address"`
	Price   string `json:"price"`
}

// Stream consumes a websocket feed of price ticks and keeps the cache warm,
// so most Lookup calls never leave the process. It is an optimization layer:
// losing the stream only degrades lookups back to HTTP round trips.
type Stream struct {
	logger         *zap.Logger
	url            string
	cache          Cache
	reconnectDelay time.Duration
}

// NewStream constructs a price tick stream writing into cache.
func NewStream(logger *zap.Logger, url string, cache Cache) *Stream {
	return &Stream{
		logger:         logger,
		url:            url,
		cache:          cache,
		reconnectDelay: 5 * time.Second,
	}
}

// Run connects and consumes ticks until ctx is canceled, reconnecting on a
// fixed delay after any failure.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("pricefeed.stream_disconnected",
				zap.String("url", s.url),
				zap.Duration("reconnect_in", s.reconnectDelay),
				zap.Error(err))
		}

		select {
		case <-time.After(s.reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.Info("pricefeed.stream_connected", zap.String("url", s.url))

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var tk tick
		if err := json.Unmarshal(message, &tk); err != nil {
			s.logger.Debug("pricefeed.bad_tick", zap.Error(err))
			continue
		}

		d, err := decimal.NewFromString(tk.Price)
		if err != nil {
			s.logger.Debug("pricefeed.bad_tick_price",
				zap.String("address", tk.Address),
				zap.String("price", tk.Price))
			continue
		}

		s.cache.Put(tk.Address, d.InexactFloat64())
	}
}
