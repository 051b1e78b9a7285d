package pricefeed

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ilayer-labs/rfq-exchange/pkg/cache"
)

// Cache holds recently looked-up prices keyed by token address
// (case-insensitive). A miss means "unknown", never zero.
type Cache interface {
	Get(address string) (float64, bool)
	Put(address string, price float64)
}

// MemoryCache is the default single-process price cache.
type MemoryCache struct {
	ttl *cache.TTL[float64]
}

// NewMemoryCache creates an in-memory price cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: cache.New[float64](ttl)}
}

func (c *MemoryCache) Get(address string) (float64, bool) {
	return c.ttl.Get(strings.ToLower(address))
}

func (c *MemoryCache) Put(address string, price float64) {
	c.ttl.Put(strings.ToLower(address), price)
}

// StartCleaner periodically evicts expired prices until stop is closed.
func (c *MemoryCache) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	c.ttl.StartCleaner(interval, stop)
}

// RedisCache shares one price cache across solver replicas.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed price cache.
func NewRedisCache(addr, pass string, db int, ttl time.Duration, logger *zap.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger}
}

func priceKey(address string) string {
	return "price:" + strings.ToLower(address)
}

func (c *RedisCache) Get(address string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	val, err := c.rdb.Get(ctx, priceKey(address)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("pricecache.redis_get_failed",
				zap.String("address", address),
				zap.Error(err))
		}
		return 0, false
	}

	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func (c *RedisCache) Put(address string, price float64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	val := strconv.FormatFloat(price, 'f', -1, 64)
	if err := c.rdb.Set(ctx, priceKey(address), val, c.ttl).Err(); err != nil {
		c.logger.Warn("pricecache.redis_set_failed",
			zap.String("address", address),
			zap.Error(err))
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
