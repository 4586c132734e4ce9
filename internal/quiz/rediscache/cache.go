// Package rediscache shares the active mock-test list across service
// replicas through Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"quiz-engine/internal/platform/logger"
	"quiz-engine/internal/quiz"
)

const defaultKey = "quiz:catalog:mock-tests"

var _ quiz.CatalogCache = (*CatalogCache)(nil)

type CatalogCache struct {
	rdb *goredis.Client
	log *logger.Logger
	key string
	ttl time.Duration
}

// Dial connects to addr and pings it before returning.
func Dial(addr string, ttl time.Duration, log *logger.Logger) (*CatalogCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, ttl, log), nil
}

func New(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) *CatalogCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &CatalogCache{
		rdb: rdb,
		log: log.With("component", "rediscache"),
		key: defaultKey,
		ttl: ttl,
	}
}

// WithKey returns a copy that stores under key. Tests use it to isolate runs.
func (c *CatalogCache) WithKey(key string) *CatalogCache {
	clone := *c
	clone.key = key
	return &clone
}

func (c *CatalogCache) GetMockTests(ctx context.Context) ([]quiz.MockTest, bool) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("catalog cache read failed", "error", err)
		return nil, false
	}

	var mockTests []quiz.MockTest
	if err := json.Unmarshal(raw, &mockTests); err != nil {
		c.log.Warn("catalog cache entry corrupt", "error", err)
		return nil, false
	}
	// Active is not serialized; only active tests are ever cached.
	for idx := range mockTests {
		mockTests[idx].Active = true
	}
	return mockTests, true
}

func (c *CatalogCache) SetMockTests(ctx context.Context, mockTests []quiz.MockTest) {
	if c.ttl <= 0 {
		return
	}
	if mockTests == nil {
		mockTests = []quiz.MockTest{}
	}
	raw, err := json.Marshal(mockTests)
	if err != nil {
		c.log.Warn("catalog cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", "error", err)
	}
}

func (c *CatalogCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		c.log.Warn("catalog cache invalidate failed", "error", err)
	}
}

func (c *CatalogCache) Close() error {
	return c.rdb.Close()
}
