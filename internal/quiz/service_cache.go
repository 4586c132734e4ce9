package quiz

import (
	"context"
	"sync"
	"time"
)

// CatalogCache holds the active mock-test list between reads. Misses are
// reported as ok=false, never as errors.
type CatalogCache interface {
	GetMockTests(ctx context.Context) ([]MockTest, bool)
	SetMockTests(ctx context.Context, mockTests []MockTest)
	Invalidate(ctx context.Context)
}

type MemoryCatalogCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	mockTests []MockTest
	expiresAt time.Time
}

func NewMemoryCatalogCache(ttl time.Duration) *MemoryCatalogCache {
	return &MemoryCatalogCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCatalogCache) GetMockTests(_ context.Context) ([]MockTest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mockTests == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	// Copy so callers cannot mutate cached state.
	out := make([]MockTest, len(c.mockTests))
	copy(out, c.mockTests)
	return out, true
}

func (c *MemoryCatalogCache) SetMockTests(_ context.Context, mockTests []MockTest) {
	if c.ttl <= 0 {
		return
	}
	stored := make([]MockTest, len(mockTests))
	copy(stored, mockTests)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mockTests = stored
	c.expiresAt = c.now().Add(c.ttl)
}

func (c *MemoryCatalogCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mockTests = nil
}

func (s *Service) listMockTestsCached(ctx context.Context) ([]MockTest, error) {
	if s.catalog != nil {
		if cached, ok := s.catalog.GetMockTests(ctx); ok {
			return cached, nil
		}
	}

	mockTests, err := s.bank.ListActiveMockTests(ctx)
	if err != nil {
		return nil, err
	}
	if s.catalog != nil {
		s.catalog.SetMockTests(ctx, mockTests)
	}
	return mockTests, nil
}
