package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process Cache used when redis is unavailable and in
// tests. Pattern deletion only supports the prefix globs ("prefix*") the
// key builders produce.
type MemoryCache struct {
	c  *gocache.Cache
	mu sync.Mutex // serializes IncrWithTTL's check-then-set
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		c: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	if x, found := m.c.Get(key); found {
		switch v := x.(type) {
		case string:
			return v, true, nil
		default:
			// Counters are stored as int64; render them the way redis would.
			return fmt.Sprintf("%v", v), true, nil
		}
	}
	return "", false, nil
}

func (m *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

func (m *MemoryCache) DelPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.c.Items() {
		if strings.HasPrefix(k, prefix) {
			m.c.Delete(k)
		}
	}
	return nil
}

func (m *MemoryCache) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.c.Get(key); !found {
		m.c.Set(key, int64(0), ttl)
	}
	n, err := m.c.IncrementInt64(key, 1)
	if err != nil {
		return 0, err
	}
	return n, nil
}
