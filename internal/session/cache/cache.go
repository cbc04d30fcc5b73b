// Package cache keeps recently validated session rows in process so the auth
// middleware does not hit the database on every request.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"carescope/backend/internal/session/domain"
)

// Loader reads a session row from durable storage.
type Loader interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
}

// Cache is a read-through, size- and TTL-bounded session cache.
type Cache struct {
	loader Loader
	lru    *expirable.LRU[string, *domain.Session]
}

// New returns a Cache in front of loader. size <= 0 disables caching.
func New(loader Loader, size int, ttl time.Duration) *Cache {
	c := &Cache{loader: loader}
	if size > 0 {
		c.lru = expirable.NewLRU[string, *domain.Session](size, nil, ttl)
	}
	return c
}

// Get returns the session for id, or nil if it does not exist. Only found rows are cached.
func (c *Cache) Get(ctx context.Context, id string) (*domain.Session, error) {
	if c.lru != nil {
		if s, ok := c.lru.Get(id); ok {
			return s, nil
		}
	}
	s, err := c.loader.GetByID(ctx, id)
	if err != nil || s == nil {
		return s, err
	}
	if c.lru != nil {
		c.lru.Add(id, s)
	}
	return s, nil
}

// Evict drops id so the next Get reloads it.
func (c *Cache) Evict(id string) {
	if c.lru != nil {
		c.lru.Remove(id)
	}
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
