// Package ratelimit gates request admission with fixed-window counters keyed
// by client address. Counters live in process memory by default, or in redis
// when the deployment shares limits across replicas.
package ratelimit

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"paperlens/internal/redis"
)

// Store counts hits for a key inside the current window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter rejects a key once it exceeds limit hits per window.
type Limiter struct {
	store   Store
	limit   int64
	window  time.Duration
	message string
}

func New(store Store, limit int64, window time.Duration, message string) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{store: store, limit: limit, window: window, message: message}
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}

// Middleware enforces the limit per client IP. A store failure admits the
// request rather than taking the endpoint down.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Printf("rate limit store error, admitting %s: %v", c.ClientIP(), err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": l.message})
			return
		}
		c.Next()
	}
}

type memoryEntry struct {
	count int64
	reset time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *memoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	if e == nil || now.After(e.reset) {
		e = &memoryEntry{reset: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	if len(s.entries) > 4096 {
		s.pruneLocked(now)
	}
	return e.count, nil
}

func (s *memoryStore) pruneLocked(now time.Time) {
	for key, e := range s.entries {
		if now.After(e.reset) {
			delete(s.entries, key)
		}
	}
}

type scopedStore struct {
	inner Store
	scope string
}

// NewScoped namespaces keys within a shared store so independent limiters
// never share counters.
func NewScoped(store Store, scope string) Store {
	return &scopedStore{inner: store, scope: scope}
}

func (s *scopedStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.inner.Incr(ctx, s.scope+":"+key, window)
}

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Store shared through redis.
func NewRedisStore(client *redis.Client, prefix string) Store {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.client.IncrWindow(ctx, s.prefix+":"+key, window)
}
