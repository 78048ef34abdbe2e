package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newClockedStore(start time.Time) (*memoryStore, *time.Time) {
	now := start
	s := &memoryStore{
		entries: make(map[string]*memoryEntry),
		now:     func() time.Time { return now },
	}
	return s, &now
}

func TestAllowUpToLimitThenReject(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	l := New(store, 10, time.Hour, "too many requests")

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		ok, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d within the limit was rejected", i+1)
		}
	}
	ok, err := l.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("11th request must be rejected")
	}
}

func TestWindowResetsCounter(t *testing.T) {
	start := time.Now()
	store, now := newClockedStore(start)
	l := New(store, 2, time.Minute, "slow down")

	ctx := context.Background()
	l.Allow(ctx, "k")
	l.Allow(ctx, "k")
	if ok, _ := l.Allow(ctx, "k"); ok {
		t.Fatalf("third request within the window must be rejected")
	}

	*now = start.Add(61 * time.Second)
	if ok, _ := l.Allow(ctx, "k"); !ok {
		t.Fatalf("counter must reset after the window elapses")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	l := New(store, 1, time.Hour, "slow down")

	ctx := context.Background()
	l.Allow(ctx, "1.2.3.4")
	if ok, _ := l.Allow(ctx, "5.6.7.8"); !ok {
		t.Fatalf("exhausting one key must not affect another")
	}
}

func TestScopedStoresDoNotCollide(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	general := New(NewScoped(store, "general"), 1, time.Hour, "slow down")
	strict := New(NewScoped(store, "interpret"), 1, time.Hour, "slow down")

	ctx := context.Background()
	general.Allow(ctx, "1.2.3.4")
	if ok, _ := strict.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatalf("a general-scope request must not consume the strict quota")
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestAllowFailsOpenOnStoreError(t *testing.T) {
	l := New(failingStore{}, 1, time.Hour, "slow down")
	ok, err := l.Allow(context.Background(), "k")
	if err == nil {
		t.Fatalf("expected the store error to be reported")
	}
	if !ok {
		t.Fatalf("a broken store must not block traffic")
	}
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _ := newClockedStore(time.Now())
	l := New(store, 1, time.Hour, "Too many requests, please try again later.")

	hits := 0
	r := gin.New()
	r.GET("/limited", l.Middleware(), func(c *gin.Context) {
		hits++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request: got %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d, want 429", w.Code)
	}
	if hits != 1 {
		t.Fatalf("handler ran %d times, want 1", hits)
	}
	if body := w.Body.String(); !strings.Contains(body, "Too many requests") {
		t.Fatalf("unexpected 429 body %q", body)
	}
}
