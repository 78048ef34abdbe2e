package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCatalogCacheRoundTrip(t *testing.T) {
	cache := NewCatalogCache(newTestDB(t))
	ctx := context.Background()

	_, _, ok, err := cache.Get(ctx, "2025-08-29")
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if ok {
		t.Fatalf("empty cache reported an entry")
	}

	before := time.Now().Add(-time.Second)
	if err := cache.Put(ctx, "2025-08-29", `[{"title":"x"}]`); err != nil {
		t.Fatalf("put: %v", err)
	}

	payload, fetchedAt, ok, err := cache.Get(ctx, "2025-08-29")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("entry missing after put")
	}
	if payload != `[{"title":"x"}]` {
		t.Fatalf("payload = %q", payload)
	}
	if fetchedAt.Before(before) || fetchedAt.After(time.Now().Add(time.Second)) {
		t.Fatalf("fetched_at %v outside the write window", fetchedAt)
	}
}

func TestCatalogCachePutReplaces(t *testing.T) {
	cache := NewCatalogCache(newTestDB(t))
	ctx := context.Background()

	cache.Put(ctx, "2025-08-29", `[]`)
	if err := cache.Put(ctx, "2025-08-29", `[{"title":"updated"}]`); err != nil {
		t.Fatalf("second put: %v", err)
	}

	payload, _, _, err := cache.Get(ctx, "2025-08-29")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payload != `[{"title":"updated"}]` {
		t.Fatalf("payload = %q, want the replaced value", payload)
	}

	var count int
	if err := cache.db.QueryRow(`SELECT COUNT(*) FROM paper_cache`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("replace left %d rows, want 1", count)
	}
}

func TestMigrateUnknownDriver(t *testing.T) {
	db := newTestDB(t)
	if err := Migrate(db, "postgres"); err == nil {
		t.Fatalf("expected an error for an unsupported driver")
	}
}

func TestNilCacheIsInert(t *testing.T) {
	var cache *CatalogCache
	ctx := context.Background()
	if err := cache.Put(ctx, "2025-08-29", `[]`); err != nil {
		t.Fatalf("nil cache put: %v", err)
	}
	_, _, ok, err := cache.Get(ctx, "2025-08-29")
	if err != nil || ok {
		t.Fatalf("nil cache get: ok=%v err=%v", ok, err)
	}
}
