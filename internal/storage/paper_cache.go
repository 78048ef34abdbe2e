package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CatalogCache stores one JSON-encoded day listing per date.
type CatalogCache struct {
	db *sql.DB
}

func NewCatalogCache(db *sql.DB) *CatalogCache {
	return &CatalogCache{db: db}
}

// Get returns the cached payload for a date, and when it was fetched.
// The boolean reports whether an entry exists.
func (c *CatalogCache) Get(ctx context.Context, date string) (string, time.Time, bool, error) {
	if c == nil || c.db == nil {
		return "", time.Time{}, false, nil
	}
	var (
		payload   string
		fetchedAt time.Time
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM paper_cache WHERE date = ?`, date).
		Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return payload, fetchedAt, true, nil
}

// Put upserts the payload for a date.
func (c *CatalogCache) Put(ctx context.Context, date, payload string) error {
	if c == nil || c.db == nil {
		return nil
	}
	_, err := c.db.ExecContext(ctx,
		`REPLACE INTO paper_cache (date, payload, fetched_at) VALUES (?, ?, ?)`,
		date, payload, time.Now().UTC())
	return err
}
