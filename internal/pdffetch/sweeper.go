package pdffetch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultSweepInterval = time.Hour

	// Files older than this are assumed orphaned by a missed cleanup.
	sweepMaxAge = time.Hour
)

// StartSweeper periodically removes scratch files older than one hour, as a
// backstop for cleanups missed on a crashed request.
func (d *Downloader) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go d.sweepLoop(ctx, interval)
}

func (d *Downloader) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.sweep(time.Now()); err != nil {
				log.Printf("sweep temp files error: %v", err)
			}
		}
	}
}

func (d *Downloader) sweep(now time.Time) error {
	entries, err := os.ReadDir(d.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > sweepMaxAge {
			path := filepath.Join(d.tempDir, entry.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("remove stale temp file %s failed: %v", path, err)
				continue
			}
			log.Printf("removed stale temp file: %s", entry.Name())
		}
	}
	return nil
}
