package pdffetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	d := New(t.TempDir())
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"arxiv pdf", "https://arxiv.org/pdf/2509.19803.pdf", true},
		{"www host", "https://www.arxiv.org/pdf/2509.19803.pdf", true},
		{"export host", "http://export.arxiv.org/pdf/2509.19803.pdf", true},
		{"uppercase suffix", "https://arxiv.org/pdf/2509.19803.PDF", true},
		{"empty", "", false},
		{"disallowed host", "https://evil.example.com/x.pdf", false},
		{"host with arxiv substring", "https://arxiv.org.evil.com/x.pdf", false},
		{"not a pdf", "https://arxiv.org/abs/2509.19803", false},
		{"bad scheme", "ftp://arxiv.org/pdf/x.pdf", false},
		{"no host", "/pdf/x.pdf", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.ValidateURL(tc.url)
			if tc.ok && err != nil {
				t.Fatalf("expected %s to validate, got %v", tc.url, err)
			}
			if !tc.ok {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected validation error for %s, got %v", tc.url, err)
				}
			}
		})
	}
}

func TestDownloadRejectsBeforeSideEffects(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	tempDir := filepath.Join(t.TempDir(), "scratch")
	d := newTestDownloader(t, tempDir, srv)

	if _, err := d.Download(context.Background(), "https://evil.example.com/x.pdf"); err == nil {
		t.Fatalf("expected validation failure")
	}
	if hits != 0 {
		t.Fatalf("expected no network request, saw %d", hits)
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir untouched, stat err: %v", err)
	}
}

func TestDownloadWritesUniqueFiles(t *testing.T) {
	body := []byte("%PDF-1.5 fake content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	d := newTestDownloader(t, t.TempDir(), srv)

	first, err := d.Download(context.Background(), srv.URL+"/paper.pdf")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	second, err := d.Download(context.Background(), srv.URL+"/paper.pdf")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if first == second {
		t.Fatalf("expected unique artifact names, both %s", first)
	}
	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("artifact content mismatch")
	}
}

func TestDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	d := newTestDownloader(t, tempDir, srv)

	_, err := d.Download(context.Background(), srv.URL+"/missing.pdf")
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Status != http.StatusNotFound {
		t.Fatalf("expected transport error with 404, got %v", err)
	}
	assertScratchEmpty(t, tempDir)
}

func TestDownloadDeclaredSizeTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte("x"), 4096))
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	d := newTestDownloader(t, tempDir, srv)
	d.maxBytes = 1024

	_, err := d.Download(context.Background(), srv.URL+"/big.pdf")
	var serr *SizeLimitError
	if !errors.As(err, &serr) {
		t.Fatalf("expected size limit error, got %v", err)
	}
	assertScratchEmpty(t, tempDir)
}

func TestDownloadAbortsMidTransferWithoutContentLength(t *testing.T) {
	// Chunked response with no declared length that keeps growing past the
	// ceiling: the byte-counted check has to abort and purge the partial file.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		chunk := bytes.Repeat([]byte("y"), 256)
		for i := 0; i < 16; i++ {
			w.Write(chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	d := newTestDownloader(t, tempDir, srv)
	d.maxBytes = 1024

	_, err := d.Download(context.Background(), srv.URL+"/endless.pdf")
	var serr *SizeLimitError
	if !errors.As(err, &serr) {
		t.Fatalf("expected size limit error, got %v", err)
	}
	assertScratchEmpty(t, tempDir)
}

func TestRemoveToleratesMissingFile(t *testing.T) {
	d := New(t.TempDir())
	d.Remove(filepath.Join(d.TempDir(), "already-gone.pdf"))
	d.Remove("")
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	tempDir := t.TempDir()
	d := New(tempDir)

	stale := filepath.Join(tempDir, "paper_old.pdf")
	fresh := filepath.Join(tempDir, "paper_new.pdf")
	for _, path := range []string{stale, fresh} {
		if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := d.sweep(time.Now()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh file kept: %v", err)
	}
}

func TestSweepMissingDirIsNotAnError(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "never-created"))
	if err := d.sweep(time.Now()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

// newTestDownloader allows the test server's host so Download can run against
// httptest endpoints.
func newTestDownloader(t *testing.T, tempDir string, srv *httptest.Server) *Downloader {
	t.Helper()
	d := New(tempDir)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	d.allowed[u.Hostname()] = struct{}{}
	return d
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, found %d", len(entries))
	}
}
