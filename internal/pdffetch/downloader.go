// Package pdffetch downloads paper PDFs from allow-listed hosts into a local
// scratch directory, enforcing a hard size ceiling on the bytes actually
// received.
package pdffetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxPDFBytes is the hard ceiling on a downloaded document.
	MaxPDFBytes = 100 << 20 // 100 MiB

	downloadTimeout = 30 * time.Second
	userAgent       = "paperlens/1.0"
)

var defaultAllowedHosts = []string{"arxiv.org", "www.arxiv.org", "export.arxiv.org"}

// ValidationError reports a URL rejected before any network or filesystem
// side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// TransportError reports a download that failed after validation passed.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download failed: %v", e.Err)
	}
	return fmt.Sprintf("download failed: unexpected status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SizeLimitError reports a document larger than the ceiling, whether declared
// up front or discovered mid-transfer.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("pdf too large (max %d MB)", e.Limit>>20)
}

// Downloader fetches validated PDFs into its scratch directory.
type Downloader struct {
	tempDir  string
	client   *http.Client
	allowed  map[string]struct{}
	maxBytes int64
}

func New(tempDir string) *Downloader {
	allowed := make(map[string]struct{}, len(defaultAllowedHosts))
	for _, host := range defaultAllowedHosts {
		allowed[host] = struct{}{}
	}
	return &Downloader{
		tempDir:  tempDir,
		client:   &http.Client{Timeout: downloadTimeout},
		allowed:  allowed,
		maxBytes: MaxPDFBytes,
	}
}

// TempDir returns the scratch directory path.
func (d *Downloader) TempDir() string { return d.tempDir }

// ValidateURL checks the URL shape before any side effect: http(s) scheme,
// allow-listed host, .pdf path suffix.
func (d *Downloader) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return &ValidationError{Reason: "pdf_url is required"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Reason: "invalid pdf url"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Reason: "pdf url must use http or https"}
	}
	if _, ok := d.allowed[strings.ToLower(u.Hostname())]; !ok {
		return &ValidationError{Reason: "only arxiv.org PDFs are supported"}
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return &ValidationError{Reason: "url must point to a .pdf document"}
	}
	return nil
}

// Download validates the URL, then streams the document to a uniquely named
// file in the scratch directory. Any failure after the file is opened removes
// the partial file before the error is returned.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	if err := d.ValidateURL(rawURL); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &ValidationError{Reason: "invalid pdf url"}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Status: resp.StatusCode}
	}
	if resp.ContentLength > d.maxBytes {
		return "", &SizeLimitError{Limit: d.maxBytes}
	}

	path := filepath.Join(d.tempDir, fmt.Sprintf("paper_%s.pdf", uuid.NewString()))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	// The declared length cannot be trusted; count what actually arrives and
	// abort mid-transfer once the ceiling is crossed.
	written, err := io.Copy(file, io.LimitReader(resp.Body, d.maxBytes+1))
	closeErr := file.Close()
	switch {
	case err != nil:
		d.Remove(path)
		return "", &TransportError{Err: err}
	case written > d.maxBytes:
		d.Remove(path)
		return "", &SizeLimitError{Limit: d.maxBytes}
	case closeErr != nil:
		d.Remove(path)
		return "", fmt.Errorf("write temp file: %w", closeErr)
	}

	return path, nil
}

// Remove deletes a downloaded file; a file already gone is not an error.
func (d *Downloader) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("remove temp file %s failed: %v", path, err)
	}
}
