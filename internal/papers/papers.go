// Package papers proxies the HuggingFace daily-papers catalog, mapping its
// listing format onto the API's paper shape and caching fetched days.
package papers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"paperlens/internal/models"
	"paperlens/internal/storage"
)

const (
	defaultBaseURL = "https://huggingface.co/api"
	fetchTimeout   = 10 * time.Second

	// Today's listing keeps growing during the day, so its cache entry goes
	// stale; finished days are cached for good.
	todayCacheTTL = 15 * time.Minute
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// UpstreamError reports a non-success response from the catalog API.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("HuggingFace API error: %d", e.Status)
}

// UnreachableError reports a network failure reaching the catalog API.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return "network error: unable to reach HuggingFace API"
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Service fetches and caches day listings.
type Service struct {
	baseURL string
	client  *http.Client
	cache   *storage.CatalogCache
	now     func() time.Time
}

// NewService builds the catalog client. cache may be nil to disable caching.
func NewService(cache *storage.CatalogCache) *Service {
	return &Service{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: fetchTimeout},
		cache:   cache,
		now:     time.Now,
	}
}

// IsValidDate checks the YYYY-MM-DD format and that the date exists.
func IsValidDate(date string) bool {
	if !dateFormat.MatchString(date) {
		return false
	}
	parsed, err := time.Parse("2006-01-02", date)
	return err == nil && parsed.Format("2006-01-02") == date
}

// FetchDaily returns the papers listed for a date, from cache when the cached
// entry is still valid for that day.
func (s *Service) FetchDaily(ctx context.Context, date string) ([]models.Paper, error) {
	if cached, ok := s.fromCache(ctx, date); ok {
		return cached, nil
	}

	papers, err := s.fetchUpstream(ctx, date)
	if err != nil {
		return nil, err
	}
	s.store(ctx, date, papers)
	return papers, nil
}

func (s *Service) fromCache(ctx context.Context, date string) ([]models.Paper, bool) {
	if s.cache == nil {
		return nil, false
	}
	payload, fetchedAt, ok, err := s.cache.Get(ctx, date)
	if err != nil {
		log.Printf("paper cache read failed for %s: %v", date, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	today := s.now().Format("2006-01-02")
	if date >= today && s.now().Sub(fetchedAt) > todayCacheTTL {
		return nil, false
	}
	var papers []models.Paper
	if err := json.Unmarshal([]byte(payload), &papers); err != nil {
		log.Printf("paper cache decode failed for %s: %v", date, err)
		return nil, false
	}
	return papers, true
}

func (s *Service) store(ctx context.Context, date string, papers []models.Paper) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(papers)
	if err != nil {
		return
	}
	if err := s.cache.Put(ctx, date, string(payload)); err != nil {
		log.Printf("paper cache write failed for %s: %v", date, err)
	}
}

// listingEntry mirrors the daily_papers response item.
type listingEntry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Upvotes int    `json:"upvotes"`
	Paper   struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Upvotes int    `json:"upvotes"`
		Authors []struct {
			Name string `json:"name"`
			User *struct {
				Fullname string `json:"fullname"`
			} `json:"user"`
		} `json:"authors"`
		AIKeywords []string `json:"ai_keywords"`
	} `json:"paper"`
}

func (s *Service) fetchUpstream(ctx context.Context, date string) ([]models.Paper, error) {
	endpoint := fmt.Sprintf("%s/daily_papers?date=%s", s.baseURL, url.QueryEscape(date))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "paperlens/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &UnreachableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	var entries []listingEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("invalid response format from HuggingFace API: %w", err)
	}

	papers := make([]models.Paper, 0, len(entries))
	for _, entry := range entries {
		papers = append(papers, mapEntry(entry, date))
	}
	return papers, nil
}

func mapEntry(entry listingEntry, date string) models.Paper {
	title := entry.Title
	if title == "" {
		title = entry.Paper.Title
	}
	if title == "" {
		title = "Untitled"
	}
	abstract := entry.Summary
	if abstract == "" {
		abstract = entry.Paper.Summary
	}
	if abstract == "" {
		abstract = "No abstract available"
	}

	authors := make([]string, 0, len(entry.Paper.Authors))
	for _, author := range entry.Paper.Authors {
		switch {
		case author.Name != "":
			authors = append(authors, author.Name)
		case author.User != nil && author.User.Fullname != "":
			authors = append(authors, author.User.Fullname)
		}
	}

	var pdfURL string
	if entry.Paper.ID != "" {
		pdfURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", entry.Paper.ID)
	}

	topics := entry.Paper.AIKeywords
	if topics == nil {
		topics = []string{}
	}

	upvotes := entry.Paper.Upvotes
	if upvotes == 0 {
		upvotes = entry.Upvotes
	}

	return models.Paper{
		Title:         title,
		Authors:       authors,
		Abstract:      abstract,
		PDFURL:        pdfURL,
		Topics:        topics,
		PublishedDate: date,
		PaperID:       entry.Paper.ID,
		Upvotes:       upvotes,
	}
}
