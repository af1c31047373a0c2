package watchlist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/metrics"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultBaseURL  = "https://letterboxd.com"
	DefaultPagePath = "/%s/watchlist/page/%d/"
	// DefaultUserAgent identifies as a desktop browser; the listing host rejects
	// unidentified clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Config controls how listing pages are addressed.
type Config struct {
	BaseURL   string
	PagePath  string
	UserAgent string
	// MaxPages caps iteration; 0 means no cap.
	MaxPages int
}

// Fetcher walks a watchlist page by page.
type Fetcher struct {
	cfg    Config
	base   *url.URL
	pages  PageFetcher
	retry  RetryPolicy
	pauser pauser
	logger *zap.Logger
}

// NewFetcher builds a Fetcher. retry may be nil to disable retries.
func NewFetcher(cfg Config, pages PageFetcher, retry RetryPolicy, logger *zap.Logger) (*Fetcher, error) {
	if pages == nil {
		return nil, errors.New("page fetcher is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PagePath == "" {
		cfg.PagePath = DefaultPagePath
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must be >= 0, got %d", cfg.MaxPages)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		base:   base,
		pages:  pages,
		retry:  retry,
		pauser: timerPauser{},
		logger: logger,
	}, nil
}

// FetchListing returns every entry of user's watchlist in page order, then
// document order.
func (f *Fetcher) FetchListing(ctx context.Context, user string) ([]Entry, error) {
	listing, err := f.Fetch(ctx, user)
	if err != nil {
		return nil, err
	}
	return listing.Entries, nil
}

// Fetch walks the watchlist starting at page 1 until a page answers with a
// non-2xx status or contains no item containers. Entries accumulated before a
// status stop are kept; a transport failure discards them and returns a
// *NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, user string) (Listing, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return Listing{}, ErrEmptyUser
	}
	logger := f.logger.With(zap.String("user", user))
	listing := Listing{User: user, Entries: []Entry{}}

	for page := 1; ; page++ {
		if f.cfg.MaxPages > 0 && page > f.cfg.MaxPages {
			listing.Stop = Stop{Reason: StopMaxPages, Page: page - 1}
			break
		}
		pageURL := f.pageURL(user, page)
		listing.Pages = page

		resp, err := f.fetchPage(ctx, page, pageURL)
		if err != nil {
			metrics.ObserveListingPage(pageURL, metrics.PageFailure, 0)
			logger.Warn("listing page fetch failed", zap.Int("page", page), zap.Error(err))
			return Listing{User: user}, err
		}
		if !isSuccess(resp.StatusCode) {
			metrics.ObserveListingPage(pageURL, metrics.PageStatus, len(resp.Body))
			logger.Debug("listing ended on status",
				zap.Int("page", page),
				zap.Int("status_code", resp.StatusCode),
			)
			listing.Stop = Stop{Reason: StopStatus, Page: page, StatusCode: resp.StatusCode}
			break
		}

		result, err := ParsePage(bytes.NewReader(resp.Body), f.base)
		if err != nil {
			return Listing{User: user}, fmt.Errorf("page %d: %w", page, err)
		}
		metrics.ObserveEntries(len(result.Entries), len(result.Skipped))
		for _, skipErr := range result.Skipped {
			logger.Debug("skipping listing container", zap.Int("page", page), zap.Error(skipErr))
		}
		if result.Containers == 0 {
			metrics.ObserveListingPage(pageURL, metrics.PageEmpty, len(resp.Body))
			listing.Stop = Stop{Reason: StopEmptyPage, Page: page}
			break
		}
		metrics.ObserveListingPage(pageURL, metrics.PageOK, len(resp.Body))
		listing.Entries = append(listing.Entries, result.Entries...)
	}

	logger.Info("listing fetched",
		zap.Int("entries", len(listing.Entries)),
		zap.Int("pages", listing.Pages),
		zap.String("stop", string(listing.Stop.Reason)),
	)
	return listing, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, page int, pageURL string) (FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return FetchResponse{}, &NetworkError{Page: page, URL: pageURL, Err: err}
		}
		resp, err := f.pages.Fetch(ctx, FetchRequest{URL: pageURL, Headers: f.headers()})
		if err != nil {
			return FetchResponse{}, &NetworkError{Page: page, URL: pageURL, Err: err}
		}
		if f.retry == nil || !f.retry.ShouldRetry(resp.StatusCode, attempt) {
			return resp, nil
		}
		delay := f.retry.Backoff(attempt)
		metrics.ObserveListingPage(pageURL, metrics.PageRetry, len(resp.Body))
		f.logger.Warn("transient listing status, retrying",
			zap.Int("page", page),
			zap.Int("status_code", resp.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
		)
		f.pauser.Pause(ctx, delay)
	}
}

func (f *Fetcher) pageURL(user string, page int) string {
	path := fmt.Sprintf(f.cfg.PagePath, url.PathEscape(user), page)
	return strings.TrimRight(f.base.String(), "/") + path
}

func (f *Fetcher) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", f.cfg.UserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}
