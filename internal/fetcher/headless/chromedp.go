// Package headless renders listing pages in headless Chrome for profiles whose
// grid is populated client-side.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/randmov/internal/watchlist"
)

const defaultNavigationTimeout = 45 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay is how long to wait after the body is ready so poster
	// components can attach their data attributes. Zero snapshots immediately.
	SettleDelay time.Duration
}

// Fetcher implements watchlist.PageFetcher using chromedp and headless Chrome.
type Fetcher struct {
	cfg         Config
	slots       chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a headless fetcher backed by chromedp. Chrome is not started
// until the first Fetch.
func New(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts down the browser.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch renders request.URL and returns the DOM after the settle delay. The
// status is the one Chrome received for the listing document itself. A render
// that never produced a document response is a transport failure, not an
// empty page, so the listing walk reports it instead of stopping quietly.
func (f *Fetcher) Fetch(ctx context.Context, request watchlist.FetchRequest) (watchlist.FetchResponse, error) {
	if err := f.acquire(ctx); err != nil {
		return watchlist.FetchResponse{}, err
	}
	defer f.release()

	tabCtx, closeTab := chromedp.NewContext(f.allocator)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancel()

	doc := &documentRecorder{}
	chromedp.ListenTarget(tabCtx, doc.observe)

	start := time.Now()
	html, location, err := f.render(tabCtx, request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return watchlist.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, ctxErr)
		}
		return watchlist.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}
	resp, err := doc.response(location)
	if err != nil {
		return watchlist.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}

	return watchlist.FetchResponse{
		URL:        resp.url,
		StatusCode: resp.status,
		Headers:    resp.headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (f *Fetcher) render(ctx context.Context, request watchlist.FetchRequest) (html, location string, err error) {
	actions := []chromedp.Action{
		f.prepareTab(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(f.cfg.SettleDelay))
	}
	actions = append(actions,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, location, nil
}

// prepareTab enables network events and applies the request headers. The
// User-Agent goes through emulation so Chrome's own value is replaced.
func (f *Fetcher) prepareTab(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		userAgent := headers.Get("User-Agent")
		if userAgent == "" {
			userAgent = f.cfg.UserAgent
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if extra := extraHeaders(headers); len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.slots == nil {
		return nil
	}
	select {
	case f.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.slots != nil {
		<-f.slots
	}
}

// extraHeaders converts h for SetExtraHTTPHeaders, leaving out User-Agent.
func extraHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		if len(values) == 0 || http.CanonicalHeaderKey(key) == "User-Agent" {
			continue
		}
		// DevTools takes one string per header.
		out[key] = strings.Join(values, ", ")
	}
	return out
}
