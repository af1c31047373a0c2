package watchlist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakePage struct {
	status int
	body   string
	err    error
}

// fakePages serves canned responses keyed by URL and records every request.
type fakePages struct {
	mu       sync.Mutex
	pages    map[string][]fakePage
	requests []FetchRequest
}

func newFakePages() *fakePages {
	return &fakePages{pages: map[string][]fakePage{}}
}

// add queues responses for url; the last one repeats once the queue drains.
func (f *fakePages) add(url string, responses ...fakePage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = append(f.pages[url], responses...)
}

func (f *fakePages) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	queue, ok := f.pages[req.URL]
	if !ok || len(queue) == 0 {
		return FetchResponse{URL: req.URL, StatusCode: 404}, nil
	}
	next := queue[0]
	if len(queue) > 1 {
		f.pages[req.URL] = queue[1:]
	}
	if next.err != nil {
		return FetchResponse{}, next.err
	}
	return FetchResponse{URL: req.URL, StatusCode: next.status, Body: []byte(next.body)}, nil
}

func (f *fakePages) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.URL)
	}
	return out
}

type instantPauser struct {
	delays []time.Duration
}

func (p *instantPauser) Pause(_ context.Context, delay time.Duration) {
	p.delays = append(p.delays, delay)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

const testBase = "https://boxd.test"

func pageURL(user string, page int) string {
	return fmt.Sprintf("%s/%s/watchlist/page/%d/", testBase, user, page)
}

// film renders one grid item the way the listing host does.
func film(slug string) string {
	return fmt.Sprintf(`<li class="griditem"><div class="react-component" data-component-class="LazyPoster"`+
		` data-item-name="%[1]s" data-item-slug="%[1]s" data-target-link="/film/%[1]s/"`+
		` data-details-endpoint="/film/%[1]s/json/" data-poster-url="/film/%[1]s/image-150/"></div></li>`, slug)
}

func gridPage(items ...string) string {
	return `<html><body><section><ul class="grid -p125">` + strings.Join(items, "") +
		`</ul></section></body></html>`
}

func newTestFetcher(t *testing.T, pages PageFetcher, retry RetryPolicy) (*Fetcher, *instantPauser) {
	t.Helper()
	f, err := NewFetcher(Config{BaseURL: testBase}, pages, retry, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}
	p := &instantPauser{}
	f.pauser = p
	return f, p
}
