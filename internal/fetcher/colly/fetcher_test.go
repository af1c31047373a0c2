package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/randmov/internal/watchlist"
)

func TestNewAppliesConfig(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent"})
	require.Equal(t, "coverage-agent", f.baseCollector.UserAgent)
	require.True(t, f.baseCollector.IgnoreRobotsTxt)
	require.Equal(t, DefaultConnectTimeout, f.cfg.ConnectTimeout)
	require.Equal(t, DefaultReadTimeout, f.cfg.ReadTimeout)

	respecting := New(Config{RespectRobots: true})
	require.False(t, respecting.baseCollector.IgnoreRobotsTxt)
}

func TestBuildCollectorKeepsErrorResponses(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collector := f.buildCollector(watchlist.FetchRequest{}, time.Now(), &watchlist.FetchResponse{}, new(error))
	require.True(t, collector.ParseHTTPErrorResponse)
	require.True(t, collector.AllowURLRevisit)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	req := watchlist.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}, "User-Agent": {"override"}},
	}
	start := time.Unix(0, 0)
	var result watchlist.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{"User-Agent": {"colly"}}}
	hooks.onRequest(collyReq)
	require.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))
	require.Equal(t, []string{"override"}, collyReq.Headers.Values("User-Agent"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusNotFound,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	require.Equal(t, http.StatusNotFound, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(watchlist.FetchRequest{}, collyReq)
	require.Empty(t, *collyReq.Headers)
}

func TestFetchAgainstServer(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "randmov-test"})

	resp, err := f.Fetch(context.Background(), watchlist.FetchRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "<html>ok</html>", string(resp.Body))
	require.Equal(t, "randmov-test", gotUA.Load())

	// Repeat visits to the same URL must not be suppressed.
	_, err = f.Fetch(context.Background(), watchlist.FetchRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)

	resp, err = f.Fetch(context.Background(), watchlist.FetchRequest{URL: srv.URL + "/missing"})
	require.NoError(t, err, "a 404 is reported as a status, not an error")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchClosedServerIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := New(Config{ConnectTimeout: time.Second, ReadTimeout: time.Second})
	_, err := f.Fetch(context.Background(), watchlist.FetchRequest{URL: addr + "/page/1/"})
	require.Error(t, err)
}

func TestFetchReadTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := New(Config{ConnectTimeout: time.Second, ReadTimeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), watchlist.FetchRequest{URL: srv.URL})
	require.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	f := New(Config{})
	_, err := f.Fetch(ctx, watchlist.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
