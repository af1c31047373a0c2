// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/app"
	"github.com/JakeFAU/randmov/internal/config"
	"github.com/JakeFAU/randmov/internal/qrng"
	"github.com/JakeFAU/randmov/internal/watchlist"
)

// MockListingSource mocks the app.ListingSource interface.
type MockListingSource struct {
	mock.Mock
}

// Fetch satisfies the app.ListingSource interface for the mock.
func (m *MockListingSource) Fetch(ctx context.Context, user string) (watchlist.Listing, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(watchlist.Listing), args.Error(1)
}

// FetchDetails satisfies the app.ListingSource interface for the mock.
func (m *MockListingSource) FetchDetails(ctx context.Context, entry watchlist.Entry) (watchlist.Details, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(watchlist.Details), args.Error(1)
}

// MockSampler mocks the app.IndexSampler interface.
type MockSampler struct {
	mock.Mock
}

// SampleBounded satisfies the app.IndexSampler interface for the mock.
func (m *MockSampler) SampleBounded(ctx context.Context, upperBound int) (qrng.Result, error) {
	args := m.Called(ctx, upperBound)
	return args.Get(0).(qrng.Result), args.Error(1)
}

type fixedIDs struct{}

func (fixedIDs) NewID() (string, error) { return "sel-1", nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var pickedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func entries(names ...string) []watchlist.Entry {
	out := make([]watchlist.Entry, 0, len(names))
	for _, n := range names {
		out = append(out, watchlist.Entry{
			DisplayName:     n,
			DetailURL:       "https://boxd.test/film/" + n + "/",
			DetailsEndpoint: "https://boxd.test/film/" + n + "/json/",
		})
	}
	return out
}

func newTestApp(t *testing.T, listing *MockListingSource, sampler *MockSampler) *app.App {
	t.Helper()
	a, err := app.NewWithServices(app.Services{
		Listing: listing,
		Sampler: sampler,
		IDs:     fixedIDs{},
		Clock:   fixedClock{now: pickedAt},
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestPickSelectsSampledEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "cinephile").Return(watchlist.Listing{
		User:    "cinephile",
		Entries: entries("alien", "heat", "ran"),
	}, nil)
	sampler := &MockSampler{}
	sampler.On("SampleBounded", ctx, 2).Return(qrng.Result{Value: 1, Attempts: 2, Backend: "stub"}, nil)

	sel, err := newTestApp(t, listing, sampler).Pick(ctx, "cinephile", false)
	require.NoError(t, err)

	assert.Equal(t, "sel-1", sel.ID)
	assert.Equal(t, "heat", sel.Entry.DisplayName)
	assert.Equal(t, 1, sel.Index)
	assert.Equal(t, 3, sel.Total)
	assert.Equal(t, pickedAt, sel.PickedAt)
	assert.Nil(t, sel.Details)
	listing.AssertNotCalled(t, "FetchDetails", mock.Anything, mock.Anything)
	sampler.AssertExpectations(t)
}

func TestPickWithDetails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	es := entries("alien")
	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: es}, nil)
	listing.On("FetchDetails", ctx, es[0]).Return(watchlist.Details{Name: "Alien", ReleaseYear: 1979}, nil)
	sampler := &MockSampler{}
	sampler.On("SampleBounded", ctx, 0).Return(qrng.Result{Value: 0}, nil)

	sel, err := newTestApp(t, listing, sampler).Pick(ctx, "u", true)
	require.NoError(t, err)
	require.NotNil(t, sel.Details)
	assert.Equal(t, 1979, sel.Details.ReleaseYear)
}

func TestPickDetailsFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	es := entries("alien")
	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: es}, nil)
	listing.On("FetchDetails", ctx, es[0]).
		Return(watchlist.Details{}, &watchlist.StatusError{URL: es[0].DetailsEndpoint, StatusCode: 500})
	sampler := &MockSampler{}
	sampler.On("SampleBounded", ctx, 0).Return(qrng.Result{Value: 0}, nil)

	sel, err := newTestApp(t, listing, sampler).Pick(ctx, "u", true)
	require.NoError(t, err)
	assert.Nil(t, sel.Details)
}

func TestPickEmptyWatchlist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: []watchlist.Entry{}}, nil)
	sampler := &MockSampler{}

	_, err := newTestApp(t, listing, sampler).Pick(ctx, "u", false)
	require.ErrorIs(t, err, app.ErrEmptyWatchlist)
	sampler.AssertNotCalled(t, "SampleBounded", mock.Anything, mock.Anything)
}

func TestPickPropagatesErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	netErr := &watchlist.NetworkError{Page: 1, URL: "https://boxd.test/u/watchlist/page/1/", Err: errors.New("timeout")}
	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "down").Return(watchlist.Listing{}, netErr)
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: entries("a", "b")}, nil)
	sampler := &MockSampler{}
	sampler.On("SampleBounded", ctx, 1).Return(qrng.Result{}, qrng.ErrAttemptsExhausted)

	a := newTestApp(t, listing, sampler)

	_, err := a.Pick(ctx, "down", false)
	require.ErrorIs(t, err, watchlist.ErrNetworkFault)

	_, err = a.Pick(ctx, "u", false)
	require.ErrorIs(t, err, qrng.ErrInternalFault)
}

func TestPickRejectsOutOfRangeIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: entries("a", "b")}, nil)
	sampler := &MockSampler{}
	sampler.On("SampleBounded", ctx, 1).Return(qrng.Result{Value: 2}, nil)

	_, err := newTestApp(t, listing, sampler).Pick(ctx, "u", false)
	require.ErrorIs(t, err, qrng.ErrInternalFault)
}

func TestSample(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sampler := &MockSampler{}
	sampler.On("SampleBounded", ctx, 9).Return(qrng.Result{Value: 4}, nil)
	sampler.On("SampleBounded", ctx, -1).Return(qrng.Result{}, qrng.ErrNegativeBound)

	a := newTestApp(t, &MockListingSource{}, sampler)

	res, err := a.Sample(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Value)

	_, err = a.Sample(ctx, -1)
	require.ErrorIs(t, err, qrng.ErrNegativeBound)
}

func TestDetailsBySlug(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	es := entries("alien", "ran")
	es[0].Slug, es[1].Slug = "alien", "ran"
	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: es}, nil)
	listing.On("FetchDetails", ctx, es[1]).Return(watchlist.Details{Name: "Ran", ReleaseYear: 1985}, nil)

	a := newTestApp(t, listing, &MockSampler{})

	got, err := a.Details(ctx, "u", "ran")
	require.NoError(t, err)
	assert.Equal(t, es[1], got.Entry)
	assert.Equal(t, "Ran", got.Details.Name)

	_, err = a.Details(ctx, "u", "heat")
	require.ErrorIs(t, err, app.ErrEntryNotFound)

	_, err = a.Details(ctx, "u", " ")
	require.ErrorIs(t, err, app.ErrEntryNotFound)
	listing.AssertNumberOfCalls(t, "FetchDetails", 1)
}

func TestDetailsPropagatesErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	es := entries("alien")
	es[0].Slug = "alien"
	listing := &MockListingSource{}
	listing.On("Fetch", ctx, "u").Return(watchlist.Listing{User: "u", Entries: es}, nil)
	listing.On("FetchDetails", ctx, es[0]).Return(watchlist.Details{}, &watchlist.StatusError{StatusCode: 500})
	listing.On("Fetch", ctx, "down").Return(watchlist.Listing{}, &watchlist.NetworkError{Page: 1})

	a := newTestApp(t, listing, &MockSampler{})

	_, err := a.Details(ctx, "u", "alien")
	require.ErrorIs(t, err, watchlist.ErrDetailsUnavailable)

	_, err = a.Details(ctx, "down", "alien")
	require.ErrorIs(t, err, watchlist.ErrNetworkFault)
}

func TestCloseRunsClosersOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	a, err := app.NewWithServices(app.Services{
		Listing: &MockListingSource{},
		Sampler: &MockSampler{},
		Closers: []func(){func() { calls++ }},
	}, nil)
	require.NoError(t, err)
	require.True(t, a.Ready())

	a.Close()
	a.Close()
	assert.Equal(t, 1, calls)
	assert.False(t, a.Ready())
}

func TestNewWithServicesRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := app.NewWithServices(app.Services{Sampler: &MockSampler{}}, nil)
	require.Error(t, err)
	_, err = app.NewWithServices(app.Services{Listing: &MockListingSource{}}, nil)
	require.Error(t, err)
}

func TestNewEndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cinephile/watchlist/page/1/" {
			http.NotFound(w, r)
			return
		}
		var b strings.Builder
		b.WriteString(`<html><body><ul class="grid">`)
		for _, slug := range []string{"the-matrix", "heat", "alien"} {
			b.WriteString(`<li class="griditem"><div data-item-slug="` + slug + `" data-target-link="/film/` +
				slug + `/" data-details-endpoint="/film/` + slug + `/json/"></div></li>`)
		}
		b.WriteString(`</ul></body></html>`)
		_, _ = w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Listing.BaseURL = srv.URL
	cfg.Generator.Seed = 5

	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	listing, err := a.Watchlist(context.Background(), "cinephile")
	require.NoError(t, err)
	require.Len(t, listing.Entries, 3)
	assert.Equal(t, "The Matrix", listing.Entries[0].DisplayName)
	assert.Equal(t, srv.URL+"/film/the-matrix/", listing.Entries[0].DetailURL)

	sel, err := a.Pick(context.Background(), "cinephile", false)
	require.NoError(t, err)
	assert.Contains(t, []string{"The Matrix", "Heat", "Alien"}, sel.Entry.DisplayName)
	assert.Equal(t, 2, sel.Sample.Circuit.Qubits)
	assert.NotEmpty(t, sel.ID)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Generator.Backend = "ibmq"
	_, err := app.New(cfg, nil)
	require.Error(t, err)
}
