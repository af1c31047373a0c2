// Package app holds the long-lived services behind one picking session: the
// watchlist fetcher, the random index sampler and the id/clock helpers.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/clock/system"
	"github.com/JakeFAU/randmov/internal/config"
	collyfetcher "github.com/JakeFAU/randmov/internal/fetcher/colly"
	"github.com/JakeFAU/randmov/internal/fetcher/headless"
	"github.com/JakeFAU/randmov/internal/id/uuid"
	"github.com/JakeFAU/randmov/internal/qrng"
	"github.com/JakeFAU/randmov/internal/watchlist"
)

// ErrEmptyWatchlist is returned by Pick when the listing has no entries.
var ErrEmptyWatchlist = errors.New("no entries found")

// ErrEntryNotFound is returned by Details when the slug is not on the watchlist.
var ErrEntryNotFound = errors.New("entry not found")

// ListingSource fetches watchlists and per-entry details.
type ListingSource interface {
	Fetch(ctx context.Context, user string) (watchlist.Listing, error)
	FetchDetails(ctx context.Context, entry watchlist.Entry) (watchlist.Details, error)
}

// IndexSampler draws a uniform integer in [0, upperBound].
type IndexSampler interface {
	SampleBounded(ctx context.Context, upperBound int) (qrng.Result, error)
}

// IDGenerator produces selection identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Selection is one randomly chosen watchlist entry.
type Selection struct {
	ID       string             `json:"id"`
	User     string             `json:"user"`
	Index    int                `json:"index"`
	Total    int                `json:"total"`
	Entry    watchlist.Entry    `json:"entry"`
	Sample   qrng.Result        `json:"sample"`
	PickedAt time.Time          `json:"picked_at"`
	Details  *watchlist.Details `json:"details,omitempty"`
}

// Services are the collaborators an App composes.
type Services struct {
	Listing ListingSource
	Sampler IndexSampler
	IDs     IDGenerator
	Clock   Clock
	// Closers run in order on Close.
	Closers []func()
}

// App holds all the shared, long-lived services for one session. It is built
// once at startup, passed to the CLI or API, and closed on exit.
type App struct {
	logger  *zap.Logger
	listing ListingSource
	sampler IndexSampler
	ids     IDGenerator
	clock   Clock
	closers []func()
	closed  atomic.Bool
}

// New builds the fetcher, sampler and helpers described by cfg.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("initializing application services",
		zap.Bool("headless", cfg.Headless.Enabled),
		zap.String("backend", cfg.Generator.Backend),
	)

	var (
		pages   watchlist.PageFetcher
		closers []func()
	)
	if cfg.Headless.Enabled {
		hf, err := headless.New(headlessConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		pages = hf
		closers = append(closers, hf.Close)
	} else {
		pages = collyfetcher.New(collyfetcher.Config{
			UserAgent:      cfg.HTTP.UserAgent,
			RespectRobots:  cfg.HTTP.RespectRobots,
			ConnectTimeout: cfg.ConnectTimeout(),
			ReadTimeout:    cfg.ReadTimeout(),
		})
	}

	var retry watchlist.RetryPolicy
	if cfg.HTTP.MaxRetries > 0 {
		initial, maxDelay := cfg.Backoff()
		retry = watchlist.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, initial, maxDelay)
	}
	fetcher, err := watchlist.NewFetcher(watchlist.Config{
		BaseURL:   cfg.Listing.BaseURL,
		PagePath:  cfg.Listing.PagePath,
		UserAgent: cfg.HTTP.UserAgent,
		MaxPages:  cfg.Listing.MaxPages,
	}, pages, retry, logger.Named("watchlist"))
	if err != nil {
		runClosers(closers)
		return nil, fmt.Errorf("init watchlist fetcher: %w", err)
	}

	backend, err := qrng.NewBackend(cfg.Generator.Backend, cfg.Generator.Seed)
	if err != nil {
		runClosers(closers)
		return nil, fmt.Errorf("init generator backend: %w", err)
	}
	sampler, err := qrng.New(backend,
		qrng.WithMaxAttempts(cfg.Generator.MaxAttempts),
		qrng.WithLogger(logger.Named("qrng")),
	)
	if err != nil {
		runClosers(closers)
		return nil, fmt.Errorf("init sampler: %w", err)
	}

	return NewWithServices(Services{
		Listing: fetcher,
		Sampler: sampler,
		IDs:     uuid.New(),
		Clock:   system.New(),
		Closers: closers,
	}, logger)
}

func headlessConfig(cfg config.Config) headless.Config {
	return headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.HTTP.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		SettleDelay:       cfg.SettleDelay(),
	}
}

// NewWithServices builds an App from already constructed collaborators.
func NewWithServices(s Services, logger *zap.Logger) (*App, error) {
	if s.Listing == nil {
		return nil, errors.New("listing source is required")
	}
	if s.Sampler == nil {
		return nil, errors.New("sampler is required")
	}
	if s.IDs == nil {
		s.IDs = uuid.New()
	}
	if s.Clock == nil {
		s.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger:  logger,
		listing: s.Listing,
		sampler: s.Sampler,
		ids:     s.IDs,
		clock:   s.Clock,
		closers: s.Closers,
	}, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Ready reports whether the App can serve requests.
func (a *App) Ready() bool {
	return !a.closed.Load()
}

// Watchlist fetches every entry of user's watchlist.
func (a *App) Watchlist(ctx context.Context, user string) (watchlist.Listing, error) {
	listing, err := a.listing.Fetch(ctx, user)
	if err != nil {
		return watchlist.Listing{}, fmt.Errorf("fetch watchlist for %q: %w", user, err)
	}
	return listing, nil
}

// Pick fetches user's watchlist and selects one entry uniformly at random.
// With withDetails the entry's metadata is fetched too; a details failure is
// logged and leaves Selection.Details nil.
func (a *App) Pick(ctx context.Context, user string, withDetails bool) (Selection, error) {
	listing, err := a.Watchlist(ctx, user)
	if err != nil {
		return Selection{}, err
	}
	total := len(listing.Entries)
	if total == 0 {
		return Selection{}, fmt.Errorf("watchlist for %q: %w", user, ErrEmptyWatchlist)
	}

	sample, err := a.sampler.SampleBounded(ctx, total-1)
	if err != nil {
		return Selection{}, fmt.Errorf("sample index: %w", err)
	}
	if sample.Value < 0 || sample.Value >= total {
		return Selection{}, fmt.Errorf("%w: index %d outside [0, %d)", qrng.ErrInternalFault, sample.Value, total)
	}
	id, err := a.ids.NewID()
	if err != nil {
		return Selection{}, fmt.Errorf("selection id: %w", err)
	}

	sel := Selection{
		ID:       id,
		User:     listing.User,
		Index:    sample.Value,
		Total:    total,
		Entry:    listing.Entries[sample.Value],
		Sample:   sample,
		PickedAt: a.clock.Now(),
	}
	if withDetails {
		details, err := a.listing.FetchDetails(ctx, sel.Entry)
		if err != nil {
			a.logger.Warn("details unavailable",
				zap.String("selection_id", sel.ID),
				zap.String("endpoint", sel.Entry.DetailsEndpoint),
				zap.Error(err),
			)
		} else {
			sel.Details = &details
		}
	}

	a.logger.Info("picked entry",
		zap.String("selection_id", sel.ID),
		zap.String("user", sel.User),
		zap.String("entry", sel.Entry.DisplayName),
		zap.Int("index", sel.Index),
		zap.Int("total", sel.Total),
		zap.Int("attempts", sample.Attempts),
		zap.String("backend", sample.Backend),
	)
	return sel, nil
}

// Sample draws a value in [0, upperBound] without touching any watchlist.
func (a *App) Sample(ctx context.Context, upperBound int) (qrng.Result, error) {
	res, err := a.sampler.SampleBounded(ctx, upperBound)
	if err != nil {
		return qrng.Result{}, fmt.Errorf("sample: %w", err)
	}
	return res, nil
}

// EntryDetails pairs a watchlist entry with its fetched metadata.
type EntryDetails struct {
	Entry   watchlist.Entry   `json:"entry"`
	Details watchlist.Details `json:"details"`
}

// Details looks up slug in user's watchlist and fetches that entry's metadata.
// A slug not on the watchlist yields ErrEntryNotFound.
func (a *App) Details(ctx context.Context, user, slug string) (EntryDetails, error) {
	if strings.TrimSpace(slug) == "" {
		return EntryDetails{}, fmt.Errorf("%w: empty slug", ErrEntryNotFound)
	}
	listing, err := a.Watchlist(ctx, user)
	if err != nil {
		return EntryDetails{}, err
	}
	idx := slices.IndexFunc(listing.Entries, func(e watchlist.Entry) bool { return e.Slug == slug })
	if idx < 0 {
		return EntryDetails{}, fmt.Errorf("%q in watchlist for %q: %w", slug, user, ErrEntryNotFound)
	}
	entry := listing.Entries[idx]
	details, err := a.listing.FetchDetails(ctx, entry)
	if err != nil {
		return EntryDetails{}, fmt.Errorf("fetch details for %q: %w", slug, err)
	}
	return EntryDetails{Entry: entry, Details: details}, nil
}

// Close releases the headless browser, if any, and flushes the logger. It is
// safe to call more than once.
func (a *App) Close() {
	if !a.closed.CompareAndSwap(false, true) {
		return
	}
	a.logger.Info("shutting down application services")
	runClosers(a.closers)
	// Syncing stderr fails on some platforms; there is nowhere left to report it.
	_ = a.logger.Sync()
}

func runClosers(closers []func()) {
	for _, c := range closers {
		c()
	}
}
