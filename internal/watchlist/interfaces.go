package watchlist

import (
	"context"
	"time"
)

// PageFetcher fetches a URL and returns the body plus metadata.
// Implementations return an error only for transport failures; any HTTP status,
// including 4xx and 5xx, is reported through FetchResponse.StatusCode.
type PageFetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RetryPolicy decides whether a page answering with status should be requested again.
type RetryPolicy interface {
	ShouldRetry(status int, attempt int) bool
	Backoff(attempt int) time.Duration
}

// pauser abstracts how the fetcher waits between retries.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
