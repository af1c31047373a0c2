package watchlist

import (
	"net/http"
	"time"
)

// Entry is one film parsed out of a listing page.
type Entry struct {
	DisplayName     string `json:"display_name"`
	Slug            string `json:"slug"`
	DetailURL       string `json:"detail_url"`
	DetailsEndpoint string `json:"details_endpoint"`
	PosterURL       string `json:"poster_url,omitempty"`
}

// StopReason explains why page iteration ended.
type StopReason string

// Reasons a listing fetch stops without error.
const (
	StopEmptyPage StopReason = "empty_page"
	StopStatus    StopReason = "status"
	StopMaxPages  StopReason = "max_pages"
)

// Stop records the page that ended iteration.
type Stop struct {
	Reason     StopReason `json:"reason"`
	Page       int        `json:"page"`
	StatusCode int        `json:"status_code,omitempty"`
}

// Listing is the result of walking every page of a watchlist.
type Listing struct {
	User    string  `json:"user"`
	Entries []Entry `json:"entries"`
	Pages   int     `json:"pages"`
	Stop    Stop    `json:"stop"`
}

// Details is the structured metadata served by an entry's details endpoint.
type Details struct {
	Name           string   `json:"name"`
	ReleaseYear    int      `json:"release_year,omitempty"`
	RuntimeMinutes int      `json:"runtime_minutes,omitempty"`
	Directors      []string `json:"directors,omitempty"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a PageFetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
