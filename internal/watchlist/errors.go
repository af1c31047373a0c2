package watchlist

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyUser is returned when no user identifier is supplied.
	ErrEmptyUser = errors.New("user identifier is empty")
	// ErrNetworkFault marks transport-level failures (timeouts, DNS, refused connections).
	ErrNetworkFault = errors.New("could not fetch")
	// ErrMalformedEntry marks a listing container that lacks a required attribute.
	ErrMalformedEntry = errors.New("malformed listing entry")
	// ErrDetailsUnavailable marks a details endpoint that answered with a non-2xx status.
	ErrDetailsUnavailable = errors.New("details unavailable")
)

// NetworkError reports a transport failure while requesting a page.
type NetworkError struct {
	Page int
	URL  string
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("could not fetch page %d (%s): %v", e.Page, e.URL, e.Err)
	}
	return fmt.Sprintf("could not fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrNetworkFault.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkFault
}

// StatusError reports a non-2xx answer from a details endpoint.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("details unavailable: %s answered %d", e.URL, e.StatusCode)
}

// Is reports whether target is ErrDetailsUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == ErrDetailsUnavailable
}
