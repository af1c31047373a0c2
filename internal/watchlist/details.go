package watchlist

import (
	"context"
	"encoding/json"
	"fmt"
)

type detailsPayload struct {
	Name        string `json:"name"`
	ReleaseYear int    `json:"releaseYear"`
	RunTime     int    `json:"runTime"`
	Directors   []struct {
		Name string `json:"name"`
	} `json:"directors"`
}

// FetchDetails requests entry's details endpoint and decodes the film metadata.
// It is never called while walking the listing.
func (f *Fetcher) FetchDetails(ctx context.Context, entry Entry) (Details, error) {
	if entry.DetailsEndpoint == "" {
		return Details{}, fmt.Errorf("%s: %w: no details endpoint", entry.DisplayName, ErrDetailsUnavailable)
	}
	headers := f.headers()
	headers.Set("Accept", "application/json")

	resp, err := f.pages.Fetch(ctx, FetchRequest{URL: entry.DetailsEndpoint, Headers: headers})
	if err != nil {
		return Details{}, &NetworkError{URL: entry.DetailsEndpoint, Err: err}
	}
	if !isSuccess(resp.StatusCode) {
		return Details{}, &StatusError{URL: entry.DetailsEndpoint, StatusCode: resp.StatusCode}
	}

	var payload detailsPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return Details{}, fmt.Errorf("decode details for %s: %w", entry.DisplayName, err)
	}
	details := Details{
		Name:           payload.Name,
		ReleaseYear:    payload.ReleaseYear,
		RuntimeMinutes: payload.RunTime,
	}
	if details.Name == "" {
		details.Name = entry.DisplayName
	}
	for _, d := range payload.Directors {
		if d.Name != "" {
			details.Directors = append(details.Directors, d.Name)
		}
	}
	return details, nil
}
