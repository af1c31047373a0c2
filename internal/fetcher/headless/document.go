package headless

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/chromedp/cdproto/network"
)

var (
	// ErrNoDocument means Chrome finished rendering without ever receiving a
	// response for the page document.
	ErrNoDocument = errors.New("no document response")
	// ErrDocumentFailed means the page document failed to load.
	ErrDocumentFailed = errors.New("document load failed")
)

type documentResponse struct {
	status  int
	headers http.Header
	url     string
}

// documentRecorder watches network events for the tab's main document. The
// first document response belongs to the navigation; later ones come from
// iframes and are ignored.
type documentRecorder struct {
	mu        sync.Mutex
	requestID network.RequestID
	doc       *documentResponse
	failure   string
}

func (r *documentRecorder) observe(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		r.recordResponse(e)
	case *network.EventLoadingFailed:
		r.recordFailure(e)
	}
}

func (r *documentRecorder) recordResponse(e *network.EventResponseReceived) {
	if e.Type != network.ResourceTypeDocument || e.Response == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc != nil || r.failure != "" {
		return
	}
	r.requestID = e.RequestID
	r.doc = &documentResponse{
		status:  int(e.Response.Status),
		headers: httpHeader(e.Response.Headers),
		url:     e.Response.URL,
	}
}

func (r *documentRecorder) recordFailure(e *network.EventLoadingFailed) {
	if e.Type != network.ResourceTypeDocument {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.failure != "":
	case r.doc == nil, r.requestID == e.RequestID:
		r.failure = e.ErrorText
		if r.failure == "" {
			r.failure = "unknown error"
		}
	}
}

// response returns the recorded document, falling back to location for its URL.
func (r *documentRecorder) response(location string) (documentResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failure != "" {
		return documentResponse{}, fmt.Errorf("%w: %s", ErrDocumentFailed, r.failure)
	}
	if r.doc == nil || r.doc.status == 0 {
		return documentResponse{}, ErrNoDocument
	}
	resp := *r.doc
	if resp.url == "" {
		resp.url = location
	}
	return resp, nil
}

func httpHeader(h network.Headers) http.Header {
	out := http.Header{}
	for key, value := range h {
		switch v := value.(type) {
		case string:
			out.Add(key, v)
		case []any:
			for _, entry := range v {
				out.Add(key, fmt.Sprint(entry))
			}
		default:
			out.Add(key, fmt.Sprint(v))
		}
	}
	return out
}
