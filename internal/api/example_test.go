package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/randmov/internal/app"
	"github.com/JakeFAU/randmov/internal/qrng"
	"github.com/JakeFAU/randmov/internal/watchlist"
)

type exampleService struct{}

func (exampleService) Watchlist(context.Context, string) (watchlist.Listing, error) {
	return watchlist.Listing{}, nil
}

func (exampleService) Pick(context.Context, string, bool) (app.Selection, error) {
	return app.Selection{}, nil
}

func (exampleService) Sample(_ context.Context, upperBound int) (qrng.Result, error) {
	return qrng.Result{Value: upperBound, Circuit: qrng.Uniform(qrng.Width(upperBound)), Attempts: 1}, nil
}

func (exampleService) Details(context.Context, string, string) (app.EntryDetails, error) {
	return app.EntryDetails{}, app.ErrEntryNotFound
}

func (exampleService) Ready() bool { return true }

// ExampleServer_Handler shows how to serve a bounded sample.
func ExampleServer_Handler() {
	server := NewServer(exampleService{}, time.Second, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/sample?upper_bound=1", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	fmt.Println(rec.Code)
	// Output:
	// 200
}
