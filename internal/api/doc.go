// Package api hosts the HTTP server, middleware, and JSON handlers over a
// picking session. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/users/{user}/watchlist for the full listing.
//   - GET /v1/users/{user}/pick for one random entry, optionally with details.
//   - GET /v1/users/{user}/entries/{slug} for one entry's details.
//   - GET /v1/sample?upper_bound=N for a bare bounded sample.
package api
