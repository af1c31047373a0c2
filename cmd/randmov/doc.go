// Package main hosts the randmov command.
//
// randmov fetches a movie watchlist page by page and picks one entry uniformly
// at random, drawing the index from a simulated quantum circuit (or from
// crypto/rand with generator.backend=classical).
//
// Usage:
//
//	randmov [-config file] pick -user NAME [-details]
//	randmov [-config file] list -user NAME
//	randmov [-config file] details -user NAME -slug SLUG
//	randmov [-config file] sample -bound N
//	randmov [-config file] serve
//
// Commands:
//   - pick: prints the chosen entry and the circuit that chose it.
//   - list: prints every entry of the watchlist in page order.
//   - details: prints the metadata of one watchlist entry.
//   - sample: draws a value in [0, N] without fetching anything.
//   - serve: runs the HTTP API (internal/api) until SIGINT or SIGTERM, then
//     drains in-flight requests.
//
// Configuration comes from an optional YAML file and RANDMOV_* environment
// variables, e.g. RANDMOV_GENERATOR_BACKEND=classical or
// RANDMOV_LISTING_MAX_PAGES=20. The serve command also honors PORT.
package main
