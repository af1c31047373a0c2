// Package watchlist walks a user's paginated watchlist one page at a time and
// turns the listing markup into ordered entries.
//
// Iteration ends normally when a page answers with a non-2xx status or holds no
// item containers. Transport failures end it abnormally with a *NetworkError so
// callers can tell "no watchlist" apart from "could not fetch".
package watchlist
