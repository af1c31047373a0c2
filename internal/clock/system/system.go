// Package system provides the wall clock used to stamp selections.
package system

import "time"

// Precision is the resolution of selection timestamps. picked_at is rendered
// with millisecond precision, so anything finer would not survive a round trip.
const Precision = time.Millisecond

// Clock implements app.Clock. Times are in UTC and truncated to Precision.
type Clock struct {
	now func() time.Time
}

// New returns a Clock reading time.Now.
func New() *Clock {
	return &Clock{now: time.Now}
}

// Now returns the current UTC time truncated to Precision.
func (c *Clock) Now() time.Time {
	now := time.Now
	if c != nil && c.now != nil {
		now = c.now
	}
	return now().UTC().Truncate(Precision)
}
