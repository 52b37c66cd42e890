package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultWindowStart is the first day the station was sampled.
var DefaultWindowStart = time.Date(2020, time.May, 1, 0, 0, 0, 0, time.UTC)

// DefaultWindow spans from start to today according to clock.
func DefaultWindow(clock clockwork.Clock, start time.Time) DateWindow {
	return NewDateWindow(start, clock.Now())
}
