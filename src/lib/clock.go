package lib

import "github.com/jonboulle/clockwork"

var clock clockwork.Clock

// GetClock returns the process clock. Timestamps and expiry comparisons go
// through this so tests can install a fake.
func GetClock() clockwork.Clock {
	if clock != nil {
		return clock
	}
	clock = clockwork.NewRealClock()
	return clock
}

// NewClock replaces the process clock (tests).
func NewClock(c clockwork.Clock) clockwork.Clock {
	clock = c
	return clock
}
