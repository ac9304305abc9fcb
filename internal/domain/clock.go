package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// It stamps composed alerts; cycle-level "now" is passed in by the caller.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for alert composition. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
