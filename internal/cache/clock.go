package cache

import "time"

// Clock stamps fetched_at on stored manifests and misses.
type Clock interface {
	Now() time.Time
}

// RealClock stamps entries with the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock stamps every entry with Time, so stored rows are predictable.
type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time { return c.Time }
