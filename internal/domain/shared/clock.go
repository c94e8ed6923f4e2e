package shared

import "time"

// Clock abstracts the current time so that TTL and due-date rules are testable
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time { return f() }
