package domain

import "time"

// Clock supplies the current time. Financial and access-control decisions
// must only ever read a server-side Clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
