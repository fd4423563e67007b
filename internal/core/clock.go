package core

import "time"

// Clock is the engine's source of time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock { return systemClock{} }
