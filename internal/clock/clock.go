package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for services that derive state from the current moment.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// NewRealClock returns a Clock backed by the system time in UTC.
func NewRealClock() Clock {
	return realClock{}
}

// Module wires the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewRealClock),
)
