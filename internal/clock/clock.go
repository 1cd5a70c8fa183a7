// Package clock provides an abstraction for time operations to improve testability,
// and the derivation of signature timestamps from wall-clock time.
//
// Instead of calling time.Now() directly, code uses the Clock interface which
// can be replaced in tests to control time-dependent behavior.
package clock

import (
	"time"

	"github.com/mrz1836/mavsign/internal/constants"
)

// Clock is an interface for time operations.
// Implementations must not block: Now is called while signing state is locked.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// Epoch is the origin of signature timestamps, 2015-01-01T00:00:00Z.
var Epoch = time.Unix(constants.EpochUnixSeconds, 0).UTC() //nolint:gochecknoglobals // fixed protocol epoch

// Ticks converts t to a signature timestamp: the number of 10µs ticks since Epoch.
//
// Times before the Unix epoch or before Epoch yield 0. The result is not masked
// to 48 bits; the field wraps when written to the wire, around the year 2104.
func Ticks(t time.Time) uint64 {
	us := t.UnixMicro()
	if us < 0 {
		return 0
	}
	since := us - constants.EpochUnixSeconds*int64(time.Second/time.Microsecond)
	if since < 0 {
		return 0
	}
	return uint64(since) / uint64(constants.TickDuration/time.Microsecond)
}

// Now returns the current signature timestamp according to c.
func Now(c Clock) uint64 {
	return Ticks(c.Now())
}

// TimeOf converts a signature timestamp back to wall-clock time.
func TimeOf(ticks uint64) time.Time {
	return Epoch.Add(time.Duration(ticks) * constants.TickDuration) //nolint:gosec // 48-bit range fits in int64 nanoseconds
}
