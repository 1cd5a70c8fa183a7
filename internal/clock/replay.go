package clock

import (
	"sync/atomic"
	"time"
)

// Replay is a Clock that reports whatever time it was last set to. Log
// verification sets it to each frame's capture time so that recorded
// traffic is judged against the time it was recorded, not the time it is
// read back. Before the first Set it reports the zero time, which maps to
// timestamp 0.
type Replay struct {
	unixNano atomic.Int64
	set      atomic.Bool
}

// Set moves the clock to t. Zero times are ignored.
func (r *Replay) Set(t time.Time) {
	if t.IsZero() {
		return
	}
	r.unixNano.Store(t.UnixNano())
	r.set.Store(true)
}

// Now returns the last time passed to Set.
func (r *Replay) Now() time.Time {
	if !r.set.Load() {
		return time.Time{}
	}
	return time.Unix(0, r.unixNano.Load()).UTC()
}

var _ Clock = (*Replay)(nil)
