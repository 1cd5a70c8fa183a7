package signing

import "github.com/mrz1836/mavsign/internal/constants"

// Admit is the replay decision taken before the MAC is checked.
//
// A known stream (hasPrior) accepts only timestamps strictly above prior.
// A new stream is refused when ts+NewStreamWindow < floor, so a first frame
// exactly one window behind the floor still passes.
//
// It returns Accepted, RejectedReplay or RejectedStaleStream.
func Admit(hasPrior bool, prior, floor, ts uint64) Verdict {
	if hasPrior {
		if ts <= prior {
			return RejectedReplay
		}
		return Accepted
	}
	// ts+NewStreamWindow < floor, written so that no operand can wrap.
	if floor > constants.NewStreamWindow && ts < floor-constants.NewStreamWindow {
		return RejectedStaleStream
	}
	return Accepted
}
