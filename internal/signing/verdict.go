package signing

// Verdict is the outcome of checking one inbound frame.
type Verdict uint8

// Verification outcomes.
const (
	// Accepted is a signed frame that passed the replay checks and the MAC.
	Accepted Verdict = iota
	// AcceptedUnsigned is an unsigned frame let through by policy.
	AcceptedUnsigned
	// RejectedUnsigned is an unsigned frame refused by policy.
	RejectedUnsigned
	// RejectedReplay is a timestamp not above the last one accepted on its stream.
	RejectedReplay
	// RejectedStaleStream is the first frame of a stream, too far behind the floor.
	RejectedStaleStream
	// RejectedSignature is a MAC mismatch.
	RejectedSignature
	// RejectedFaulted is any frame checked by a faulted context.
	RejectedFaulted
)

var verdictNames = [...]string{ //nolint:gochecknoglobals // lookup table
	Accepted:            "accepted",
	AcceptedUnsigned:    "accepted_unsigned",
	RejectedUnsigned:    "rejected_unsigned",
	RejectedReplay:      "rejected_replay",
	RejectedStaleStream: "rejected_stale_stream",
	RejectedSignature:   "rejected_signature",
	RejectedFaulted:     "rejected_faulted",
}

// Verdicts lists every verdict in declaration order.
func Verdicts() []Verdict {
	out := make([]Verdict, len(verdictNames))
	for i := range verdictNames {
		out[i] = Verdict(i) //nolint:gosec // bounded by table size
	}
	return out
}

// Accepted reports whether the frame may be trusted.
func (v Verdict) Accepted() bool {
	return v == Accepted || v == AcceptedUnsigned
}

// String returns the snake_case label used in logs and metrics.
func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return "unknown"
}
