package signing

import "fmt"

// StreamKey identifies one independent signing sequence.
type StreamKey struct {
	LinkID      uint8
	SystemID    uint8
	ComponentID uint8
}

// String renders the key as link/system/component.
func (k StreamKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.LinkID, k.SystemID, k.ComponentID)
}

// State is the mutable anti-replay state of one connection.
//
// Timestamp is the floor: the highest timestamp ever observed or issued. It
// never decreases. Streams holds the last accepted timestamp per stream; each
// entry only ever grows.
type State struct {
	Timestamp uint64
	Streams   map[StreamKey]uint64
}

func newState() State {
	return State{Streams: make(map[StreamKey]uint64)}
}

// raise lifts the floor to ts if ts is higher.
func (s *State) raise(ts uint64) {
	if ts > s.Timestamp {
		s.Timestamp = ts
	}
}

func (s *State) clone() State {
	out := State{Timestamp: s.Timestamp, Streams: make(map[StreamKey]uint64, len(s.Streams))}
	for k, v := range s.Streams {
		out.Streams[k] = v
	}
	return out
}
