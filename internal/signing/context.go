// Package signing authenticates MAVLink 2 frames: it stamps outbound frames
// with a keyed, replay-resistant signature and decides whether inbound frames
// can be trusted.
//
// A Context holds one connection's anti-replay state behind a single mutex.
// Both directions take that lock for their whole state-touching section.
package signing

import (
	"crypto/subtle"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mrz1836/mavsign/internal/clock"
	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/errors"
)

// FlagSigned is incompat flag bit 0, set on frames that carry a signature.
const FlagSigned = 0x01

// Message is the read side of a frame as seen by verification.
type Message interface {
	IncompatibilityFlags() uint8
	SystemID() uint8
	ComponentID() uint8
	SignatureLinkID() uint8
	SignatureTimestamp() uint64
	SignatureValue() []byte
	// CalculateSignature writes the MAC over every byte preceding the
	// signature value into out.
	CalculateSignature(key *[constants.SecretKeySize]byte, out *[constants.SignatureSize]byte)
}

// MutableMessage is a Message that can be signed in place.
type MutableMessage interface {
	Message
	SetSignatureLinkID(id uint8)
	SetSignatureTimestamp(ts uint64)
	SetSignatureValue(sig [constants.SignatureSize]byte)
}

// Recorder observes signing activity. internal/metrics implements it.
type Recorder interface {
	Verified(result string)
	Signed()
	Streams(n int)
}

type nopRecorder struct{}

func (nopRecorder) Verified(string) {}
func (nopRecorder) Signed()         {}
func (nopRecorder) Streams(int)     {}

// Option configures a Context.
type Option func(*Context)

// WithClock sets the time source. It must not block.
func WithClock(c clock.Clock) Option {
	return func(ctx *Context) {
		if c != nil {
			ctx.clock = c
		}
	}
}

// WithLogger sets the logger used for rejections and faults.
func WithLogger(logger zerolog.Logger) Option {
	return func(ctx *Context) { ctx.logger = logger }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(ctx *Context) {
		if r != nil {
			ctx.recorder = r
		}
	}
}

// Context signs and verifies frames for one connection.
// It is safe for concurrent use.
type Context struct {
	cfg      Config
	clock    clock.Clock
	logger   zerolog.Logger
	recorder Recorder

	mu      sync.Mutex
	state   State
	faulted atomic.Bool
}

// FromConfig creates a Context with a zero floor and no known streams.
func FromConfig(cfg Config, opts ...Option) *Context {
	c := &Context{
		cfg:      cfg,
		clock:    clock.RealClock{},
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
		state:    newState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the context's configuration.
func (c *Context) Config() Config { return c.cfg }

// withState runs fn while holding the state lock.
//
// A panic inside fn faults the context for good and is re-raised; after that
// withState refuses to run anything and returns ErrContextFaulted.
func (c *Context) withState(fn func(s *State)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.faulted.Load() {
		return errors.ErrContextFaulted
	}

	defer func() {
		if r := recover(); r != nil {
			c.faulted.Store(true)
			c.logger.Error().
				Interface("panic", r).
				Uint8("link_id", c.cfg.linkID).
				Msg("signing context faulted")
			panic(r)
		}
	}()

	fn(&c.state)
	return nil
}

// Faulted reports whether the context has been permanently disabled.
func (c *Context) Faulted() bool { return c.faulted.Load() }

// VerifySignature reports whether msg can be trusted. It is Check reduced to
// a bool; a faulted context trusts nothing.
func (c *Context) VerifySignature(msg Message) bool {
	v, _ := c.Check(msg)
	return v.Accepted()
}

// Check verifies msg and says why it was accepted or rejected.
//
// Unsigned frames are judged by policy alone and touch no state. For signed
// frames the floor is first raised to the current time, whatever the outcome.
// The stream's replay check runs before the MAC, and only an accepted frame
// updates its stream and the floor.
func (c *Context) Check(msg Message) (Verdict, error) {
	if c.faulted.Load() {
		c.recorder.Verified(RejectedFaulted.String())
		return RejectedFaulted, errors.ErrContextFaulted
	}

	if msg.IncompatibilityFlags()&FlagSigned == 0 {
		v := RejectedUnsigned
		if c.cfg.allowUnsigned {
			v = AcceptedUnsigned
		}
		c.record(v, msg, 0)
		return v, nil
	}

	key := StreamKey{
		LinkID:      msg.SignatureLinkID(),
		SystemID:    msg.SystemID(),
		ComponentID: msg.ComponentID(),
	}
	ts := msg.SignatureTimestamp()

	var v Verdict
	err := c.withState(func(s *State) {
		s.raise(clock.Now(c.clock))

		prior, known := s.Streams[key]
		if v = Admit(known, prior, s.Timestamp, ts); v != Accepted {
			return
		}

		var expected [constants.SignatureSize]byte
		msg.CalculateSignature(c.cfg.key.Bytes(), &expected)
		if subtle.ConstantTimeCompare(expected[:], msg.SignatureValue()) != 1 {
			v = RejectedSignature
			return
		}

		s.Streams[key] = ts
		s.raise(ts)
		// Published under the lock so concurrent accepts report in order.
		c.recorder.Streams(len(s.Streams))
	})
	if err != nil {
		c.recorder.Verified(RejectedFaulted.String())
		return RejectedFaulted, err
	}

	c.record(v, msg, ts)
	return v, nil
}

func (c *Context) record(v Verdict, msg Message, ts uint64) {
	c.recorder.Verified(v.String())
	if v.Accepted() {
		return
	}
	c.logger.Debug().
		Str("verdict", v.String()).
		Uint8("link_id", msg.SignatureLinkID()).
		Uint8("system_id", msg.SystemID()).
		Uint8("component_id", msg.ComponentID()).
		Uint64("timestamp", ts).
		Msg("rejected frame")
}

// SignMessage stamps msg with the current floor, the configured link id and
// the MAC, then advances the floor by one tick so the next frame signed in the
// same tick still gets a later timestamp.
//
// Frames without the signed flag are left alone. The only error is
// ErrContextFaulted, in which case msg is not modified.
func (c *Context) SignMessage(msg MutableMessage) error {
	if c.faulted.Load() {
		return errors.ErrContextFaulted
	}
	if msg.IncompatibilityFlags()&FlagSigned == 0 {
		return nil
	}

	err := c.withState(func(s *State) {
		s.raise(clock.Now(c.clock))

		msg.SetSignatureTimestamp(s.Timestamp)
		msg.SetSignatureLinkID(c.cfg.linkID)

		var sig [constants.SignatureSize]byte
		msg.CalculateSignature(c.cfg.key.Bytes(), &sig)
		msg.SetSignatureValue(sig)

		s.Timestamp++
	})
	if err != nil {
		return err
	}

	c.recorder.Signed()
	return nil
}

// Floor returns the current floor timestamp.
func (c *Context) Floor() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Timestamp
}

// StreamTimestamp returns the last accepted timestamp of a stream.
func (c *Context) StreamTimestamp(key StreamKey) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.state.Streams[key]
	return ts, ok
}

// Streams returns the number of known streams.
func (c *Context) Streams() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state.Streams)
}

// Snapshot returns a copy of the current state.
func (c *Context) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}
