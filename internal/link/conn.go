// Package link applies the signing policy to a stream of frames: every
// inbound frame is checked before it is handed on, and outbound frames are
// signed when the connection asks for it.
package link

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/mrz1836/mavsign/internal/clock"
	"github.com/mrz1836/mavsign/internal/ctxutil"
	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/mavlink"
	"github.com/mrz1836/mavsign/internal/signing"
)

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// WithReader sets the inbound frame source.
func WithReader(r *mavlink.Reader) Option {
	return func(c *Conn) { c.r = r }
}

// WithWriter sets the outbound frame sink.
func WithWriter(w *mavlink.Writer) Option {
	return func(c *Conn) { c.w = w }
}

// WithReplayClock moves r to each inbound frame's capture time before the
// frame is checked. Give the signing context the same clock to verify a
// recorded log against the time it was recorded.
func WithReplayClock(r *clock.Replay) Option {
	return func(c *Conn) { c.replay = r }
}

// Stats counts the frames a Conn has handled.
type Stats struct {
	Read     int
	Written  int
	Signed   int
	Verdicts map[signing.Verdict]int
}

// Rejected sums every rejecting verdict.
func (s Stats) Rejected() int {
	n := 0
	for v, count := range s.Verdicts {
		if !v.Accepted() {
			n += count
		}
	}
	return n
}

// Conn is one signed MAVLink connection over a reader and/or writer.
// ReadFrame and WriteFrame may run on different goroutines; each direction
// must only be used by one goroutine at a time.
type Conn struct {
	signer *signing.Context
	r      *mavlink.Reader
	w      *mavlink.Writer
	logger zerolog.Logger
	replay *clock.Replay

	in  inStats
	out outStats
}

type inStats struct {
	read     int
	verdicts map[signing.Verdict]int
}

type outStats struct {
	written int
	signed  int
}

// New creates a Conn. At least one of WithReader or WithWriter should be given.
func New(signer *signing.Context, opts ...Option) *Conn {
	c := &Conn{
		signer: signer,
		logger: zerolog.Nop(),
		in:     inStats{verdicts: make(map[signing.Verdict]int)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signer returns the connection's signing context.
func (c *Conn) Signer() *signing.Context { return c.signer }

// ReadFrame returns the next frame and its verdict.
//
// A rejected frame is still returned, together with an error wrapping
// ErrRejected, so the caller can drop it and read on. io.EOF ends the stream.
func (c *Conn) ReadFrame(ctx context.Context) (*mavlink.Frame, signing.Verdict, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, signing.RejectedFaulted, err
	}
	if c.r == nil {
		return nil, signing.RejectedFaulted, errors.Wrap(errors.ErrInvalidFrame, "connection has no reader")
	}

	f, err := c.r.ReadFrame()
	if err != nil {
		if err == io.EOF { //nolint:errorlint // io.EOF is returned unwrapped
			return nil, signing.RejectedFaulted, io.EOF
		}
		return nil, signing.RejectedFaulted, errors.Wrap(err, "reading frame")
	}
	c.in.read++
	if c.replay != nil {
		c.replay.Set(f.CapturedAt())
	}

	v, err := c.signer.Check(f)
	c.in.verdicts[v]++
	if err != nil {
		return f, v, err
	}
	if !v.Accepted() {
		return f, v, errors.Wrapf(errors.ErrRejected, "%s from %d/%d", v, f.SystemID(), f.ComponentID())
	}
	return f, v, nil
}

// WriteFrame writes f, signing it first when appropriate.
//
// With SignOutgoing set, version 2 frames are flagged as signed and signed.
// Without it, only frames the caller already flagged are signed. Version 1
// frames always go out unsigned.
func (c *Conn) WriteFrame(ctx context.Context, f *mavlink.Frame) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if c.w == nil {
		return errors.Wrap(errors.ErrInvalidFrame, "connection has no writer")
	}

	if c.signer.Config().SignOutgoing() && !f.MarkSigned() {
		c.logger.Debug().
			Uint32("msg_id", f.MessageID()).
			Uint8("system_id", f.SystemID()).
			Msg("version 1 frame sent unsigned")
	}
	if f.Signed() {
		if err := c.signer.SignMessage(f); err != nil {
			return err
		}
		c.out.signed++
	}

	if err := c.w.WriteFrame(f); err != nil {
		return errors.Wrap(err, "writing frame")
	}
	c.out.written++
	return nil
}

// Stats returns the counters so far. Call it once both directions are idle.
func (c *Conn) Stats() Stats {
	s := Stats{
		Read:     c.in.read,
		Written:  c.out.written,
		Signed:   c.out.signed,
		Verdicts: make(map[signing.Verdict]int, len(c.in.verdicts)),
	}
	for v, n := range c.in.verdicts {
		s.Verdicts[v] = n
	}
	return s
}
