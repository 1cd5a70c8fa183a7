package mavlink

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/mrz1836/mavsign/internal/errors"
)

// tlogPrefixLen is the big-endian microsecond timestamp preceding each frame
// in a .tlog telemetry log.
const tlogPrefixLen = 8

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTlog makes the Reader expect a .tlog timestamp before every frame.
func WithTlog() ReaderOption {
	return func(r *Reader) { r.tlog = true }
}

// Reader splits a byte stream into frames.
type Reader struct {
	br      *bufio.Reader
	tlog    bool
	skipped int
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{br: bufio.NewReader(r)}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Skipped returns how many non-frame bytes have been discarded so far.
func (r *Reader) Skipped() int { return r.skipped }

// ReadFrame returns the next frame. It returns io.EOF when the stream ends
// between frames and ErrShortFrame when it ends inside one.
//
// Raw streams are resynchronised by skipping bytes until a start marker that
// opens a plausible frame.
// In tlog mode a record must start with its timestamp followed directly by
// a start marker.
func (r *Reader) ReadFrame() (*Frame, error) {
	var captured time.Time
	if r.tlog {
		var prefix [tlogPrefixLen]byte
		n, err := io.ReadFull(r.br, prefix[:])
		switch {
		case err == io.EOF:
			return nil, io.EOF
		case err != nil:
			return nil, errors.Wrapf(errors.ErrShortFrame, "tlog timestamp: read %d of %d bytes", n, tlogPrefixLen)
		}
		us := binary.BigEndian.Uint64(prefix[:])
		captured = time.UnixMicro(int64(us)).UTC() //nolint:gosec // tlog timestamps fit int64

		magic, err := r.br.ReadByte()
		if err != nil {
			return nil, errors.Wrap(errors.ErrShortFrame, "tlog record without frame")
		}
		if magic != MagicV1 && magic != MagicV2 {
			return nil, errors.Wrapf(errors.ErrInvalidFrame, "tlog record starts with 0x%02x", magic)
		}
		if err := r.br.UnreadByte(); err != nil {
			return nil, err
		}
	} else if err := r.sync(); err != nil {
		return nil, err
	}

	f, err := r.readOne()
	if err != nil {
		return nil, err
	}
	f.capturedAt = captured
	return f, nil
}

// sync discards bytes until the next start marker that opens a plausible
// frame, leaving it unread.
//
// A start marker is taken as noise when the input ends before its frame does,
// or when the byte right after its frame is already buffered and is not
// another start marker. Only the marker itself is dropped, so a real frame
// hidden behind it is still found. If the input ends and one of the dropped
// markers was cut short, the stream is reported as truncated.
func (r *Reader) sync() error {
	short := false
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			if err == io.EOF && short { //nolint:errorlint // bufio returns io.EOF unwrapped
				return errors.Wrap(errors.ErrShortFrame, "stream ended inside a frame")
			}
			return err
		}
		if b != MagicV1 && b != MagicV2 {
			r.skipped++
			continue
		}
		if err := r.br.UnreadByte(); err != nil {
			return err
		}

		ok, cut, err := r.candidate()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		short = short || cut
		if _, err := r.br.Discard(1); err != nil {
			return err
		}
		r.skipped++
	}
}

// candidate reports whether the buffered start marker begins a whole frame
// followed by either the end of the buffered data or another start marker.
// short is set when the input ends before that frame does.
func (r *Reader) candidate() (ok, short bool, err error) {
	n, err := r.peekLen()
	if err != nil {
		return false, false, err
	}
	if n == 0 {
		return false, true, nil
	}
	if r.br.Buffered() <= n {
		return true, false, nil
	}
	next, err := r.br.Peek(n + 1)
	if err != nil {
		return false, false, err
	}
	return next[n] == MagicV1 || next[n] == MagicV2, false, nil
}

// peekLen returns the size of the frame at the buffered start marker, or 0
// when the input ends before the frame does.
func (r *Reader) peekLen() (int, error) {
	head, err := r.br.Peek(3)
	if len(head) < 2 || (head[0] == MagicV2 && len(head) < 3) {
		return 0, eofOr(err)
	}
	n, err := frameLen(head)
	if err != nil {
		return 0, err
	}
	if buf, err := r.br.Peek(n); len(buf) < n {
		return 0, eofOr(err)
	}
	return n, nil
}

// eofOr hides the end of input, which only means the candidate is short.
func eofOr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF { //nolint:errorlint // bufio returns sentinels unwrapped
		return nil
	}
	return err
}

func (r *Reader) readOne() (*Frame, error) {
	// STX, len and (for v2) incompat flags decide the frame size.
	head, err := r.br.Peek(3)
	if len(head) < 2 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(errors.ErrShortFrame, "%v", err)
	}
	if head[0] == MagicV2 && len(head) < 3 {
		return nil, errors.Wrap(errors.ErrShortFrame, "header")
	}

	n, err := frameLen(head)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	got, err := io.ReadFull(r.br, buf)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrShortFrame, "read %d of %d bytes", got, n)
	}
	return &Frame{buf: buf}, nil
}
