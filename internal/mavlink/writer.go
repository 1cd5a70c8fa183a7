package mavlink

import (
	"encoding/binary"
	"io"
	"time"
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithTlogPrefix makes the Writer emit a .tlog timestamp before each frame.
// Frames read from a tlog keep their capture time; others are stamped with
// now().
func WithTlogPrefix(now func() time.Time) WriterOption {
	return func(w *Writer) {
		w.tlog = true
		if now != nil {
			w.now = now
		}
	}
}

// Writer writes frames to an io.Writer.
type Writer struct {
	w    io.Writer
	tlog bool
	now  func() time.Time
}

// NewWriter wraps w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	wr := &Writer{w: w, now: time.Now}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// WriteFrame writes f, preceded by its tlog timestamp when enabled.
func (w *Writer) WriteFrame(f *Frame) error {
	if w.tlog {
		at := f.CapturedAt()
		if at.IsZero() {
			at = w.now()
		}
		var prefix [tlogPrefixLen]byte
		binary.BigEndian.PutUint64(prefix[:], uint64(at.UnixMicro())) //nolint:gosec // post-1970 capture times
		if _, err := w.w.Write(prefix[:]); err != nil {
			return err
		}
	}
	_, err := w.w.Write(f.buf)
	return err
}
