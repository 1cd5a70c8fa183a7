package mavlink

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mavsign/internal/errors"
)

func mustFrame(t *testing.T, seq uint8, flags uint8) *Frame {
	t.Helper()
	h := heartbeatHeader(flags)
	h.Sequence = seq
	f, err := NewFrame(h, heartbeatPayload, heartbeatCRCExtra)
	require.NoError(t, err)
	return f
}

func TestReader_Stream(t *testing.T) {
	v1, err := NewFrameV1(heartbeatHeader(0), heartbeatPayload, heartbeatCRCExtra)
	require.NoError(t, err)
	frames := []*Frame{mustFrame(t, 1, 0), mustFrame(t, 2, IncompatFlagSigned), v1}

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x11, 0x22}) // line noise
	for _, f := range frames {
		buf.Write(f.Bytes())
	}

	r := NewReader(&buf)
	for _, want := range frames {
		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want.Bytes(), got.Bytes())
		assert.True(t, got.CapturedAt().IsZero())
	}
	_, err = r.ReadFrame()
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, r.Skipped())
}

func TestReader_FalseStartMarker(t *testing.T) {
	frames := []*Frame{mustFrame(t, 1, 0), mustFrame(t, 2, IncompatFlagSigned)}

	tests := []struct {
		name    string
		noise   []byte
		skipped int
	}{
		{
			name:    "start marker whose frame runs past the input",
			noise:   []byte{0x00, MagicV1, 0x40},
			skipped: 3,
		},
		{
			name:    "start marker whose frame ends inside a real one",
			noise:   []byte{0x00, MagicV2, 0x02, 0x00},
			skipped: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			buf.Write(tt.noise)
			for _, f := range frames {
				buf.Write(f.Bytes())
			}

			r := NewReader(&buf)
			for _, want := range frames {
				got, err := r.ReadFrame()
				require.NoError(t, err)
				assert.Equal(t, want.Bytes(), got.Bytes())
			}
			_, err := r.ReadFrame()
			require.ErrorIs(t, err, io.EOF)
			assert.Equal(t, tt.skipped, r.Skipped())
		})
	}
}

func TestReader_Truncated(t *testing.T) {
	f := mustFrame(t, 1, IncompatFlagSigned)
	for _, cut := range []int{1, 2, HeaderLenV2, f.Len() - 1} {
		r := NewReader(bytes.NewReader(f.Bytes()[:cut]))
		_, err := r.ReadFrame()
		require.ErrorIs(t, err, errors.ErrShortFrame, "cut at %d", cut)
	}

	t.Run("after a whole frame", func(t *testing.T) {
		whole := mustFrame(t, 1, 0).Bytes()
		r := NewReader(bytes.NewReader(append(append([]byte{}, whole...), whole[:5]...)))

		got, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, whole, got.Bytes())

		_, err = r.ReadFrame()
		require.ErrorIs(t, err, errors.ErrShortFrame)
	})
}

func TestReader_Tlog(t *testing.T) {
	at := time.Date(2024, 6, 15, 10, 30, 0, 123000, time.UTC)
	f := mustFrame(t, 1, 0)

	var buf bytes.Buffer
	w := NewWriter(&buf, WithTlogPrefix(func() time.Time { return at }))
	require.NoError(t, w.WriteFrame(f))
	require.Equal(t, uint64(at.UnixMicro()), binary.BigEndian.Uint64(buf.Bytes()[:8]))

	r := NewReader(bytes.NewReader(buf.Bytes()), WithTlog())
	got, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, f.Bytes(), got.Bytes())
	assert.True(t, at.Equal(got.CapturedAt()))

	_, err = r.ReadFrame()
	require.ErrorIs(t, err, io.EOF)

	t.Run("capture time survives a rewrite", func(t *testing.T) {
		var out bytes.Buffer
		w := NewWriter(&out, WithTlogPrefix(func() time.Time { return time.Unix(0, 0) }))
		require.NoError(t, w.WriteFrame(got))
		assert.Equal(t, buf.Bytes(), out.Bytes())
	})

	t.Run("garbage after timestamp", func(t *testing.T) {
		bad := append(append([]byte(nil), buf.Bytes()[:8]...), 0x00)
		_, err := NewReader(bytes.NewReader(bad), WithTlog()).ReadFrame()
		require.ErrorIs(t, err, errors.ErrInvalidFrame)
	})

	t.Run("partial timestamp", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader(buf.Bytes()[:4]), WithTlog()).ReadFrame()
		require.ErrorIs(t, err, errors.ErrShortFrame)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriter_Error(t *testing.T) {
	f := mustFrame(t, 1, 0)
	require.ErrorIs(t, NewWriter(failingWriter{}).WriteFrame(f), io.ErrClosedPipe)
	require.ErrorIs(t, NewWriter(failingWriter{}, WithTlogPrefix(nil)).WriteFrame(f), io.ErrClosedPipe)
}
