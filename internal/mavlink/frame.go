// Package mavlink holds raw MAVLink 1 and 2 frames as bytes and exposes the
// fixed-offset header and signature fields that message signing works on.
//
// It does not know the message catalog: payloads are opaque and the checksum
// is carried, not validated.
package mavlink

import (
	"encoding/binary"
	"time"

	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/errors"
)

// Start-of-frame markers.
const (
	MagicV1 = 0xFE
	MagicV2 = 0xFD
)

// Frame geometry.
const (
	HeaderLenV1 = 6  // STX, len, seq, sysid, compid, msgid
	HeaderLenV2 = 10 // STX, len, incompat, compat, seq, sysid, compid, msgid[3]
	ChecksumLen = 2

	// SignatureBlockLen is link id + timestamp + signature.
	SignatureBlockLen = 1 + timestampLen + constants.SignatureSize

	MaxPayloadLen = 255

	timestampLen = constants.TimestampBits / 8
)

// IncompatFlagSigned marks a MAVLink 2 frame that carries a signature block.
const IncompatFlagSigned = 0x01

// Header holds the routing fields of a frame.
type Header struct {
	IncompatFlags uint8
	CompatFlags   uint8
	Sequence      uint8
	SystemID      uint8
	ComponentID   uint8
	MessageID     uint32
}

// Frame is one complete MAVLink frame in wire format.
// Accessors assume a frame built by NewFrame, NewFrameV1 or Parse.
type Frame struct {
	buf        []byte
	capturedAt time.Time
}

// NewFrame builds a MAVLink 2 frame. If h carries IncompatFlagSigned, an empty
// signature block is appended for SignMessage to fill.
func NewFrame(h Header, payload []byte, crcExtra uint8) (*Frame, error) {
	if len(payload) > MaxPayloadLen {
		return nil, errors.Wrapf(errors.ErrInvalidFrame, "payload of %d bytes", len(payload))
	}
	if h.MessageID > 0xFFFFFF {
		return nil, errors.Wrapf(errors.ErrInvalidFrame, "message id %d exceeds 24 bits", h.MessageID)
	}

	size := HeaderLenV2 + len(payload) + ChecksumLen
	if h.IncompatFlags&IncompatFlagSigned != 0 {
		size += SignatureBlockLen
	}
	buf := make([]byte, size)
	buf[0] = MagicV2
	buf[1] = uint8(len(payload)) //nolint:gosec // bounded above
	buf[2] = h.IncompatFlags
	buf[3] = h.CompatFlags
	buf[4] = h.Sequence
	buf[5] = h.SystemID
	buf[6] = h.ComponentID
	buf[7] = byte(h.MessageID)
	buf[8] = byte(h.MessageID >> 8)
	buf[9] = byte(h.MessageID >> 16)
	copy(buf[HeaderLenV2:], payload)

	f := &Frame{buf: buf}
	binary.LittleEndian.PutUint16(f.checksumBytes(), checksum(buf[1:HeaderLenV2+len(payload)], crcExtra))
	return f, nil
}

// NewFrameV1 builds a MAVLink 1 frame. Version 1 has no signing support.
func NewFrameV1(h Header, payload []byte, crcExtra uint8) (*Frame, error) {
	if len(payload) > MaxPayloadLen {
		return nil, errors.Wrapf(errors.ErrInvalidFrame, "payload of %d bytes", len(payload))
	}
	if h.MessageID > 0xFF {
		return nil, errors.Wrapf(errors.ErrInvalidFrame, "message id %d exceeds 8 bits", h.MessageID)
	}

	buf := make([]byte, HeaderLenV1+len(payload)+ChecksumLen)
	buf[0] = MagicV1
	buf[1] = uint8(len(payload)) //nolint:gosec // bounded above
	buf[2] = h.Sequence
	buf[3] = h.SystemID
	buf[4] = h.ComponentID
	buf[5] = byte(h.MessageID)
	copy(buf[HeaderLenV1:], payload)

	f := &Frame{buf: buf}
	binary.LittleEndian.PutUint16(f.checksumBytes(), checksum(buf[1:HeaderLenV1+len(payload)], crcExtra))
	return f, nil
}

// Parse copies b into a Frame. b must hold exactly one frame.
func Parse(b []byte) (*Frame, error) {
	n, err := frameLen(b)
	if err != nil {
		return nil, err
	}
	if n != len(b) {
		return nil, errors.Wrapf(errors.ErrInvalidFrame, "expected %d bytes, got %d", n, len(b))
	}
	buf := make([]byte, n)
	copy(buf, b)
	return &Frame{buf: buf}, nil
}

// frameLen returns the full length of the frame starting at b[0], reading
// only the header bytes it needs.
func frameLen(b []byte) (int, error) {
	if len(b) < 2 {
		return 0, errors.ErrShortFrame
	}
	payloadLen := int(b[1])
	switch b[0] {
	case MagicV1:
		return HeaderLenV1 + payloadLen + ChecksumLen, nil
	case MagicV2:
		if len(b) < 3 {
			return 0, errors.ErrShortFrame
		}
		n := HeaderLenV2 + payloadLen + ChecksumLen
		if b[2]&IncompatFlagSigned != 0 {
			n += SignatureBlockLen
		}
		return n, nil
	default:
		return 0, errors.Wrapf(errors.ErrInvalidFrame, "bad start byte 0x%02x", b[0])
	}
}

// Version returns 1 or 2.
func (f *Frame) Version() int {
	if f.buf[0] == MagicV1 {
		return 1
	}
	return 2
}

func (f *Frame) headerLen() int {
	if f.Version() == 1 {
		return HeaderLenV1
	}
	return HeaderLenV2
}

// Len is the size of the frame on the wire.
func (f *Frame) Len() int { return len(f.buf) }

// Bytes returns the frame's wire bytes. The slice aliases the frame.
func (f *Frame) Bytes() []byte { return f.buf }

// IncompatibilityFlags returns the MAVLink 2 incompat flags; 0 for version 1.
func (f *Frame) IncompatibilityFlags() uint8 {
	if f.Version() == 1 {
		return 0
	}
	return f.buf[2]
}

// CompatibilityFlags returns the MAVLink 2 compat flags; 0 for version 1.
func (f *Frame) CompatibilityFlags() uint8 {
	if f.Version() == 1 {
		return 0
	}
	return f.buf[3]
}

// Sequence returns the packet sequence number.
func (f *Frame) Sequence() uint8 {
	if f.Version() == 1 {
		return f.buf[2]
	}
	return f.buf[4]
}

// SystemID returns the sender's system id.
func (f *Frame) SystemID() uint8 {
	if f.Version() == 1 {
		return f.buf[3]
	}
	return f.buf[5]
}

// ComponentID returns the sender's component id.
func (f *Frame) ComponentID() uint8 {
	if f.Version() == 1 {
		return f.buf[4]
	}
	return f.buf[6]
}

// MessageID returns the message id.
func (f *Frame) MessageID() uint32 {
	if f.Version() == 1 {
		return uint32(f.buf[5])
	}
	return uint32(f.buf[7]) | uint32(f.buf[8])<<8 | uint32(f.buf[9])<<16
}

// Payload returns the payload bytes. The slice aliases the frame.
func (f *Frame) Payload() []byte {
	h := f.headerLen()
	return f.buf[h : h+int(f.buf[1])]
}

func (f *Frame) checksumBytes() []byte {
	off := f.headerLen() + int(f.buf[1])
	return f.buf[off : off+ChecksumLen]
}

// Checksum returns the frame's CRC field.
func (f *Frame) Checksum() uint16 {
	return binary.LittleEndian.Uint16(f.checksumBytes())
}

// Signed reports whether the frame carries a signature block.
func (f *Frame) Signed() bool {
	return f.IncompatibilityFlags()&IncompatFlagSigned != 0
}

// signatureBlock is the trailing 13 bytes of a signed frame.
func (f *Frame) signatureBlock() []byte {
	return f.buf[len(f.buf)-SignatureBlockLen:]
}

// SignatureLinkID returns the link id of a signed frame.
func (f *Frame) SignatureLinkID() uint8 {
	if !f.Signed() {
		return 0
	}
	return f.signatureBlock()[0]
}

// SignatureTimestamp returns the 48-bit signature timestamp of a signed frame.
func (f *Frame) SignatureTimestamp() uint64 {
	if !f.Signed() {
		return 0
	}
	var b [8]byte
	copy(b[:], f.signatureBlock()[1:1+timestampLen])
	return binary.LittleEndian.Uint64(b[:])
}

// SignatureValue returns the 6-byte signature of a signed frame, or nil.
// The slice aliases the frame.
func (f *Frame) SignatureValue() []byte {
	if !f.Signed() {
		return nil
	}
	return f.signatureBlock()[1+timestampLen:]
}

// SetSignatureLinkID writes the link id of a signed frame.
func (f *Frame) SetSignatureLinkID(id uint8) {
	if f.Signed() {
		f.signatureBlock()[0] = id
	}
}

// SetSignatureTimestamp writes the low 48 bits of ts, little-endian.
func (f *Frame) SetSignatureTimestamp(ts uint64) {
	if !f.Signed() {
		return
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], ts)
	copy(f.signatureBlock()[1:1+timestampLen], b[:timestampLen])
}

// SetSignatureValue writes the signature of a signed frame.
func (f *Frame) SetSignatureValue(sig [constants.SignatureSize]byte) {
	if f.Signed() {
		copy(f.signatureBlock()[1+timestampLen:], sig[:])
	}
}

// MarkSigned sets the signed flag on a MAVLink 2 frame and appends a zeroed
// signature block. The checksum is corrected for the changed flag byte, so
// the message's CRC_EXTRA is not needed. It reports false for version 1
// frames, which cannot be signed, and is a no-op for frames already signed.
func (f *Frame) MarkSigned() bool {
	if f.Version() == 1 {
		return false
	}
	if f.Signed() {
		return true
	}

	f.buf[2] |= IncompatFlagSigned
	old := f.Checksum()
	binary.LittleEndian.PutUint16(f.checksumBytes(), old^checksumDelta(1, IncompatFlagSigned, int(f.buf[1])))
	f.buf = append(f.buf, make([]byte, SignatureBlockLen)...)
	return true
}

// CapturedAt returns the capture time read from a .tlog record, if any.
func (f *Frame) CapturedAt() time.Time { return f.capturedAt }

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	buf := make([]byte, len(f.buf))
	copy(buf, f.buf)
	return &Frame{buf: buf, capturedAt: f.capturedAt}
}
