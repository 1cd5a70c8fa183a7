package mavlink

import (
	"crypto/sha256"

	"github.com/mrz1836/mavsign/internal/constants"
)

// CalculateSignature writes the 48-bit MAVLink 2 signature of f into out:
// the first six bytes of SHA-256(key || frame bytes up to the signature).
// The covered range is STX, header, payload, checksum, link id and timestamp.
// Unsigned and version 1 frames produce zeros.
func (f *Frame) CalculateSignature(key *[constants.SecretKeySize]byte, out *[constants.SignatureSize]byte) {
	*out = [constants.SignatureSize]byte{}
	if !f.Signed() {
		return
	}

	h := sha256.New()
	h.Write(key[:])
	h.Write(f.buf[:len(f.buf)-constants.SignatureSize])
	var sum [sha256.Size]byte
	copy(out[:], h.Sum(sum[:0]))
}
