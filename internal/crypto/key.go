// Package crypto holds the pre-shared secret key used to sign MAVLink 2 frames.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/errors"
)

// redacted is printed in place of key material.
const redacted = "[REDACTED]"

// SecretKey is the 32-byte key shared by both ends of a signed link.
//
// Its String and GoString methods never reveal the key, so it is safe to
// pass to loggers and fmt verbs.
type SecretKey [constants.SecretKeySize]byte

// ParseHex decodes a key written as 64 hex characters.
// Surrounding whitespace is ignored.
func ParseHex(s string) (SecretKey, error) {
	var k SecretKey
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(constants.SecretKeySize) {
		return k, errors.Wrapf(errors.ErrInvalidKeySize, "expected %d hex characters, got %d",
			hex.EncodedLen(constants.SecretKeySize), len(s))
	}
	if _, err := hex.Decode(k[:], []byte(s)); err != nil {
		return SecretKey{}, errors.Wrap(err, "decoding key hex")
	}
	return k, nil
}

// FromPassphrase derives a key as SHA-256 of the passphrase, the convention
// ground stations use when users type a shared secret.
func FromPassphrase(passphrase string) SecretKey {
	return SecretKey(sha256.Sum256([]byte(passphrase)))
}

// Generate reads a fresh key from r, normally crypto/rand.Reader.
func Generate(r io.Reader) (SecretKey, error) {
	if r == nil {
		r = rand.Reader
	}
	var k SecretKey
	if _, err := io.ReadFull(r, k[:]); err != nil {
		return SecretKey{}, errors.Wrap(err, "generating key")
	}
	return k, nil
}

// Hex returns the key as 64 lowercase hex characters, for writing key files.
func (k SecretKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// Fingerprint identifies the key in logs without revealing it.
func (k SecretKey) Fingerprint() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:4])
}

// IsZero reports whether the key is all zero bytes.
func (k SecretKey) IsZero() bool {
	return k == SecretKey{}
}

// Bytes returns a pointer to the raw key for MAC computation.
func (k *SecretKey) Bytes() *[constants.SecretKeySize]byte {
	return (*[constants.SecretKeySize]byte)(k)
}

// String implements fmt.Stringer.
func (k SecretKey) String() string {
	return redacted
}

// GoString implements fmt.GoStringer.
func (k SecretKey) GoString() string {
	return fmt.Sprintf("crypto.SecretKey{%s}", redacted)
}
