package crypto

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mavsign/internal/errors"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestParseHex(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		k, err := ParseHex(testKeyHex)
		require.NoError(t, err)
		for i := range k {
			assert.Equal(t, byte(i), k[i])
		}
		assert.Equal(t, testKeyHex, k.Hex())
	})

	t.Run("trims whitespace", func(t *testing.T) {
		k, err := ParseHex("  " + testKeyHex + "\n")
		require.NoError(t, err)
		assert.Equal(t, testKeyHex, k.Hex())
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseHex("abcd")
		require.ErrorIs(t, err, errors.ErrInvalidKeySize)
		assert.Contains(t, err.Error(), "expected 64 hex characters, got 4")
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := ParseHex(strings.Repeat("zz", 32))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding key hex")
	})
}

func TestFromPassphrase(t *testing.T) {
	k := FromPassphrase("correct horse")
	assert.Equal(t, SecretKey(sha256.Sum256([]byte("correct horse"))), k)
	assert.NotEqual(t, k, FromPassphrase("correct horse battery"))
}

func TestGenerate(t *testing.T) {
	t.Run("reads 32 bytes", func(t *testing.T) {
		src := bytes.NewReader(bytes.Repeat([]byte{0xAB}, 40))
		k, err := Generate(src)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("ab", 32), k.Hex())
	})

	t.Run("short source fails", func(t *testing.T) {
		_, err := Generate(bytes.NewReader([]byte{1, 2, 3}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "generating key")
	})

	t.Run("default source is random", func(t *testing.T) {
		a, err := Generate(nil)
		require.NoError(t, err)
		b, err := Generate(nil)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
		assert.False(t, a.IsZero())
	})
}

func TestSecretKey_NeverPrinted(t *testing.T) {
	k, err := ParseHex(testKeyHex)
	require.NoError(t, err)

	for _, verb := range []string{"%v", "%s", "%x", "%+v", "%#v", "%q"} {
		out := fmt.Sprintf(verb, k)
		assert.NotContains(t, out, "0102030405", "verb %s leaked key", verb)
		assert.NotContains(t, out, testKeyHex, "verb %s leaked key", verb)
	}
	assert.Equal(t, "[REDACTED]", k.String())
}

func TestSecretKey_Fingerprint(t *testing.T) {
	k, err := ParseHex(testKeyHex)
	require.NoError(t, err)

	fp := k.Fingerprint()
	assert.Len(t, fp, 8)
	assert.Equal(t, fp, k.Fingerprint())
	assert.NotEqual(t, fp, FromPassphrase("other").Fingerprint())
	assert.NotContains(t, testKeyHex, fp)
}

func TestSecretKey_IsZero(t *testing.T) {
	assert.True(t, SecretKey{}.IsZero())
	assert.False(t, FromPassphrase("x").IsZero())
}
