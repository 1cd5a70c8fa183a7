package constants

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestampConstants(t *testing.T) {
	t.Run("epoch is 2015-01-01 UTC", func(t *testing.T) {
		epoch := time.Unix(EpochUnixSeconds, 0).UTC()
		assert.Equal(t, time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC), epoch)
	})

	t.Run("tick is ten microseconds", func(t *testing.T) {
		assert.Equal(t, 10*time.Microsecond, TickDuration)
		assert.Equal(t, uint64(100_000), TicksPerSecond)
	})

	t.Run("new stream window is one minute of ticks", func(t *testing.T) {
		assert.Equal(t, uint64(6_000_000), NewStreamWindow)
	})
}

func TestKeyConstants(t *testing.T) {
	assert.Equal(t, 32, SecretKeySize)
	assert.Equal(t, 6, SignatureSize)
	assert.Less(t, NTPBackoffInitial, NTPBackoffMax)
}
