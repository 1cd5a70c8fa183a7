// Package constants provides centralized constant values used throughout mavsign.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Signature timestamp parameters. These are fixed by the wire protocol and shared
// with every other implementation, so they must not change.
const (
	// EpochUnixSeconds is 2015-01-01T00:00:00Z, the origin of signature timestamps.
	EpochUnixSeconds = 1420070400

	// TickDuration is the resolution of a signature timestamp.
	TickDuration = 10 * time.Microsecond

	// TicksPerSecond is the number of signature timestamp ticks in one second.
	TicksPerSecond = uint64(time.Second / TickDuration)

	// NewStreamWindow is how far behind the floor the first message of a
	// previously unseen stream may be, expressed in ticks (60 seconds).
	NewStreamWindow = 60 * TicksPerSecond

	// TimestampBits is the width of the timestamp field on the wire.
	TimestampBits = 48
)

// Secret key parameters.
const (
	// SecretKeySize is the length of the pre-shared signing key in bytes.
	SecretKeySize = 32

	// SignatureSize is the length of the truncated MAC carried by a signed frame.
	SignatureSize = 6
)

// Directory names and paths used by mavsign.
const (
	// MavsignHome is the hidden directory name where mavsign stores all its data.
	// This directory is created in the user's home directory.
	MavsignHome = ".mavsign"

	// KeysDir is the directory name where key material is stored.
	KeysDir = "keys"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"
)

// Clock synchronization defaults.
const (
	// DefaultNTPServer is the NTP pool queried when the ntp clock source is selected.
	DefaultNTPServer = "pool.ntp.org"

	// DefaultNTPSyncInterval is how often the NTP offset is refreshed.
	DefaultNTPSyncInterval = 10 * time.Minute

	// NTPBackoffInitial is the first retry delay after a failed NTP query.
	NTPBackoffInitial = 5 * time.Second

	// NTPBackoffMax caps the retry delay after repeated NTP failures.
	NTPBackoffMax = 5 * time.Minute
)

// Log rotation settings for the CLI log file.
const (
	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age of rotated files.
	LogMaxAgeDays = 28

	// LogCompress enables gzip compression of rotated files.
	LogCompress = true
)
