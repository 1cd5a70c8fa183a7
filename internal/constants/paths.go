package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.mavsign/logs/mavsign.log
	CLILogFileName = "mavsign.log"
)

// Configuration file names.
const (
	// ConfigFileName is the name of both the global (~/.mavsign) and the
	// project (.mavsign) configuration file.
	ConfigFileName = "config.yaml"
)

// Key file names.
const (
	// KeyFileName is the name of the hex-encoded secret key file.
	KeyFileName = "signing.key"

	// KeyLockFileName guards key generation against concurrent writers.
	KeyLockFileName = "signing.key.lock"
)

// Telemetry log conventions.
const (
	// TlogExtension is the file extension of timestamped telemetry logs.
	TlogExtension = ".tlog"
)
