package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to their user-facing messages.
// A slice rather than a map so errors.Is() can walk wrapped chains in order.
//
//nolint:gochecknoglobals // Pre-built mapping
var errorInfoEntries = []errorEntry{
	// ===================
	// Signing
	// ===================
	{
		err: ErrContextFaulted,
		info: ErrorInfo{
			Message: "The signing context hit an internal fault and was disabled.",
			Action:  "Restart the connection. Check the log for the clock fault that caused it.",
		},
	},
	{
		err: ErrVerificationFailed,
		info: ErrorInfo{
			Message: "One or more frames failed signature verification.",
			Action:  "Confirm both ends share the same key and that the link is not replaying old traffic.",
		},
	},
	{
		err: ErrRejected,
		info: ErrorInfo{
			Message: "A frame was rejected by signature verification.",
		},
	},

	// ===================
	// Keys
	// ===================
	{
		err: ErrInvalidKeySize,
		info: ErrorInfo{
			Message: "The signing key is not 32 bytes.",
			Action:  "Provide the key as exactly 64 hex characters, or regenerate it with 'mavsign keygen --force'.",
		},
	},
	{
		err: ErrKeyNotLoaded,
		info: ErrorInfo{
			Message: "No signing key is available.",
			Action:  "Run 'mavsign keygen' or set signing.passphrase_env.",
		},
	},
	{
		err: ErrKeyExists,
		info: ErrorInfo{
			Message: "A signing key already exists.",
			Action:  "Use --force to replace it. Every peer will need the new key.",
		},
	},
	{
		err: ErrLockHeld,
		info: ErrorInfo{
			Message: "Another mavsign process is writing the key file.",
			Action:  "Wait for it to finish and retry.",
		},
	},

	// ===================
	// Frames
	// ===================
	{
		err: ErrShortFrame,
		info: ErrorInfo{
			Message: "The input ended in the middle of a frame.",
			Action:  "The capture may be truncated. Frames before the cut were still processed.",
		},
	},
	{
		err: ErrInvalidFrame,
		info: ErrorInfo{
			Message: "The input does not contain valid MAVLink frames.",
			Action:  "Check whether the file is a .tlog and pass --tlog accordingly.",
		},
	},

	// ===================
	// Config & CLI
	// ===================
	{
		err: ErrConfigNil,
		info: ErrorInfo{
			Message: "No configuration was provided.",
		},
	},
	{
		err: ErrConfigInvalidSigning,
		info: ErrorInfo{
			Message: "The signing configuration is invalid.",
			Action:  "Check the signing section of your config file and MAVSIGN_SIGNING_* variables.",
		},
	},
	{
		err: ErrConfigInvalidClock,
		info: ErrorInfo{
			Message: "The clock configuration is invalid.",
			Action:  "clock.source must be 'system' or 'ntp'.",
		},
	},
	{
		err: ErrConfigInvalidMetrics,
		info: ErrorInfo{
			Message: "The metrics configuration is invalid.",
			Action:  "metrics.listen must be host:port or empty.",
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Unknown output format.",
			Action:  "Use --output text or --output json.",
		},
	},
	{
		err: ErrNoInput,
		info: ErrorInfo{
			Message: "No input files were given.",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error, trying a direct
// map hit first and then errors.Is() for wrapped errors.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take. The action is empty when there is none.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
