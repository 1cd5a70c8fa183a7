// Package logging keeps signing key material out of log output.
//
// Keys are never logged on purpose; the filters here catch the accidental
// cases, such as a key file's contents in an error message or a passphrase
// echoed from the environment.
package logging

import (
	"io"
	"regexp"

	"github.com/rs/zerolog"
)

// RedactedValue replaces sensitive data.
const RedactedValue = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{ //nolint:gochecknoglobals // compiled once
	// Raw 32-byte keys in hex, as stored in key files.
	regexp.MustCompile(`\b[0-9a-fA-F]{64}\b`),

	// passphrase=..., "passphrase":"..." and the MAVSIGN_PASSPHRASE=... env form.
	regexp.MustCompile(`(?i)(passphrase|password|passwd)"?\s*[:=]\s*["']?[^\s"',}]+["']?`),

	// secret_key=..., signing_key: ..., key=... with a long value.
	regexp.MustCompile(`(?i)((secret|signing)[_-]?key|\bkey)"?\s*[:=]\s*["']?[^\s"',}]{16,}["']?`),

	// PEM private keys.
	regexp.MustCompile(`-----BEGIN[A-Z ]*PRIVATE KEY-----`),
}

// SensitiveDataHook flags log events whose message looks like it carries
// key material. zerolog does not let a hook rewrite the message, so the
// actual redaction is done by FilteringWriter.
type SensitiveDataHook struct{}

// NewSensitiveDataHook creates a SensitiveDataHook.
func NewSensitiveDataHook() *SensitiveDataHook {
	return &SensitiveDataHook{}
}

// Run implements zerolog.Hook.
func (h *SensitiveDataHook) Run(e *zerolog.Event, _ zerolog.Level, msg string) {
	if ContainsSensitiveData(msg) {
		e.Bool("contains_filtered_data", true)
	}
}

// ContainsSensitiveData reports whether s matches any sensitive pattern.
func ContainsSensitiveData(s string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// FilterSensitiveValue replaces every sensitive match in value with RedactedValue.
func FilterSensitiveValue(value string) string {
	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// FilteringWriter redacts sensitive data on its way to w. The CLI wraps
// every log sink in one.
type FilteringWriter struct {
	w io.Writer
}

// NewFilteringWriter wraps w.
func NewFilteringWriter(w io.Writer) *FilteringWriter {
	return &FilteringWriter{w: w}
}

// Write implements io.Writer. It reports len(p) on success even when the
// filtered output is shorter, so callers never see a short write.
func (fw *FilteringWriter) Write(p []byte) (int, error) {
	if _, err := fw.w.Write([]byte(FilterSensitiveValue(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
