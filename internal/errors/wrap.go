package errors

import "fmt"

// Wrap adds context to an error at a package boundary.
// It returns nil if err is nil, so it is safe to use inline:
//
//	return errors.Wrap(err, "failed to read key file")
//
// The original chain is preserved, so errors.Is() keeps matching sentinels.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted message:
//
//	return errors.Wrapf(err, "failed to verify %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}
