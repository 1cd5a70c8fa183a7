package config

import (
	"net"
	"time"

	"github.com/mrz1836/mavsign/internal/errors"
)

// Sync interval bounds for the NTP clock.
const (
	MinSyncInterval = time.Minute
	MaxSyncInterval = 24 * time.Hour
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - signing.link_id must be between 0 and 255
//   - clock.source must be "system" or "ntp"
//   - with the ntp source, clock.ntp_server must be set and
//     clock.sync_interval must be between 1m and 24h
//   - metrics.listen, when set, must be a host:port
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateSigningConfig(&cfg.Signing); err != nil {
		return err
	}
	if err := validateClockConfig(&cfg.Clock); err != nil {
		return err
	}
	return validateMetricsConfig(&cfg.Metrics)
}

func validateSigningConfig(cfg *SigningConfig) error {
	if cfg.LinkID < 0 || cfg.LinkID > 255 {
		return errors.Wrapf(errors.ErrConfigInvalidSigning,
			"signing.link_id must be between 0 and 255, got %d", cfg.LinkID)
	}
	return nil
}

func validateClockConfig(cfg *ClockConfig) error {
	switch cfg.Source {
	case ClockSystem:
		return nil
	case ClockNTP:
	default:
		return errors.Wrapf(errors.ErrConfigInvalidClock,
			"clock.source must be %q or %q, got %q", ClockSystem, ClockNTP, cfg.Source)
	}

	if cfg.NTPServer == "" {
		return errors.Wrap(errors.ErrConfigInvalidClock,
			"clock.ntp_server must not be empty when clock.source is ntp")
	}
	if cfg.SyncInterval < MinSyncInterval || cfg.SyncInterval > MaxSyncInterval {
		return errors.Wrapf(errors.ErrConfigInvalidClock,
			"clock.sync_interval must be between %s and %s, got %s",
			MinSyncInterval, MaxSyncInterval, cfg.SyncInterval)
	}
	return nil
}

func validateMetricsConfig(cfg *MetricsConfig) error {
	if cfg.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalidMetrics,
			"metrics.listen must be host:port, got %q", cfg.Listen)
	}
	return nil
}
