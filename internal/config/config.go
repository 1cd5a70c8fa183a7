// Package config provides layered configuration for mavsign.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (MAVSIGN_* prefix, e.g. MAVSIGN_SIGNING_LINK_ID)
//  3. Project config (.mavsign/config.yaml)
//  4. Global config (~/.mavsign/config.yaml)
//  5. Built-in defaults
//
// This package may import internal/constants and internal/errors only.
package config

import "time"

// Clock sources.
const (
	ClockSystem = "system"
	ClockNTP    = "ntp"
)

// Config is the root configuration structure.
type Config struct {
	// Signing holds the per-connection signing policy and key location.
	Signing SigningConfig `yaml:"signing" mapstructure:"signing" json:"signing"`

	// Clock selects where signature timestamps come from.
	Clock ClockConfig `yaml:"clock" mapstructure:"clock" json:"clock"`

	// Metrics controls the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics" json:"metrics"`
}

// SigningConfig holds the signing policy applied to each connection.
type SigningConfig struct {
	// LinkID is written into every frame this side signs. Range 0..255.
	LinkID int `yaml:"link_id" mapstructure:"link_id" json:"link_id"`

	// SignOutgoing flags outbound MAVLink 2 frames as signed before signing them.
	SignOutgoing bool `yaml:"sign_outgoing" mapstructure:"sign_outgoing" json:"sign_outgoing"`

	// AllowUnsigned accepts inbound frames that carry no signature.
	AllowUnsigned bool `yaml:"allow_unsigned" mapstructure:"allow_unsigned" json:"allow_unsigned"`

	// KeyFile is the hex key file. Empty means ~/.mavsign/keys/signing.key.
	KeyFile string `yaml:"key_file" mapstructure:"key_file" json:"key_file"`

	// PassphraseEnv names an environment variable holding a passphrase.
	// When set, the key is SHA-256 of that passphrase and KeyFile is ignored.
	PassphraseEnv string `yaml:"passphrase_env" mapstructure:"passphrase_env" json:"passphrase_env"`
}

// ClockConfig selects the timestamp source.
type ClockConfig struct {
	// Source is "system" or "ntp".
	Source string `yaml:"source" mapstructure:"source" json:"source"`

	// NTPServer is queried when Source is "ntp".
	NTPServer string `yaml:"ntp_server" mapstructure:"ntp_server" json:"ntp_server"`

	// SyncInterval is the time between NTP queries.
	SyncInterval time.Duration `yaml:"sync_interval" mapstructure:"sync_interval" json:"sync_interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables it.
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen"`
}

// UsesNTP reports whether timestamps come from the NTP-corrected clock.
func (c ClockConfig) UsesNTP() bool {
	return c.Source == ClockNTP
}
