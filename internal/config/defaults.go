package config

import "github.com/mrz1836/mavsign/internal/constants"

// DefaultConfig returns the built-in defaults: link 0, signing outbound
// traffic and refusing unsigned inbound traffic, with the system clock.
func DefaultConfig() *Config {
	return &Config{
		Signing: SigningConfig{
			LinkID:        0,
			SignOutgoing:  true,
			AllowUnsigned: false,
		},
		Clock: ClockConfig{
			Source:       ClockSystem,
			NTPServer:    constants.DefaultNTPServer,
			SyncInterval: constants.DefaultNTPSyncInterval,
		},
	}
}
