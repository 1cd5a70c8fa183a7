package signing

import "github.com/mrz1836/mavsign/internal/crypto"

// Config is the immutable signing policy of one connection.
// It is safe to share between goroutines.
type Config struct {
	key           crypto.SecretKey
	linkID        uint8
	signOutgoing  bool
	allowUnsigned bool
}

// NewConfig creates a signing configuration.
func NewConfig(key crypto.SecretKey, linkID uint8, signOutgoing, allowUnsigned bool) Config {
	return Config{
		key:           key,
		linkID:        linkID,
		signOutgoing:  signOutgoing,
		allowUnsigned: allowUnsigned,
	}
}

// LinkID is written into every frame this connection signs.
func (c Config) LinkID() uint8 { return c.linkID }

// SignOutgoing reports whether the connection wants its outbound frames signed.
// Context does not consult it; the layer that writes frames does.
func (c Config) SignOutgoing() bool { return c.signOutgoing }

// AllowUnsigned reports whether unsigned inbound frames are accepted.
func (c Config) AllowUnsigned() bool { return c.allowUnsigned }

// KeyFingerprint identifies the secret key in logs without revealing it.
func (c Config) KeyFingerprint() string { return c.key.Fingerprint() }
