// Package keys owns the RSA signing key pair of a deployment: loading it from
// a shared backend, generating it exactly once under a cross-replica lock, and
// exposing the public half for external verifiers.
package keys

import (
	"crypto/rsa"
	"time"
)

const (
	// DefaultBits is the RSA modulus size for generated keys.
	DefaultBits = 2048

	// MinBits is the smallest RSA modulus accepted for generation.
	MinBits = 2048

	// DefaultLockTimeout bounds how long startup waits for another replica
	// holding the generation lock.
	DefaultLockTimeout = 5 * time.Second

	// DefaultKeyName names the key pair inside the backend.
	DefaultKeyName = "signing"
)

// KeyPair is the signing key pair. It is shared read-only by all request
// handlers once EnsureKeys has returned.
type KeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey

	// PublicPEM is the PKIX PEM encoding of PublicKey, exactly as stored.
	PublicPEM []byte

	// Fingerprint is the hex SHA-256 of PublicPEM. Safe to log.
	Fingerprint string
}

// Config holds Provider settings. Zero values fall back to the defaults above.
type Config struct {
	// KeyName identifies the key pair and its lock in the backend.
	KeyName string

	// Bits is the RSA key size used when a new pair is generated.
	Bits int

	// LockTimeout bounds lock acquisition during generation.
	LockTimeout time.Duration

	// Passphrase, when set, seals the private key at rest with AES-GCM.
	// Changing it makes previously stored keys unreadable (ErrKeyCorrupt).
	Passphrase []byte
}

func (c Config) withDefaults() Config {
	if c.KeyName == "" {
		c.KeyName = DefaultKeyName
	}
	if c.Bits == 0 {
		c.Bits = DefaultBits
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	return c
}
