package transport

import (
	"bytes"
	"fmt"

	"github.com/codahale/disco/hazmat/x25519"
	"github.com/codahale/disco/schemes/complex/noise"
	"github.com/sirupsen/logrus"
)

const (
	// NoiseMessageLength is the largest permitted frame body, in bytes.
	NoiseMessageLength = 65535 - 2

	// NoiseMaxPlaintextSize is the largest plaintext carried by a single transport record, in bytes.
	NoiseMaxPlaintextSize = NoiseMessageLength - 16

	// PSKSize is the required length of a pre-shared key, in bytes.
	PSKSize = 32
)

// Config configures a client or server. The same Config may be shared by many connections and must not be modified
// once in use.
type Config struct {
	// HandshakePattern selects the Noise handshake.
	HandshakePattern noise.HandshakeType

	// KeyPair is the local static key pair, required by patterns which send or pre-share it.
	KeyPair *x25519.KeyPair

	// RemoteKey is the peer's 32-byte static public key, required by patterns where it is known in advance.
	RemoteKey []byte

	// Prologue is data both peers must agree on for the handshake to succeed. It is not sent.
	Prologue []byte

	// PreSharedKey is the 32-byte symmetric key required by psk patterns.
	PreSharedKey []byte

	// StaticPublicKeyProof is sent as the payload of the handshake message which carries the local static key, so the
	// peer's PublicKeyVerifier can authenticate it. See CreateStaticPublicKeyProof.
	StaticPublicKeyProof []byte

	// PublicKeyVerifier is called with the peer's static public key and the payload of the last handshake message
	// received. If it returns false, the handshake fails with ErrAuthenticationFailed. See CreatePublicKeyVerifier.
	PublicKeyVerifier func(publicKey, proof []byte) bool

	// HalfDuplex serializes reads and writes through a single lock, for peers which never send and receive at the same
	// time. One-way patterns are always half-duplex.
	HalfDuplex bool

	// Logger receives the connection's log entries. If nil, the package logger is used.
	Logger logrus.FieldLogger
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return log
}

// clone returns a copy of the config which does not share byte slices with the original.
func (c *Config) clone() *Config {
	cc := *c
	if c.KeyPair != nil {
		cc.KeyPair = c.KeyPair.Clone()
	}
	cc.RemoteKey = bytes.Clone(c.RemoteKey)
	cc.Prologue = bytes.Clone(c.Prologue)
	cc.PreSharedKey = bytes.Clone(c.PreSharedKey)
	cc.StaticPublicKeyProof = bytes.Clone(c.StaticPublicKeyProof)
	return &cc
}

// checkRequirements validates the config for the given role.
func (c *Config) checkRequirements(isClient bool) error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	p, err := noise.Lookup(c.HandshakePattern)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if p.RequiresLocalStatic(isClient) && (c.KeyPair == nil || c.KeyPair.IsZero()) {
		return fmt.Errorf("%w: the %s pattern requires a key pair", ErrInvalidConfig, p.Name)
	}

	if c.RemoteKey != nil && len(c.RemoteKey) != x25519.DHLen {
		return fmt.Errorf("%w: the remote key must be %d bytes", ErrInvalidConfig, x25519.DHLen)
	}

	if p.RequiresRemoteStatic(isClient) && c.RemoteKey == nil {
		return fmt.Errorf("%w: the %s pattern requires the remote key", ErrInvalidConfig, p.Name)
	}

	if p.RequiresPSK() && len(c.PreSharedKey) != PSKSize {
		return fmt.Errorf("%w: the %s pattern requires a %d-byte pre-shared key", ErrInvalidConfig, p.Name, PSKSize)
	}

	// Patterns where the server's static key is sent to the client.
	switch c.HandshakePattern {
	case noise.NX, noise.KX, noise.XX, noise.IX:
		if isClient && c.PublicKeyVerifier == nil {
			return fmt.Errorf("%w: the %s pattern requires a public key verifier", ErrInvalidConfig, p.Name)
		}
		if !isClient && c.StaticPublicKeyProof == nil {
			return fmt.Errorf("%w: the %s pattern requires a static public key proof", ErrInvalidConfig, p.Name)
		}
	}

	// Patterns where the client's static key is sent to the server.
	switch c.HandshakePattern {
	case noise.XN, noise.XK, noise.XX, noise.X, noise.IN, noise.IK, noise.IX:
		if isClient && c.StaticPublicKeyProof == nil {
			return fmt.Errorf("%w: the %s pattern requires a static public key proof", ErrInvalidConfig, p.Name)
		}
		if !isClient && c.PublicKeyVerifier == nil {
			return fmt.Errorf("%w: the %s pattern requires a public key verifier", ErrInvalidConfig, p.Name)
		}
	}

	return nil
}
