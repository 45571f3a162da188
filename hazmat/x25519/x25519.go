// Package x25519 provides the X25519 key pairs and Diffie-Hellman function used by Disco handshakes.
package x25519

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// DHLen is the size, in bytes, of public keys, private keys, and shared secrets.
const DHLen = 32

var (
	// ErrInvalidKey is returned when a key is not exactly DHLen bytes long.
	ErrInvalidKey = errors.New("disco/x25519: invalid key length")

	// ErrLowOrder is returned when a Diffie-Hellman computation produces the all-zero shared secret, which happens when
	// the remote public key is a low-order point.
	ErrLowOrder = errors.New("disco/x25519: low order point")
)

// KeyPair is an X25519 key pair. The zero value has an all-zero public key, which Disco treats as "not set".
type KeyPair struct {
	PrivateKey [DHLen]byte
	PublicKey  [DHLen]byte
}

// GenerateKeyPair returns a new key pair using randomness from r. If r is nil, crypto/rand.Reader is used.
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}

	var kp KeyPair
	if _, err := io.ReadFull(r, kp.PrivateKey[:]); err != nil {
		return nil, err
	}
	kp.derivePublic()
	return &kp, nil
}

// NewKeyPair returns the key pair for the given private key.
func NewKeyPair(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != DHLen {
		return nil, ErrInvalidKey
	}

	var kp KeyPair
	copy(kp.PrivateKey[:], privateKey)
	kp.derivePublic()
	return &kp, nil
}

func (kp *KeyPair) derivePublic() {
	// Multiplication by the base point cannot produce a low-order result.
	pub, _ := curve25519.X25519(kp.PrivateKey[:], curve25519.Basepoint)
	copy(kp.PublicKey[:], pub)
}

// NewPublicKey returns a key pair holding only the given public key, as used for remote keys.
func NewPublicKey(publicKey []byte) (*KeyPair, error) {
	if len(publicKey) != DHLen {
		return nil, ErrInvalidKey
	}

	var kp KeyPair
	copy(kp.PublicKey[:], publicKey)
	return &kp, nil
}

// DH returns the X25519 shared secret between the local private key and the remote public key.
func (kp *KeyPair) DH(publicKey [DHLen]byte) ([DHLen]byte, error) {
	var shared [DHLen]byte
	out, err := curve25519.X25519(kp.PrivateKey[:], publicKey[:])
	if err != nil {
		return shared, ErrLowOrder
	}
	copy(shared[:], out)
	clear(out)
	return shared, nil
}

// IsZero reports whether the public key is all zeros. The comparison runs in constant time.
func (kp *KeyPair) IsZero() bool {
	var acc byte
	for _, b := range kp.PublicKey {
		acc |= b
	}
	return acc == 0
}

// Clone returns a copy of the key pair.
func (kp *KeyPair) Clone() *KeyPair {
	c := *kp
	return &c
}

// Clear overwrites both halves of the key pair with zeros.
func (kp *KeyPair) Clear() {
	clear(kp.PrivateKey[:])
	clear(kp.PublicKey[:])
}
