package transport

import (
	"crypto/ed25519"
	"fmt"

	"github.com/codahale/disco/hazmat/x25519"
)

// CreateStaticPublicKeyProof signs publicKey with a root signing key, producing a value suitable for
// Config.StaticPublicKeyProof. The signature is a plain Ed25519 signature over the 32-byte public key.
func CreateStaticPublicKeyProof(rootPrivateKey ed25519.PrivateKey, publicKey []byte) ([]byte, error) {
	if len(rootPrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: the root private key must be %d bytes", ErrInvalidConfig, ed25519.PrivateKeySize)
	}

	if len(publicKey) != x25519.DHLen {
		return nil, fmt.Errorf("%w: the public key must be %d bytes", ErrInvalidConfig, x25519.DHLen)
	}

	return ed25519.Sign(rootPrivateKey, publicKey), nil
}

// CreatePublicKeyVerifier returns a Config.PublicKeyVerifier which accepts static public keys signed by the root key.
func CreatePublicKeyVerifier(rootPublicKey ed25519.PublicKey) func(publicKey, proof []byte) bool {
	root := append(ed25519.PublicKey(nil), rootPublicKey...)
	return func(publicKey, proof []byte) bool {
		if len(root) != ed25519.PublicKeySize || len(publicKey) != x25519.DHLen || len(proof) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(root, publicKey, proof)
	}
}
