// Package kdf implements DiscoKDF, a key derivation function built on the Disco duplex.
package kdf

import "github.com/codahale/disco"

// MinKeyMaterialSize is the smallest permitted input key material length, in bytes.
const MinKeyMaterialSize = 16

// DeriveKeys derives n bytes of key material from keyMaterial. The output may be split into as many keys as required.
// It returns disco.ErrInvalidParameter if keyMaterial is shorter than MinKeyMaterialSize.
func DeriveKeys(keyMaterial []byte, n int) ([]byte, error) {
	if len(keyMaterial) < MinKeyMaterialSize || n < 0 {
		return nil, disco.ErrInvalidParameter
	}

	d := disco.New("DiscoKDF")
	d.AD(keyMaterial)
	return d.PRF(n), nil
}
