// Package mac implements DiscoMAC, a message authentication code built on the Disco duplex. Messages are not
// encrypted.
package mac

import "github.com/codahale/disco"

// MinKeySize is the smallest permitted key length, in bytes.
const MinKeySize = 16

const protocolName = "DiscoMAC"

// ProtectIntegrity returns plaintext with an authentication tag appended. It returns disco.ErrInvalidParameter if key
// is shorter than MinKeySize.
func ProtectIntegrity(key, plaintext []byte) ([]byte, error) {
	if len(key) < MinKeySize {
		return nil, disco.ErrInvalidParameter
	}

	out := make([]byte, 0, len(plaintext)+disco.TagSize)
	out = append(out, plaintext...)
	return append(out, tag(key, plaintext).SendMAC(disco.TagSize)...), nil
}

// VerifyIntegrity checks the tag appended by ProtectIntegrity and returns the plaintext without it. It returns
// disco.ErrInvalidParameter if key is shorter than MinKeySize, and disco.ErrTamperedData if the input is too short to
// contain a tag or the tag does not verify.
func VerifyIntegrity(key, plaintextAndTag []byte) ([]byte, error) {
	if len(key) < MinKeySize {
		return nil, disco.ErrInvalidParameter
	}

	if len(plaintextAndTag) < disco.TagSize {
		return nil, disco.ErrTamperedData
	}

	split := len(plaintextAndTag) - disco.TagSize
	plaintext := plaintextAndTag[:split]
	if !tag(key, plaintext).RecvMAC(plaintextAndTag[split:]) {
		return nil, disco.ErrTamperedData
	}
	return plaintext, nil
}

func tag(key, plaintext []byte) *disco.Duplex {
	d := disco.New(protocolName)
	d.AD(key)
	d.AD(plaintext)
	return d
}
