// Package aead implements DiscoAEAD, a randomized authenticated encryption scheme built on the Disco duplex.
//
// Each call to Encrypt draws a fresh 192-bit nonce, which is large enough to be chosen at random without a meaningful
// risk of collision. Ciphertexts have the form nonce || encrypted plaintext || tag.
package aead

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/codahale/disco"
)

const (
	// NonceSize is the size, in bytes, of the random nonce prepended to each ciphertext.
	NonceSize = 24

	// Overhead is the number of bytes a ciphertext is longer than its plaintext.
	Overhead = NonceSize + disco.TagSize

	// MinKeySize is the smallest permitted key length, in bytes.
	MinKeySize = 16

	protocolName = "DiscoAEAD"
)

// random is the source of nonces.
var random io.Reader = rand.Reader

// Encrypt encrypts and authenticates plaintext with key. It returns disco.ErrInvalidParameter if key is shorter than
// MinKeySize.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) < MinKeySize {
		return nil, disco.ErrInvalidParameter
	}

	out := make([]byte, NonceSize, len(plaintext)+Overhead)
	if _, err := io.ReadFull(random, out); err != nil {
		return nil, fmt.Errorf("disco/aead: unable to generate nonce: %w", err)
	}

	d := disco.New(protocolName)
	d.AD(key)
	d.AD(out)
	out = append(out, d.SendENC(plaintext)...)
	return append(out, d.SendMAC(disco.TagSize)...), nil
}

// Decrypt authenticates and decrypts a ciphertext produced by Encrypt. It returns disco.ErrInvalidParameter if key is
// shorter than MinKeySize or ciphertext is shorter than Overhead, and disco.ErrTamperedData if the ciphertext was not
// produced by Encrypt with the same key.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(key) < MinKeySize || len(ciphertext) < Overhead {
		return nil, disco.ErrInvalidParameter
	}

	nonce := ciphertext[:NonceSize]
	body := ciphertext[NonceSize : len(ciphertext)-disco.TagSize]
	tag := ciphertext[len(ciphertext)-disco.TagSize:]

	d := disco.New(protocolName)
	d.AD(key)
	d.AD(nonce)
	plaintext := d.RecvENC(body)
	if !d.RecvMAC(tag) {
		clear(plaintext)
		return nil, disco.ErrTamperedData
	}
	return plaintext, nil
}
