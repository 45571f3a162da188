// Package disco implements the symmetric core of the Disco protocol: a STROBE-128 duplex construction which serves as
// the hash, key derivation function, stream cipher, and MAC for every other package in this module.
//
// A Duplex absorbs a transcript of framed operations. Outputs (PRF, MAC, and ciphertexts) are deterministic functions
// of the full transcript, so two parties which absorb the same inputs in the same order derive the same keys and
// verify each other's tags. See www.discocrypto.com/disco.html for the construction.
package disco

import (
	"crypto/subtle"
	"fmt"

	"github.com/mimoo/StrobeGo/strobe"
)

const (
	// Security is the STROBE security level, in bits.
	Security = 128

	// TagSize is the size, in bytes, of the MACs used throughout Disco.
	TagSize = 16

	// HashSize is the size, in bytes, of hash-length outputs (handshake hashes and ratchets).
	HashSize = 32
)

// Duplex is a STROBE-128 duplex state.
//
// A Duplex is not safe for concurrent use. Use Clone to derive independent states.
type Duplex struct {
	s     *strobe.Strobe
	label string
}

// New creates a new duplex state with the given protocol name for domain separation. Two states created with different
// names produce cryptographically independent outputs.
func New(protocolName string) *Duplex {
	s := strobe.InitStrobe(protocolName, Security)
	return &Duplex{s: &s, label: protocolName}
}

func (d *Duplex) String() string {
	return fmt.Sprintf("Duplex(%s)", d.label)
}

// AD absorbs data as associated data, starting a new operation.
func (d *Duplex) AD(data []byte) {
	d.s.AD(false, data)
}

// MetaAD absorbs data as metadata. Metadata is framed separately from AD, so the same bytes absorbed by AD and by
// MetaAD produce different states.
func (d *Duplex) MetaAD(data []byte) {
	d.s.AD(true, data)
}

// ADStream absorbs data as associated data. If more is true, the data continues the previous AD operation, so that
// ADStream(a, false) followed by ADStream(b, true) is equivalent to AD(a || b).
func (d *Duplex) ADStream(data []byte, more bool) {
	d.s.Operate(false, "AD", data, 0, more)
}

// PRF squeezes n bytes of pseudorandom output from the state. The PRF operation becomes part of the transcript. A
// zero-length PRF returns an empty slice and leaves the state unchanged.
//
// Panics if n is negative.
func (d *Duplex) PRF(n int) []byte {
	if n < 0 {
		panic("disco: PRF output length must not be negative")
	}
	if n == 0 {
		return []byte{}
	}
	return d.s.PRF(n)
}

// Peek returns n bytes of PRF output from a clone of the state. The receiver is not modified, so interleaving Peek
// calls with ADStream calls does not change the result of later operations.
func (d *Duplex) Peek(n int) []byte {
	return d.Clone().PRF(n)
}

// SendENC encrypts plaintext without authentication and returns the ciphertext. The ciphertext is absorbed into the
// transcript, so a following SendMAC authenticates it.
func (d *Duplex) SendENC(plaintext []byte) []byte {
	return d.s.Send_ENC_unauthenticated(false, plaintext)
}

// RecvENC decrypts ciphertext produced by SendENC on a state with an identical transcript. The plaintext is not
// authenticated until RecvMAC succeeds.
func (d *Duplex) RecvENC(ciphertext []byte) []byte {
	return d.s.Recv_ENC_unauthenticated(false, ciphertext)
}

// SendMAC returns an n-byte MAC over the transcript.
//
// Panics if n is not positive.
func (d *Duplex) SendMAC(n int) []byte {
	if n <= 0 {
		panic("disco: MAC length must be positive")
	}
	return d.s.Send_MAC(false, n)
}

// RecvMAC verifies a MAC produced by SendMAC on a state with an identical transcript. On failure, the state is
// desynchronized and must be discarded. An empty tag never verifies.
func (d *Duplex) RecvMAC(tag []byte) bool {
	if len(tag) == 0 {
		return false
	}
	return d.s.Recv_MAC(false, tag)
}

// Ratchet irreversibly overwrites n bytes of the state, preventing the recovery of prior states should the current
// state be compromised.
//
// Panics if n is not positive.
func (d *Duplex) Ratchet(n int) {
	if n <= 0 {
		panic("disco: ratchet length must be positive")
	}
	d.s.RATCHET(n)
}

// Clone returns an independent copy of the state. The original and clone evolve independently.
func (d *Duplex) Clone() *Duplex {
	return &Duplex{s: d.s.Clone(), label: d.label}
}

// Equal compares the outputs of the two states in constant time, returning 1 if they are equal, 0 if not. Neither
// state is modified.
func (d *Duplex) Equal(other *Duplex) int {
	return subtle.ConstantTimeCompare([]byte(d.label), []byte(other.label)) &
		subtle.ConstantTimeCompare(d.Peek(HashSize), other.Peek(HashSize))
}

// Clear ratchets the entire state and invalidates the instance. After Clear, the instance must not be used.
func (d *Duplex) Clear() {
	if d.s != nil {
		d.s.RATCHET(stateSize)
		d.s = nil
	}
	d.label = ""
}

// stateSize is the size of the Keccak-f[1600] state, in bytes.
const stateSize = 200
