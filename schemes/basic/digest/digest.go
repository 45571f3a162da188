// Package digest implements DiscoHash, a hash function built on the Disco duplex.
package digest

import (
	"hash"

	"github.com/codahale/disco"
)

const (
	// MinSize is the smallest permitted output length, in bytes.
	MinSize = 32

	protocolName = "DiscoHash"

	// blockSize is the STROBE-128 rate: the 200-byte Keccak state minus the 32-byte capacity and two bytes of
	// framing.
	blockSize = 166
)

// Sum returns an n-byte hash of input. It returns disco.ErrInvalidParameter if n is less than MinSize.
func Sum(input []byte, n int) ([]byte, error) {
	if n < MinSize {
		return nil, disco.ErrInvalidParameter
	}

	d := disco.New(protocolName)
	d.AD(input)
	return d.PRF(n), nil
}

// Hash is a streaming DiscoHash. Writes are absorbed as a single framed input, so writing a and then b produces the
// same digest as writing a||b, and the same digest as Sum(a||b, n).
type Hash struct {
	d         *disco.Duplex
	size      int
	streaming bool
}

// New returns a streaming hash with an n-byte output. It returns disco.ErrInvalidParameter if n is less than MinSize.
func New(n int) (*Hash, error) {
	if n < MinSize {
		return nil, disco.ErrInvalidParameter
	}

	return &Hash{d: disco.New(protocolName), size: n}, nil
}

// Write absorbs p as a continuation of the current input. It never returns an error.
func (h *Hash) Write(p []byte) (n int, err error) {
	h.d.ADStream(p, h.streaming)
	h.streaming = true
	return len(p), nil
}

// WriteTuple absorbs p as a separately framed input. Unlike Write, WriteTuple(a) followed by WriteTuple(b) is not
// equivalent to WriteTuple(a||b), which makes it suitable for hashing structured values without an explicit encoding.
// A Write following a WriteTuple starts a new frame.
func (h *Hash) WriteTuple(p []byte) {
	h.d.AD(p)
	h.streaming = false
}

// Sum appends the digest of everything written so far to b. It does not change the underlying state, so writes may
// continue after a call to Sum.
func (h *Hash) Sum(b []byte) []byte {
	return append(b, h.d.Peek(h.size)...)
}

// Reset discards everything written so far.
func (h *Hash) Reset() {
	h.d = disco.New(protocolName)
	h.streaming = false
}

// Size returns the digest length, in bytes.
func (h *Hash) Size() int {
	return h.size
}

// BlockSize returns the rate of the underlying duplex, in bytes.
func (h *Hash) BlockSize() int {
	return blockSize
}

// Clone returns an independent copy of the hash.
func (h *Hash) Clone() *Hash {
	return &Hash{d: h.d.Clone(), size: h.size, streaming: h.streaming}
}

var _ hash.Hash = (*Hash)(nil)
