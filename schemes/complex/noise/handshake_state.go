// Package noise implements Noise handshakes whose symmetric operations are carried out by the Disco duplex.
//
// A HandshakeState runs one side of a handshake. The two sides alternate calls to WriteMessage and ReadMessage, starting
// with the initiator writing. When the final message has been processed, both calls return the pair of cipher states
// derived from the transcript: c1 encrypts from initiator to responder and c2 from responder to initiator. One-way
// patterns return only c1.
package noise

import (
	"bytes"
	"fmt"
	"io"

	"github.com/codahale/disco"
	"github.com/codahale/disco/hazmat/x25519"
)

// HandshakeState is the state of one side of a handshake. It must not be used after an error.
type HandshakeState struct {
	ss      *symmetricState
	pattern *Pattern

	s, e, rs, re x25519.KeyPair
	psk          []byte

	initiator   bool
	shouldWrite bool
	messages    []MessagePattern

	ephemeral *x25519.KeyPair
	rand      io.Reader
	hash      []byte
	err       error
}

// Initialize begins a handshake of the given type. The local static key pair s and the remote static public key rs
// are required when the pattern's pre-messages or tokens call for them. Pre-known ephemeral keys (e and re) are only
// used by fallback patterns, which are not supported; they must be nil.
func Initialize(t HandshakeType, initiator bool, prologue []byte, s, e, rs, re *x25519.KeyPair) (*HandshakeState, error) {
	p, err := Lookup(t)
	if err != nil {
		return nil, err
	}

	if e != nil || re != nil {
		return nil, ErrNotSupported
	}

	h := &HandshakeState{
		ss:          newSymmetricState(p.ProtocolName()),
		pattern:     p,
		initiator:   initiator,
		shouldWrite: initiator,
		messages:    p.Messages,
	}

	h.ss.mixHash(prologue)

	if s != nil {
		h.s = *s
	}

	if rs != nil {
		h.rs = x25519.KeyPair{PublicKey: rs.PublicKey}
	}

	// The initiator's pre-message keys are absorbed before the responder's.
	for side, pre := range p.PreMessages {
		local := (side == 0) == initiator
		for _, tok := range pre {
			if tok != TokenS {
				h.Clear()
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedToken, tok)
			}

			key := &h.rs
			if local {
				key = &h.s
			}

			if key.IsZero() {
				h.Clear()
				if local {
					return nil, fmt.Errorf("%w: local static key required by %s", ErrMissingKey, p.Name)
				}
				return nil, fmt.Errorf("%w: remote static key required by %s", ErrMissingKey, p.Name)
			}

			h.ss.mixHash(key.PublicKey[:])
		}
	}

	return h, nil
}

// SetPSK sets the pre-shared key mixed in by psk tokens. It must be called before the first message is processed. A
// non-empty pre-shared key also causes ephemeral public keys to be mixed in as key material.
func (h *HandshakeState) SetPSK(psk []byte) {
	h.psk = bytes.Clone(psk)
}

// SetEphemeral fixes the ephemeral key pair used by the next e token instead of generating a fresh one. It exists to
// produce reproducible handshakes in tests.
func (h *HandshakeState) SetEphemeral(kp *x25519.KeyPair) {
	h.ephemeral = kp.Clone()
}

// SetRandom sets the source of randomness used to generate ephemeral keys. If r is nil, crypto/rand is used.
func (h *HandshakeState) SetRandom(r io.Reader) {
	h.rand = r
}

// Pattern returns the handshake pattern.
func (h *HandshakeState) Pattern() *Pattern {
	return h.pattern
}

// ShouldWrite reports whether the next call must be WriteMessage.
func (h *HandshakeState) ShouldWrite() bool {
	return h.shouldWrite
}

// Remaining returns the number of messages left in the handshake.
func (h *HandshakeState) Remaining() int {
	return len(h.messages)
}

// RemoteStatic returns the peer's static public key, or nil if it is not known.
func (h *HandshakeState) RemoteStatic() []byte {
	if h.rs.IsZero() {
		return nil
	}
	return bytes.Clone(h.rs.PublicKey[:])
}

// RemoteEphemeral returns the peer's ephemeral public key, or nil if it has not been received.
func (h *HandshakeState) RemoteEphemeral() []byte {
	if h.re.IsZero() {
		return nil
	}
	return bytes.Clone(h.re.PublicKey[:])
}

// HandshakeHash returns a 32-byte value bound to the handshake transcript. After the handshake completes it returns the
// value as of the final message, which both sides share and which may be used for channel binding.
func (h *HandshakeState) HandshakeHash() []byte {
	if h.hash != nil {
		return bytes.Clone(h.hash)
	}
	if h.ss == nil || h.ss.d == nil {
		return nil
	}
	return h.ss.handshakeHash()
}

// WriteMessage appends the next handshake message, carrying payload, to out and returns it. If this was the final
// message, it also returns the derived cipher states.
func (h *HandshakeState) WriteMessage(payload, out []byte) (_ []byte, c1, c2 *disco.Duplex, err error) {
	if err := h.check(true); err != nil {
		return out, nil, nil, err
	}

	defer func() {
		if err != nil {
			h.err = err
		}
	}()

	for _, tok := range h.messages[0] {
		switch tok {
		case TokenE:
			if err := h.generateEphemeral(); err != nil {
				return out, nil, nil, err
			}
			out = append(out, h.e.PublicKey[:]...)
			h.ss.mixHash(h.e.PublicKey[:])
			if len(h.psk) > 0 {
				h.ss.mixKey(h.e.PublicKey[:])
			}
		case TokenS:
			if h.s.IsZero() {
				return out, nil, nil, fmt.Errorf("%w: local static key required by %s", ErrMissingKey, h.pattern.Name)
			}
			out = h.ss.encryptAndHash(out, h.s.PublicKey[:])
		default:
			if err := h.mixToken(tok); err != nil {
				return out, nil, nil, err
			}
		}
	}

	out = h.ss.encryptAndHash(out, payload)
	c1, c2 = h.advance()
	return out, c1, c2, nil
}

// ReadMessage processes the next handshake message and appends its payload to payload. If this was the final message,
// it also returns the derived cipher states.
func (h *HandshakeState) ReadMessage(message, payload []byte) (_ []byte, c1, c2 *disco.Duplex, err error) {
	if err := h.check(false); err != nil {
		return payload, nil, nil, err
	}

	defer func() {
		if err != nil {
			h.err = err
		}
	}()

	for _, tok := range h.messages[0] {
		switch tok {
		case TokenE:
			if len(message) < x25519.DHLen {
				return payload, nil, nil, fmt.Errorf("%w: ephemeral key", ErrMessageTooShort)
			}
			copy(h.re.PublicKey[:], message[:x25519.DHLen])
			message = message[x25519.DHLen:]
			h.ss.mixHash(h.re.PublicKey[:])
			if len(h.psk) > 0 {
				h.ss.mixKey(h.re.PublicKey[:])
			}
		case TokenS:
			n := x25519.DHLen
			if h.ss.keyed {
				n += disco.TagSize
			}
			if len(message) < n {
				return payload, nil, nil, fmt.Errorf("%w: static key", ErrMessageTooShort)
			}
			pub, err := h.ss.decryptAndHash(nil, message[:n])
			if err != nil {
				return payload, nil, nil, fmt.Errorf("%w: static key", err)
			}
			h.rs = x25519.KeyPair{}
			copy(h.rs.PublicKey[:], pub)
			message = message[n:]
		default:
			if err := h.mixToken(tok); err != nil {
				return payload, nil, nil, err
			}
		}
	}

	payload, err = h.ss.decryptAndHash(payload, message)
	if err != nil {
		return payload, nil, nil, fmt.Errorf("%w: payload", err)
	}

	c1, c2 = h.advance()
	return payload, c1, c2, nil
}

// Clear zeroes the key material held by the handshake state.
func (h *HandshakeState) Clear() {
	h.s.Clear()
	h.e.Clear()
	h.rs.Clear()
	h.re.Clear()
	clear(h.psk)
	if h.ephemeral != nil {
		h.ephemeral.Clear()
		h.ephemeral = nil
	}
	if h.ss != nil {
		h.ss.clear()
	}
}

func (h *HandshakeState) check(write bool) error {
	if h.err != nil {
		return h.err
	}

	if len(h.messages) == 0 {
		return fmt.Errorf("%w: handshake is complete", ErrProtocol)
	}

	if write && !h.shouldWrite {
		return fmt.Errorf("%w: expected ReadMessage", ErrProtocol)
	} else if !write && h.shouldWrite {
		return fmt.Errorf("%w: expected WriteMessage", ErrProtocol)
	}
	return nil
}

func (h *HandshakeState) generateEphemeral() error {
	if h.ephemeral != nil {
		h.e = *h.ephemeral
		h.ephemeral.Clear()
		h.ephemeral = nil
		return nil
	}

	kp, err := x25519.GenerateKeyPair(h.rand)
	if err != nil {
		return fmt.Errorf("disco/noise: unable to generate ephemeral key: %w", err)
	}
	h.e = *kp
	kp.Clear()
	return nil
}

// mixToken processes one of the Diffie-Hellman tokens or the psk token.
func (h *HandshakeState) mixToken(tok Token) error {
	switch tok {
	case TokenEE:
		return h.dh(&h.e, &h.re)
	case TokenES:
		if h.initiator {
			return h.dh(&h.e, &h.rs)
		}
		return h.dh(&h.s, &h.re)
	case TokenSE:
		if h.initiator {
			return h.dh(&h.s, &h.re)
		}
		return h.dh(&h.e, &h.rs)
	case TokenSS:
		return h.dh(&h.s, &h.rs)
	case TokenPSK:
		if len(h.psk) == 0 {
			return fmt.Errorf("%w: pre-shared key required by %s", ErrMissingKey, h.pattern.Name)
		}
		h.ss.mixKeyAndHash(h.psk)
		return nil
	default:
		return fmt.Errorf("%w: unrecognized token %s", ErrProtocol, tok)
	}
}

func (h *HandshakeState) dh(local, remote *x25519.KeyPair) error {
	if local.IsZero() || remote.IsZero() {
		return fmt.Errorf("%w: key required by %s", ErrMissingKey, h.pattern.Name)
	}

	shared, err := local.DH(remote.PublicKey)
	if err != nil {
		return err
	}
	h.ss.mixKey(shared[:])
	clear(shared[:])
	return nil
}

// advance moves to the next message pattern and flips the turn. After the final message it splits the symmetric state.
func (h *HandshakeState) advance() (c1, c2 *disco.Duplex) {
	h.messages = h.messages[1:]
	h.shouldWrite = !h.shouldWrite

	if len(h.messages) > 0 {
		return nil, nil
	}

	h.hash = h.ss.handshakeHash()
	c1, c2 = h.ss.split()
	if h.pattern.Type.IsOneWay() {
		c2.Clear()
		c2 = nil
	}
	return c1, c2
}
