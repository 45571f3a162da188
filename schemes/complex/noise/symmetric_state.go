package noise

import (
	"github.com/codahale/disco"
)

// symmetricState is the running transcript of a handshake. Until the first key is mixed in, handshake fields are sent
// in the clear.
type symmetricState struct {
	d     *disco.Duplex
	keyed bool
}

func newSymmetricState(protocolName string) *symmetricState {
	return &symmetricState{d: disco.New(protocolName)}
}

func (ss *symmetricState) mixKey(ikm []byte) {
	ss.d.AD(ikm)
	ss.keyed = true
}

func (ss *symmetricState) mixHash(data []byte) {
	ss.d.AD(data)
}

// mixKeyAndHash absorbs a pre-shared key. It does not mark the state as keyed.
func (ss *symmetricState) mixKeyAndHash(ikm []byte) {
	ss.d.AD(ikm)
}

// encryptAndHash appends plaintext to dst, encrypted and tagged if the state is keyed.
func (ss *symmetricState) encryptAndHash(dst, plaintext []byte) []byte {
	if !ss.keyed {
		return append(dst, plaintext...)
	}

	dst = append(dst, ss.d.SendENC(plaintext)...)
	return append(dst, ss.d.SendMAC(disco.TagSize)...)
}

// decryptAndHash appends the plaintext of ciphertext to dst.
func (ss *symmetricState) decryptAndHash(dst, ciphertext []byte) ([]byte, error) {
	if !ss.keyed {
		return append(dst, ciphertext...), nil
	}

	if len(ciphertext) < disco.TagSize {
		return nil, ErrDecryptionFailed
	}

	split := len(ciphertext) - disco.TagSize
	plaintext := ss.d.RecvENC(ciphertext[:split])
	if !ss.d.RecvMAC(ciphertext[split:]) {
		clear(plaintext)
		return nil, ErrDecryptionFailed
	}
	return append(dst, plaintext...), nil
}

// split derives the initiator-to-responder and responder-to-initiator cipher states. The symmetric state is consumed.
func (ss *symmetricState) split() (c1, c2 *disco.Duplex) {
	c1 = ss.d.Clone()
	c1.MetaAD([]byte("initiator"))
	c1.Ratchet(disco.HashSize)

	c2 = ss.d
	c2.MetaAD([]byte("responder"))
	c2.Ratchet(disco.HashSize)

	ss.d = nil
	return c1, c2
}

// handshakeHash returns a value which binds the full transcript so far, for use as a channel binding.
func (ss *symmetricState) handshakeHash() []byte {
	return ss.d.Peek(disco.HashSize)
}

func (ss *symmetricState) clear() {
	if ss.d != nil {
		ss.d.Clear()
		ss.d = nil
	}
	ss.keyed = false
}
