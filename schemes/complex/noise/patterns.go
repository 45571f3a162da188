package noise

import "fmt"

// HandshakeType identifies a handshake pattern.
type HandshakeType int8

// The supported handshake patterns. N, K, and X are one-way patterns; the rest are interactive.
const (
	N HandshakeType = iota
	K
	X
	KK
	NX
	NK
	XX
	KX
	XK
	IK
	IX
	NNpsk2
	NN
	KN
	XN
	IN
)

// String returns the pattern's name, as used in the protocol name.
func (t HandshakeType) String() string {
	if p, ok := registry[t]; ok {
		return p.Name
	}
	return fmt.Sprintf("HandshakeType(%d)", int8(t))
}

// IsOneWay reports whether t is a one-way pattern, in which only the initiator sends messages.
func (t HandshakeType) IsOneWay() bool {
	return t == N || t == K || t == X
}

// Token is a single step of a message pattern.
type Token uint8

const (
	TokenE Token = iota + 1
	TokenS
	TokenEE
	TokenES
	TokenSE
	TokenSS
	TokenPSK
)

var tokenNames = [...]string{
	TokenE:   "e",
	TokenS:   "s",
	TokenEE:  "ee",
	TokenES:  "es",
	TokenSE:  "se",
	TokenSS:  "ss",
	TokenPSK: "psk",
}

func (t Token) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return fmt.Sprintf("Token(%d)", uint8(t))
}

// MessagePattern is the sequence of tokens processed for a single handshake message.
type MessagePattern []Token

// Pattern describes a handshake: the keys each side knows in advance and the messages exchanged.
type Pattern struct {
	Type HandshakeType
	Name string

	// PreMessages holds the initiator's and the responder's pre-message tokens, in that order.
	PreMessages [2]MessagePattern

	// Messages alternate between initiator and responder, starting with the initiator.
	Messages []MessagePattern
}

// Lookup returns the pattern registered for t.
func Lookup(t HandshakeType) (*Pattern, error) {
	p, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPattern, int8(t))
	}
	return p, nil
}

// ProtocolName returns the name absorbed when a handshake using p begins.
func (p *Pattern) ProtocolName() string {
	return "Noise_" + p.Name + "_25519_STROBEv1.0.2"
}

// RequiresLocalStatic reports whether the initiator (or responder) must be configured with a static key pair.
func (p *Pattern) RequiresLocalStatic(initiator bool) bool {
	return p.uses(initiator, TokenS)
}

// RequiresRemoteStatic reports whether the initiator (or responder) must know the peer's static public key in
// advance.
func (p *Pattern) RequiresRemoteStatic(initiator bool) bool {
	if initiator {
		return len(p.PreMessages[1]) > 0
	}
	return len(p.PreMessages[0]) > 0
}

// RequiresPSK reports whether the pattern includes a psk token.
func (p *Pattern) RequiresPSK() bool {
	for _, m := range p.Messages {
		for _, tok := range m {
			if tok == TokenPSK {
				return true
			}
		}
	}
	return false
}

// uses reports whether the given side sends tok in a pre-message or a message.
func (p *Pattern) uses(initiator bool, tok Token) bool {
	side := 0
	if !initiator {
		side = 1
	}

	for _, t := range p.PreMessages[side] {
		if t == tok {
			return true
		}
	}

	for i, m := range p.Messages {
		if i%2 != side {
			continue
		}
		for _, t := range m {
			if t == tok {
				return true
			}
		}
	}
	return false
}

var patterns = []Pattern{
	// One-way patterns.
	{
		Type:        N,
		Name:        "N",
		PreMessages: [2]MessagePattern{nil, {TokenS}},
		Messages:    []MessagePattern{{TokenE, TokenES}},
	},
	{
		Type:        K,
		Name:        "K",
		PreMessages: [2]MessagePattern{{TokenS}, {TokenS}},
		Messages:    []MessagePattern{{TokenE, TokenES, TokenSS}},
	},
	{
		Type:        X,
		Name:        "X",
		PreMessages: [2]MessagePattern{nil, {TokenS}},
		Messages:    []MessagePattern{{TokenE, TokenES, TokenS, TokenSS}},
	},

	// Interactive patterns.
	{
		Type:        KK,
		Name:        "KK",
		PreMessages: [2]MessagePattern{{TokenS}, {TokenS}},
		Messages: []MessagePattern{
			{TokenE, TokenES, TokenSS},
			{TokenE, TokenEE, TokenSE},
		},
	},
	{
		Type: NX,
		Name: "NX",
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE, TokenS, TokenES},
		},
	},
	{
		Type:        NK,
		Name:        "NK",
		PreMessages: [2]MessagePattern{nil, {TokenS}},
		Messages: []MessagePattern{
			{TokenE, TokenES},
			{TokenE, TokenEE},
		},
	},
	{
		Type: XX,
		Name: "XX",
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE, TokenS, TokenES},
			{TokenS, TokenSE},
		},
	},
	{
		Type:        KX,
		Name:        "KX",
		PreMessages: [2]MessagePattern{{TokenS}, nil},
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE, TokenSE, TokenS, TokenES},
		},
	},
	{
		Type:        XK,
		Name:        "XK",
		PreMessages: [2]MessagePattern{nil, {TokenS}},
		Messages: []MessagePattern{
			{TokenE, TokenES},
			{TokenE, TokenEE},
			{TokenS, TokenSE},
		},
	},
	{
		Type:        IK,
		Name:        "IK",
		PreMessages: [2]MessagePattern{nil, {TokenS}},
		Messages: []MessagePattern{
			{TokenE, TokenES, TokenS, TokenSS},
			{TokenE, TokenEE, TokenSE},
		},
	},
	{
		Type: IX,
		Name: "IX",
		Messages: []MessagePattern{
			{TokenE, TokenS},
			{TokenE, TokenEE, TokenSE, TokenS, TokenES},
		},
	},
	{
		Type: NNpsk2,
		Name: "NNpsk2",
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE, TokenPSK},
		},
	},
	{
		Type: NN,
		Name: "NN",
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE},
		},
	},
	{
		Type:        KN,
		Name:        "KN",
		PreMessages: [2]MessagePattern{{TokenS}, nil},
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE, TokenSE},
		},
	},
	{
		Type: XN,
		Name: "XN",
		Messages: []MessagePattern{
			{TokenE},
			{TokenE, TokenEE},
			{TokenS, TokenSE},
		},
	},
	{
		Type: IN,
		Name: "IN",
		Messages: []MessagePattern{
			{TokenE, TokenS},
			{TokenE, TokenEE, TokenSE},
		},
	},
}

var registry = mustBuildRegistry(patterns)

func mustBuildRegistry(ps []Pattern) map[HandshakeType]*Pattern {
	r, err := buildRegistry(ps)
	if err != nil {
		panic(err)
	}
	return r
}

// buildRegistry indexes ps by type, rejecting duplicate types or names.
func buildRegistry(ps []Pattern) (map[HandshakeType]*Pattern, error) {
	r := make(map[HandshakeType]*Pattern, len(ps))
	names := make(map[string]bool, len(ps))
	for i := range ps {
		p := &ps[i]
		if _, ok := r[p.Type]; ok {
			return nil, fmt.Errorf("disco/noise: duplicate handshake type %d", int8(p.Type))
		}
		if names[p.Name] {
			return nil, fmt.Errorf("disco/noise: duplicate handshake name %q", p.Name)
		}
		r[p.Type] = p
		names[p.Name] = true
	}
	return r, nil
}
