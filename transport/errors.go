package transport

import "errors"

var (
	// ErrInvalidConfig is returned when a Config is missing a value required by its handshake pattern, or holds a
	// value of the wrong length. It is always returned before any network I/O.
	ErrInvalidConfig = errors.New("disco/transport: invalid config")

	// ErrMessageTooLarge is returned when a frame's length exceeds NoiseMessageLength.
	ErrMessageTooLarge = errors.New("disco/transport: message too large")

	// ErrAuthenticationFailed is returned when the peer's static public key is rejected by the PublicKeyVerifier.
	ErrAuthenticationFailed = errors.New("disco/transport: the received public key could not be authenticated")

	// ErrProtocolViolation is returned when the responder writes, or the initiator reads, on a one-way pattern.
	ErrProtocolViolation = errors.New("disco/transport: protocol violation")
)
