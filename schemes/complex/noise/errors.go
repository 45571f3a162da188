package noise

import "errors"

var (
	// ErrUnknownPattern is returned when a handshake type has no registered pattern.
	ErrUnknownPattern = errors.New("disco/noise: unknown handshake pattern")

	// ErrNotSupported is returned when a pre-known ephemeral key is supplied. Fallback patterns are not implemented.
	ErrNotSupported = errors.New("disco/noise: fallback patterns are not supported")

	// ErrUnsupportedToken is returned when a pattern uses a token other than s in a pre-message.
	ErrUnsupportedToken = errors.New("disco/noise: unsupported pre-message token")

	// ErrMissingKey is returned when a key required by the pattern is not available.
	ErrMissingKey = errors.New("disco/noise: missing key")

	// ErrProtocol is returned when a message is written or read out of turn, after the handshake has finished, or when a
	// message pattern holds an unrecognized token.
	ErrProtocol = errors.New("disco/noise: protocol error")

	// ErrMessageTooShort is returned when a handshake message ends before an expected key.
	ErrMessageTooShort = errors.New("disco/noise: message too short")

	// ErrDecryptionFailed is returned when an encrypted handshake field fails to authenticate.
	ErrDecryptionFailed = errors.New("disco/noise: decryption failed")
)
