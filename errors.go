package disco

import "errors"

var (
	// ErrInvalidParameter is returned when a key, key material, output length, or ciphertext is too short to be used
	// safely.
	ErrInvalidParameter = errors.New("disco: invalid parameter")

	// ErrTamperedData is returned when a MAC fails to verify. Any duplex state involved is permanently desynchronized
	// and must be discarded.
	ErrTamperedData = errors.New("disco: tampered data")
)
