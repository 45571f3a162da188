package noise

import (
	"errors"
	"testing"

	"github.com/codahale/disco/hazmat/x25519"
	"github.com/codahale/disco/internal/testdata"
	fuzz "github.com/trailofbits/go-fuzz-utils"
)

// FuzzReadMessage feeds arbitrary bytes to each stage of an XX handshake and checks that malformed messages are
// rejected with an error instead of a panic.
func FuzzReadMessage(f *testing.F) {
	drbg := testdata.New("disco noise fuzz")
	for range 10 {
		f.Add(drbg.Data(256))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		stage, err := tp.GetByte()
		if err != nil {
			t.Skip(err)
		}

		garbage, err := tp.GetBytes()
		if err != nil {
			t.Skip(err)
		}

		hp := newPair(t, XX, nil)
		writer, reader := hp.initiator, hp.responder
		for range stage % 3 {
			msg, _, _, err := writer.WriteMessage(nil, nil)
			if err != nil {
				t.Fatal(err)
			}

			if _, _, _, err := reader.ReadMessage(msg, nil); err != nil {
				t.Fatal(err)
			}

			writer, reader = reader, writer
		}

		_, _, _, err = reader.ReadMessage(garbage, nil)
		if err == nil {
			return
		}

		// Garbage ephemeral keys may be zero or of low order.
		if !errors.Is(err, ErrMessageTooShort) && !errors.Is(err, ErrDecryptionFailed) &&
			!errors.Is(err, ErrMissingKey) && !errors.Is(err, x25519.ErrLowOrder) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
