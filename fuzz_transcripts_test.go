package disco_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/codahale/disco"
	"github.com/codahale/disco/internal/testdata"
	fuzz "github.com/trailofbits/go-fuzz-utils"
)

const opTypeCount = 6 // AD, MetaAD, PRF, Ratchet, ENC, ENC+MAC

// FuzzDuplexDivergence generates a random transcript of operations and performs them on two separate duplex states in
// parallel, checking to see that all outputs are the same.
func FuzzDuplexDivergence(f *testing.F) {
	drbg := testdata.New("disco divergence")
	for range 10 {
		f.Add(drbg.Data(1024))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		opCount, err := tp.GetUint16()
		if err != nil {
			t.Skip(err)
		}

		d1 := disco.New("divergence")
		d2 := disco.New("divergence")

		for range opCount % 50 {
			opTypeRaw, err := tp.GetByte()
			if err != nil {
				t.Skip(err)
			}

			switch opType := opTypeRaw % opTypeCount; opType {
			case 0: // AD
				input, err := tp.GetBytes()
				if err != nil {
					t.Skip(err)
				}

				more, err := tp.GetBool()
				if err != nil {
					t.Skip(err)
				}

				d1.ADStream(input, more)
				d2.ADStream(input, more)
			case 1: // MetaAD
				input, err := tp.GetBytes()
				if err != nil {
					t.Skip(err)
				}

				d1.MetaAD(input)
				d2.MetaAD(input)
			case 2: // PRF
				n, err := tp.GetUint16()
				if err != nil {
					t.Skip(err)
				}

				res1, res2 := d1.PRF(int(n)), d2.PRF(int(n))
				if !bytes.Equal(res1, res2) {
					t.Fatalf("Divergent PRF outputs: %x != %x", res1, res2)
				}
			case 3: // Ratchet
				d1.Ratchet(disco.HashSize)
				d2.Ratchet(disco.HashSize)
			case 4: // ENC
				input, err := tp.GetBytes()
				if err != nil {
					t.Skip(err)
				}

				res1, res2 := d1.SendENC(input), d2.SendENC(input)
				if !bytes.Equal(res1, res2) {
					t.Fatalf("Divergent SendENC outputs: %x != %x", res1, res2)
				}
			case 5: // ENC+MAC
				input, err := tp.GetBytes()
				if err != nil {
					t.Skip(err)
				}

				res1 := append(d1.SendENC(input), d1.SendMAC(disco.TagSize)...)
				res2 := append(d2.SendENC(input), d2.SendMAC(disco.TagSize)...)
				if !bytes.Equal(res1, res2) {
					t.Fatalf("Divergent sealed outputs: %x != %x", res1, res2)
				}
			default:
				panic(fmt.Sprintf("unknown operation type: %v", opType))
			}
		}

		if d1.Equal(d2) != 1 {
			t.Fatal("divergent final states")
		}
	})
}

// FuzzDuplexReversibility generates a transcript of operations and performs them on a sending state, recording the
// outputs. It then runs the transcript's duals on a receiving state, ensuring every ciphertext decrypts and every MAC
// verifies.
func FuzzDuplexReversibility(f *testing.F) {
	drbg := testdata.New("disco reversibility")
	for range 10 {
		f.Add(drbg.Data(1024))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		tp, err := fuzz.NewTypeProvider(data)
		if err != nil {
			t.Skip(err)
		}

		opCount, err := tp.GetUint16()
		if err != nil {
			t.Skip(err)
		}

		sender := disco.New("reversibility")

		var operations []operation
		for range opCount % 50 {
			opTypeRaw, err := tp.GetByte()
			if err != nil {
				t.Skip(err)
			}

			op := operation{opType: opTypeRaw % opTypeCount}
			switch op.opType {
			case 0: // AD
				if op.input, err = tp.GetBytes(); err != nil {
					t.Skip(err)
				}

				sender.AD(op.input)
			case 1: // MetaAD
				if op.input, err = tp.GetBytes(); err != nil {
					t.Skip(err)
				}

				sender.MetaAD(op.input)
			case 2: // PRF
				n, err := tp.GetUint16()
				if err != nil {
					t.Skip(err)
				}

				op.n = int(n)
				op.output = sender.PRF(op.n)
			case 3: // Ratchet
				sender.Ratchet(disco.HashSize)
			case 4: // ENC
				if op.input, err = tp.GetBytes(); err != nil {
					t.Skip(err)
				}

				op.output = sender.SendENC(op.input)
			case 5: // ENC+MAC
				if op.input, err = tp.GetBytes(); err != nil {
					t.Skip(err)
				}

				op.output = sender.SendENC(op.input)
				op.tag = sender.SendMAC(disco.TagSize)
			default:
				panic(fmt.Sprintf("unknown operation type: %v", op.opType))
			}

			operations = append(operations, op)
		}

		receiver := disco.New("reversibility")
		for _, op := range operations {
			switch op.opType {
			case 0: // AD
				receiver.AD(op.input)
			case 1: // MetaAD
				receiver.MetaAD(op.input)
			case 2: // PRF
				if output := receiver.PRF(op.n); !bytes.Equal(output, op.output) {
					t.Fatalf("Divergent PRF outputs: %x != %x", output, op.output)
				}
			case 3: // Ratchet
				receiver.Ratchet(disco.HashSize)
			case 4: // ENC
				if plaintext := receiver.RecvENC(op.output); !bytes.Equal(plaintext, op.input) {
					t.Fatalf("Invalid RecvENC output: %x != %x", plaintext, op.input)
				}
			case 5: // ENC+MAC
				plaintext := receiver.RecvENC(op.output)
				if !receiver.RecvMAC(op.tag) {
					t.Fatal("RecvMAC failed")
				}
				if !bytes.Equal(plaintext, op.input) {
					t.Fatalf("Invalid RecvENC output: %x != %x", plaintext, op.input)
				}
			default:
				panic(fmt.Sprintf("unknown operation type: %v", op.opType))
			}
		}

		if sender.Equal(receiver) != 1 {
			t.Fatal("divergent final states")
		}
	})
}

type operation struct {
	opType             byte
	input, output, tag []byte
	n                  int
}
