package filter

import (
	"bytes"
	"testing"
)

type chainCase struct {
	Name string
	Data []byte
}

var chainCases = []chainCase{
	{Name: "empty", Data: nil},
	{Name: "short", Data: []byte("hello, world")},
	{Name: "long", Data: bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 4000)},
}

func roundTrip(t *testing.T, name string, mkEncoder func() Filter, mkDecoder func() Filter, data []byte) {
	t.Helper()
	enc := mkEncoder()
	var encoded []byte
	out, err := enc.Push(data)
	if err != nil {
		t.Fatalf("%s: encode push: %v", name, err)
	}
	encoded = append(encoded, out...)
	tail, err := enc.Finish()
	if err != nil {
		t.Fatalf("%s: encode finish: %v", name, err)
	}
	encoded = append(encoded, tail...)

	dec := mkDecoder()
	var decoded []byte
	out, err = dec.Push(encoded)
	if err != nil {
		t.Fatalf("%s: decode push: %v", name, err)
	}
	decoded = append(decoded, out...)
	tail, err = dec.Finish()
	if err != nil {
		t.Fatalf("%s: decode finish: %v", name, err)
	}
	decoded = append(decoded, tail...)

	if !bytes.Equal(decoded, data) {
		t.Fatalf("%s: round trip mismatch: got %d bytes, want %d", name, len(decoded), len(data))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, c := range chainCases {
		t.Run(c.Name, func(t *testing.T) {
			roundTrip(t, c.Name,
				func() Filter { return NewStoreEncoder() },
				func() Filter { return NewStoreDecoder() },
				c.Data)
		})
	}
}

func TestDeflateRoundTrip(t *testing.T) {
	for _, c := range chainCases {
		t.Run(c.Name, func(t *testing.T) {
			roundTrip(t, c.Name,
				func() Filter {
					f, err := NewDeflateEncoder(6)
					if err != nil {
						t.Fatal(err)
					}
					return f
				},
				func() Filter {
					f, err := NewDeflateDecoder()
					if err != nil {
						t.Fatal(err)
					}
					return f
				},
				c.Data)
		})
	}
}

func TestBzip2RoundTrip(t *testing.T) {
	for _, c := range chainCases {
		t.Run(c.Name, func(t *testing.T) {
			roundTrip(t, c.Name,
				func() Filter {
					f, err := NewBzip2Encoder(1)
					if err != nil {
						t.Fatal(err)
					}
					return f
				},
				func() Filter {
					f, err := NewBzip2Decoder()
					if err != nil {
						t.Fatal(err)
					}
					return f
				},
				c.Data)
		})
	}
}

// encodeAll runs data through a fresh encoder and returns the complete
// compressed stream.
func encodeAll(t *testing.T, enc Filter, data []byte) []byte {
	t.Helper()
	out, err := enc.Push(data)
	if err != nil {
		t.Fatalf("encode push: %v", err)
	}
	encoded := append([]byte(nil), out...)
	tail, err := enc.Finish()
	if err != nil {
		t.Fatalf("encode finish: %v", err)
	}
	return append(encoded, tail...)
}

// pushAll feeds one buffer through a decoder and reports the first error,
// whether it surfaces on Push or on Finish.
func pushAll(dec Filter, data []byte) error {
	if _, err := dec.Push(data); err != nil {
		return err
	}
	_, err := dec.Finish()
	return err
}

func TestDeflateDecoderCorruptStreamFails(t *testing.T) {
	enc, err := NewDeflateEncoder(6)
	if err != nil {
		t.Fatal(err)
	}
	encoded := encodeAll(t, enc, bytes.Repeat([]byte("corrupt me, don't hang. "), 4000))
	// A reserved block type in the very first byte makes the stream
	// invalid immediately, so almost the whole buffer arrives after the
	// decoder has already stopped reading.
	encoded[0] = 0xFF

	dec, err := NewDeflateDecoder()
	if err != nil {
		t.Fatal(err)
	}
	if err := pushAll(dec, encoded); err == nil {
		t.Fatal("expected an error decoding a corrupt deflate stream")
	}
}

func TestDeflateDecoderTruncatedStreamFails(t *testing.T) {
	enc, err := NewDeflateEncoder(6)
	if err != nil {
		t.Fatal(err)
	}
	encoded := encodeAll(t, enc, bytes.Repeat([]byte("cut short. "), 4000))

	dec, err := NewDeflateDecoder()
	if err != nil {
		t.Fatal(err)
	}
	if err := pushAll(dec, encoded[:len(encoded)/2]); err == nil {
		t.Fatal("expected an error decoding a truncated deflate stream")
	}
}

func TestBzip2DecoderCorruptStreamFails(t *testing.T) {
	enc, err := NewBzip2Encoder(1)
	if err != nil {
		t.Fatal(err)
	}
	encoded := encodeAll(t, enc, bytes.Repeat([]byte("corrupt me, don't hang. "), 4000))
	encoded[0] = 0x00 // destroy the stream magic

	dec, err := NewBzip2Decoder()
	if err != nil {
		t.Fatal(err)
	}
	if err := pushAll(dec, encoded); err == nil {
		t.Fatal("expected an error decoding a corrupt bzip2 stream")
	}
}

func TestChainComposesInOrder(t *testing.T) {
	data := []byte("composed chain payload, should survive deflate then store")

	deflateEnc, err := NewDeflateEncoder(6)
	if err != nil {
		t.Fatal(err)
	}
	enc := NewChain(deflateEnc, NewStoreEncoder())

	var encoded []byte
	out, err := enc.Push(data)
	if err != nil {
		t.Fatal(err)
	}
	encoded = append(encoded, out...)
	tail, err := enc.Finish()
	if err != nil {
		t.Fatal(err)
	}
	encoded = append(encoded, tail...)

	deflateDec, err := NewDeflateDecoder()
	if err != nil {
		t.Fatal(err)
	}
	dec := NewChain(NewStoreDecoder(), deflateDec)

	var decoded []byte
	out, err = dec.Push(encoded)
	if err != nil {
		t.Fatal(err)
	}
	decoded = append(decoded, out...)
	tail, err = dec.Finish()
	if err != nil {
		t.Fatal(err)
	}
	decoded = append(decoded, tail...)

	if !bytes.Equal(decoded, data) {
		t.Fatalf("chain round trip mismatch: got %q, want %q", decoded, data)
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	c := NewChain()
	data := []byte("pass through untouched")
	out, err := c.Push(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("got %q, want %q", out, data)
	}
	tail, err := c.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(tail))
	}
}
