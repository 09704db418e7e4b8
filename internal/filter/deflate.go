package filter

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// DeflateEncoder is a raw DEFLATE (no zlib header) encoder, level 0..9.
type DeflateEncoder struct {
	buf bytes.Buffer
	zw  *flate.Writer
}

// NewDeflateEncoder builds a raw-deflate encoder at the given level.
// Level 0 selects no compression (still framed as a valid deflate stream),
// matching the STORE-like level 0 behavior callers expect.
func NewDeflateEncoder(level int) (*DeflateEncoder, error) {
	e := &DeflateEncoder{}
	zw, err := flate.NewWriter(&e.buf, level)
	if err != nil {
		return nil, err
	}
	e.zw = zw
	return e, nil
}

func (e *DeflateEncoder) Push(p []byte) ([]byte, error) {
	if len(p) > 0 {
		if _, err := e.zw.Write(p); err != nil {
			return nil, err
		}
	}
	// Flush forces whatever has been compressed so far out to e.buf without
	// ending the stream, giving bucket-in/bucket-out behavior.
	if err := e.zw.Flush(); err != nil {
		return nil, err
	}
	return drainBuf(&e.buf), nil
}

func (e *DeflateEncoder) Finish() ([]byte, error) {
	if err := e.zw.Close(); err != nil {
		return nil, err
	}
	return drainBuf(&e.buf), nil
}

// DeflateDecoder decodes a raw DEFLATE stream produced by any conforming
// encoder (it does not require the stream to have come from DeflateEncoder).
type DeflateDecoder struct {
	*pipeDecoder
}

func NewDeflateDecoder() (*DeflateDecoder, error) {
	pd, err := newPipeDecoder(func(r io.Reader) (io.Reader, error) {
		return flate.NewReader(r), nil
	})
	if err != nil {
		return nil, err
	}
	return &DeflateDecoder{pipeDecoder: pd}, nil
}

func drainBuf(buf *bytes.Buffer) []byte {
	if buf.Len() == 0 {
		return nil
	}
	out := append([]byte(nil), buf.Bytes()...)
	buf.Reset()
	return out
}
