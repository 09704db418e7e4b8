package filter

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// Bzip2Encoder encodes a BZ2 block stream with a configurable block size
// (1..9, in units of 100KiB, matching the bzip2 command line convention).
type Bzip2Encoder struct {
	buf bytes.Buffer
	zw  *bzip2.Writer
}

func NewBzip2Encoder(blockSize int) (*Bzip2Encoder, error) {
	e := &Bzip2Encoder{}
	zw, err := bzip2.NewWriter(&e.buf, &bzip2.WriterConfig{Level: blockSize})
	if err != nil {
		return nil, err
	}
	e.zw = zw
	return e, nil
}

func (e *Bzip2Encoder) Push(p []byte) ([]byte, error) {
	if len(p) > 0 {
		if _, err := e.zw.Write(p); err != nil {
			return nil, err
		}
	}
	// bzip2 has no mid-stream flush primitive; blocks are only emitted once
	// the RLE buffer for a block size fills, so a Push may legitimately
	// return nothing until enough data has accumulated.
	return drainBuf(&e.buf), nil
}

func (e *Bzip2Encoder) Finish() ([]byte, error) {
	if err := e.zw.Close(); err != nil {
		return nil, err
	}
	return drainBuf(&e.buf), nil
}

// Bzip2Decoder decodes a BZ2 block stream.
type Bzip2Decoder struct {
	*pipeDecoder
}

func NewBzip2Decoder() (*Bzip2Decoder, error) {
	pd, err := newPipeDecoder(func(r io.Reader) (io.Reader, error) {
		return bzip2.NewReader(r, nil)
	})
	if err != nil {
		return nil, err
	}
	return &Bzip2Decoder{pipeDecoder: pd}, nil
}
