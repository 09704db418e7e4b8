package filter

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// errTrailingInput is handed to pending writers when the decompressor
// reached its end of stream with input still arriving.
var errTrailingInput = errors.New("filter: input past end of compressed stream")

// pipeDecoder adapts a blocking io.Reader-based decompressor (the shape
// every stdlib-style Go decompressor takes) to the push-based Filter
// contract, by running the decompressor on a private goroutine fed through
// an io.Pipe. Output produced by one Push may only become visible on a
// later Push or on Finish; the Filter contract allows this (state carries
// across buckets, only the end-of-stream guarantee is on Finish).
type pipeDecoder struct {
	pw *io.PipeWriter

	mu  sync.Mutex
	out bytes.Buffer

	done chan error
}

// newPipeDecoder starts decoding from an io.Reader constructed from the
// pipe's read side by newReader.
func newPipeDecoder(newReader func(io.Reader) (io.Reader, error)) (*pipeDecoder, error) {
	pr, pw := io.Pipe()
	d := &pipeDecoder{pw: pw, done: make(chan error, 1)}

	zr, err := newReader(pr)
	if err != nil {
		pw.Close()
		return nil, err
	}

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := zr.Read(buf)
			if n > 0 {
				d.mu.Lock()
				d.out.Write(buf[:n])
				d.mu.Unlock()
			}
			if err != nil {
				if err == io.EOF {
					err = nil
				}
				d.done <- err
				// Nothing will read the pipe again, so unblock any
				// in-flight or future Push write. A Push blocked mid-write
				// when the decompressor hits a corrupt-stream error would
				// otherwise wait forever for the rest of its buffer to be
				// consumed.
				if err != nil {
					pr.CloseWithError(err)
				} else {
					pr.CloseWithError(errTrailingInput)
				}
				return
			}
		}
	}()

	return d, nil
}

func (d *pipeDecoder) drain() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out.Len() == 0 {
		return nil
	}
	out := append([]byte(nil), d.out.Bytes()...)
	d.out.Reset()
	return out
}

// Push writes p to the decompressor and returns whatever output has become
// available so far. If the decompressor has already stopped on a decode
// error, that error is returned here instead of blocking.
func (d *pipeDecoder) Push(p []byte) ([]byte, error) {
	if len(p) > 0 {
		if _, err := d.pw.Write(p); err != nil {
			return nil, err
		}
	}
	return d.drain(), nil
}

// Finish closes the input side, waits for the decompressor to reach end of
// stream, and returns the remaining buffered output.
func (d *pipeDecoder) Finish() ([]byte, error) {
	d.pw.Close()
	if err := <-d.done; err != nil {
		return nil, err
	}
	return d.drain(), nil
}

// Close aborts decoding without waiting for end of stream, releasing the
// decode goroutine. Used when an earlier chain stage failed and Finish
// will never run.
func (d *pipeDecoder) Close() error {
	d.pw.CloseWithError(io.ErrClosedPipe)
	return nil
}
