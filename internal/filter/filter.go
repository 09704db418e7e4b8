// Package filter defines the pull-based byte transducer contract shared by
// zipkit's compression and encryption stages.
//
// Each Filter consumes input in arbitrary-sized buckets and produces zero or
// more output bytes per bucket, retaining at most one block of internal
// state between calls. Composition (compress -> encrypt on write, decrypt ->
// decompress on read) is done explicitly by the caller; there is no global
// filter registry to register against.
package filter

import "io"

// Filter transforms a stream of bytes incrementally.
type Filter interface {
	// Push feeds the next bucket of input and returns any output bytes that
	// are now available. The returned slice is only valid until the next
	// call to Push or Finish.
	Push(p []byte) ([]byte, error)

	// Finish signals end of input and returns any remaining output,
	// including trailing framing (e.g. an authentication tag). Finish must
	// be called exactly once, after the last Push.
	Finish() ([]byte, error)
}

// Chain composes filters so that the output of filters[i] feeds filters[i+1].
type Chain struct {
	stages []Filter
}

// NewChain builds a Chain that applies stages in order.
func NewChain(stages ...Filter) *Chain {
	return &Chain{stages: stages}
}

// Push runs p through every stage in order.
func (c *Chain) Push(p []byte) ([]byte, error) {
	cur := p
	for _, s := range c.stages {
		out, err := s.Push(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

// Abort releases whatever resources the stages hold without flushing,
// closing any stage that implements io.Closer. It is for the error path
// where Finish will never run (a goroutine-backed decoder would otherwise
// block forever waiting for more input).
func (c *Chain) Abort() {
	for _, s := range c.stages {
		if cl, ok := s.(io.Closer); ok {
			cl.Close()
		}
	}
}

// Finish flushes every stage in order, feeding each stage's final output
// into the next stage's Push before that stage is itself finished. Output
// bytes are accumulated in the order they become final, since an earlier
// stage's trailing bytes (once pushed through the rest of the chain) sort
// before a later stage's own trailing bytes.
func (c *Chain) Finish() ([]byte, error) {
	var result []byte
	for i, s := range c.stages {
		cur, err := s.Finish()
		if err != nil {
			return nil, err
		}
		for j := i + 1; j < len(c.stages); j++ {
			cur, err = c.stages[j].Push(cur)
			if err != nil {
				return nil, err
			}
		}
		result = append(result, cur...)
	}
	return result, nil
}
