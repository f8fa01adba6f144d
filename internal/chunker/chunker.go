// Package chunker splits a source stream into fixed-size windows. The last
// window of a stream may be shorter; an empty stream yields no windows.
package chunker

import (
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the window size used when none is configured.
const DefaultChunkSize = 3 << 20 // 3 MiB

// Chunk is one fixed-size window of a source stream. Sequence numbers are
// 1-based and contiguous.
type Chunk struct {
	Sequence int
	Data     []byte
}

// Splitter reads a stream sequentially and hands out one window at a time.
// It never buffers more than a single window.
type Splitter struct {
	r    io.Reader
	size int
	seq  int
	done bool
}

// NewSplitter returns a Splitter producing windows of size bytes.
func NewSplitter(r io.Reader, size int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	return &Splitter{r: r, size: size}, nil
}

// Next returns the next window, or io.EOF once the stream is exhausted.
func (s *Splitter) Next() (*Chunk, error) {
	if s.done {
		return nil, io.EOF
	}

	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)

	switch {
	case err == nil:
		// full window
	case errors.Is(err, io.ErrUnexpectedEOF):
		// short final window
		s.done = true
	case errors.Is(err, io.EOF):
		s.done = true
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("read chunk %d: %w", s.seq+1, err)
	}

	s.seq++
	return &Chunk{Sequence: s.seq, Data: buf[:n]}, nil
}
