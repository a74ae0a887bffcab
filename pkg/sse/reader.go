package sse

import (
	"context"
	"io"
)

// Reader pulls decoded frames from a streaming response body. Frames are
// returned strictly in arrival order; after the underlying stream ends the
// final buffered partial frame (if any) is returned before io.EOF.
type Reader struct {
	src     io.Reader
	parser  *Parser
	pending []Frame
	buf     []byte
	done    bool
	err     error
}

// NewReader creates a reader decoding frames from src
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src:    src,
		parser: NewParser(),
		buf:    make([]byte, 4096),
	}
}

// Next returns the next frame. It returns io.EOF once the stream is
// exhausted, or the context error if ctx is cancelled. Cancellation is
// checked before every frame delivery so no frame from a cancelled stream
// reaches the caller.
func (r *Reader) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}

		if len(r.pending) > 0 {
			frame := r.pending[0]
			r.pending = r.pending[1:]
			return frame, nil
		}

		if r.done {
			if r.err != nil {
				return Frame{}, r.err
			}
			return Frame{}, io.EOF
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.parser.Feed(r.buf[:n])...)
		}

		if err != nil {
			r.done = true
			if frame, ok := r.parser.Flush(); ok {
				r.pending = append(r.pending, frame)
			}
			if err != io.EOF {
				// Buffered frames drain first, then the error surfaces
				r.err = err
			}
		}
	}
}
