// Package nullsink provides a frame sink that discards decoded frames.
package nullsink

import (
	"fmt"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// Sink is a ports.FrameSink that discards every frame. It reuses one buffer
// as long as format and size stay the same.
type Sink struct {
	buf       *ports.FrameBuffer
	committed int
	last      ports.FrameMeta
}

// New creates a new Sink.
func New() *Sink {
	return &Sink{}
}

// Acquire returns the cached buffer or allocates a new one.
func (s *Sink) Acquire(format ports.SinkFormat, width, height int) (*ports.FrameBuffer, error) {
	if b := s.buf; b != nil && b.Format == format && b.Width == width && b.Height == height {
		return b, nil
	}
	info, ok := format.Info()
	if !ok {
		return nil, fmt.Errorf("nullsink: unknown sink format %s", format)
	}

	b := &ports.FrameBuffer{Format: format, Width: width, Height: height}
	for p := 0; p < 3; p++ {
		w, h := info.PlaneSize(p, width, height)
		b.Strides[p] = w * info.BytesPerSample()
		b.Planes[p] = make([]byte, b.Strides[p]*h)
	}
	s.buf = b
	return b, nil
}

// Commit counts the frame.
func (s *Sink) Commit(buf *ports.FrameBuffer, meta ports.FrameMeta) error {
	s.committed++
	s.last = meta
	return nil
}

// Discard does nothing.
func (s *Sink) Discard(buf *ports.FrameBuffer) {}

// Committed returns the number of committed frames.
func (s *Sink) Committed() int {
	return s.committed
}

// LastMeta returns the metadata of the last committed frame.
func (s *Sink) LastMeta() ports.FrameMeta {
	return s.last
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
