package mocks

import (
	"sync"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// CommittedFrame is a frame received by FrameSink.Commit.
type CommittedFrame struct {
	Meta   ports.FrameMeta
	Planes [3][]byte
}

// FrameSink is a mock implementation of ports.FrameSink that allocates tight
// planes and records every committed frame.
type FrameSink struct {
	mu sync.Mutex

	AcquireErr error
	CommitErr  error

	Acquired  int
	Discarded int
	Committed []CommittedFrame
}

// NewFrameSink creates a new mock FrameSink.
func NewFrameSink() *FrameSink {
	return &FrameSink{}
}

func (m *FrameSink) Acquire(format ports.SinkFormat, width, height int) (*ports.FrameBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return nil, m.AcquireErr
	}
	m.Acquired++

	info, _ := format.Info()
	buf := &ports.FrameBuffer{Format: format, Width: width, Height: height}
	for p := 0; p < 3; p++ {
		w, h := info.PlaneSize(p, width, height)
		stride := w * info.BytesPerSample()
		buf.Planes[p] = make([]byte, stride*h)
		buf.Strides[p] = stride
	}
	return buf, nil
}

func (m *FrameSink) Commit(buf *ports.FrameBuffer, meta ports.FrameMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		return m.CommitErr
	}
	m.Committed = append(m.Committed, CommittedFrame{Meta: meta, Planes: buf.Planes})
	return nil
}

func (m *FrameSink) Discard(buf *ports.FrameBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Discarded++
}

// Last returns the most recently committed frame.
func (m *FrameSink) Last() (CommittedFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Committed) == 0 {
		return CommittedFrame{}, false
	}
	return m.Committed[len(m.Committed)-1], true
}

var _ ports.FrameSink = (*FrameSink)(nil)
