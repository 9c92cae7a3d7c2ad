package multifile

import (
	"bufio"
	"io"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// ScratchSize is the read buffer handed to demuxers.
const ScratchSize = 32 * 1024

// Buffered adds a fixed read buffer in front of a ByteSource. Any seek drops
// the buffered bytes.
type Buffered struct {
	src ports.ByteSource
	r   *bufio.Reader
}

// NewBuffered wraps src with a read buffer of size bytes, or ScratchSize
// when size is not positive.
func NewBuffered(src ports.ByteSource, size int) *Buffered {
	if size <= 0 {
		size = ScratchSize
	}
	return &Buffered{src: src, r: bufio.NewReaderSize(src, size)}
}

// Reset drops the buffered bytes after the wrapped source was repositioned
// behind the wrapper's back.
func (b *Buffered) Reset() {
	b.r.Reset(b.src)
}

func (b *Buffered) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

// Seek drops the buffered bytes on io.SeekStart. Every other whence goes to
// the wrapped source unchanged, so it decides what is supported.
func (b *Buffered) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return b.src.Seek(offset, whence)
	}

	n, err := b.src.Seek(offset, whence)
	if err != nil {
		return n, err
	}
	b.r.Reset(b.src)
	return n, nil
}

// Size returns the size reported by the wrapped source.
func (b *Buffered) Size() int64 {
	return b.src.Size()
}

var _ ports.ByteSource = (*Buffered)(nil)
