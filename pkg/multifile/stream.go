// Package multifile presents an ordered list of files as one seekable byte
// stream that starts at a GOP offset inside one of the files.
package multifile

import (
	"errors"
	"fmt"
	"io"

	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

var (
	// ErrFileOpen is returned when a listed input file cannot be opened.
	ErrFileOpen = errors.New("multifile: cannot open file")

	// ErrUnsupportedSeekMode is returned for any seek other than an absolute
	// position or a size query.
	ErrUnsupportedSeekMode = errors.New("multifile: unsupported seek mode")

	// ErrNegativePosition is returned when a seek resolves before the first file.
	ErrNegativePosition = errors.New("multifile: negative position")

	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("multifile: stream closed")
)

// Stream is a single logical byte stream over several files.
//
// Sizes are captured once when the files are opened. The stream is not safe
// for concurrent use: Read and Seek must never overlap.
type Stream struct {
	files []ports.File
	sizes []int64
	log   ports.Logger

	origFile   int
	origOffset int64
	curFile    int
	// curPos is the read position inside files[curFile].
	curPos int64

	repositions int
	seeks       int
	closed      bool
}

// Open opens every path through fs and measures its size. If any file fails
// to open, the files opened so far are closed and ErrFileOpen is returned.
func Open(fs ports.FileSystem, paths []string, log ports.Logger) (*Stream, error) {
	s := &Stream{log: logger.OrNoop(log).WithComponent("multifile")}

	for _, path := range paths {
		f, err := fs.Open(path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrFileOpen, path, err)
		}

		size, err := measure(f)
		if err != nil {
			f.Close()
			s.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrFileOpen, path, err)
		}

		s.files = append(s.files, f)
		s.sizes = append(s.sizes, size)
		s.log.Debug("Opened %s (%d bytes)", path, size)
	}

	if len(s.files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrFileOpen)
	}

	return s, nil
}

func measure(f ports.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

// NumFiles returns the number of underlying files.
func (s *Stream) NumFiles() int {
	return len(s.files)
}

// FileSize returns the size of file i as captured at open time.
func (s *Stream) FileSize(i int) int64 {
	return s.sizes[i]
}

// Repositions returns how many times Reposition has been called.
func (s *Stream) Repositions() int {
	return s.repositions
}

// Seeks returns how many absolute seeks have been served.
func (s *Stream) Seeks() int {
	return s.seeks
}

// Cursor returns the current file index, the origin file and the origin offset.
func (s *Stream) Cursor() (curFile, origFile int, origOffset int64) {
	return s.curFile, s.origFile, s.origOffset
}

// Reposition moves the origin of the stream to pos inside file and positions
// the read cursor there. Position 0 of the stream refers to this point until
// the next Reposition.
func (s *Stream) Reposition(file int, pos int64) error {
	if s.closed {
		return ErrClosed
	}
	if file < 0 || file >= len(s.files) {
		return fmt.Errorf("multifile: file %d out of range", file)
	}
	if pos < 0 {
		return ErrNegativePosition
	}

	if _, err := s.files[file].Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("multifile: reposition file %d: %w", file, err)
	}

	s.origFile = file
	s.origOffset = pos
	s.curFile = file
	s.curPos = pos
	s.repositions++
	s.log.Debug("Repositioned to file %d at %d", file, pos)
	return nil
}

// SeekAbsolute moves the read cursor to pos bytes past the origin, crossing
// file boundaries as needed. Positions past the end of the last file clamp
// to its end, where reads return io.EOF. The returned position is the one
// actually reached.
func (s *Stream) SeekAbsolute(pos int64) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	s.seeks++

	off := s.origOffset + pos
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativePosition, pos)
	}

	file := s.origFile
	for file < len(s.files)-1 && off >= s.sizes[file] {
		off -= s.sizes[file]
		file++
	}
	if off > s.sizes[file] {
		off = s.sizes[file]
		pos = s.Size()
	}

	if _, err := s.files[file].Seek(off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("multifile: seek file %d: %w", file, err)
	}

	s.curFile = file
	s.curPos = off
	return pos, nil
}

// Size returns the total size of all files from the origin file onward,
// minus the origin offset.
func (s *Stream) Size() int64 {
	size := -s.origOffset
	for i := s.origFile; i < len(s.sizes); i++ {
		size += s.sizes[i]
	}
	return size
}

// Seek implements io.Seeker for demux layers. Only io.SeekStart and
// ports.SeekSize are supported.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		return s.SeekAbsolute(offset)
	case ports.SeekSize:
		return s.Size(), nil
	default:
		s.log.Warn("Unsupported seek mode %d", whence)
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedSeekMode, whence)
	}
}

// Read reads from the current file and rolls over to the following files
// until p is full. A short count is only returned at the end of the last file.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	n := 0
	for n < len(p) {
		remaining := s.sizes[s.curFile] - s.curPos
		if remaining <= 0 {
			if s.curFile == len(s.files)-1 {
				break
			}
			if err := s.advance(); err != nil {
				return n, err
			}
			continue
		}

		want := int64(len(p) - n)
		if want > remaining {
			want = remaining
		}

		m, err := io.ReadFull(s.files[s.curFile], p[n:n+int(want)])
		n += m
		s.curPos += int64(m)
		if err != nil {
			return n, fmt.Errorf("multifile: read file %d: %w", s.curFile, err)
		}
	}

	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *Stream) advance() error {
	next := s.curFile + 1
	if _, err := s.files[next].Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("multifile: rewind file %d: %w", next, err)
	}
	s.log.Debug("Crossed into file %d", next)
	s.curFile = next
	s.curPos = 0
	return nil
}

// Close closes every file exactly once. Later calls return nil.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for i, f := range s.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("multifile: close file %d: %w", i, err))
		}
		s.files[i] = nil
	}
	return errors.Join(errs...)
}

var _ ports.ByteSource = (*Stream)(nil)
