// Package index holds the GOP and frame tables produced by an external
// indexer and resolves frame numbers to decode start positions.
package index

import (
	"errors"
	"fmt"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

var (
	// ErrUnsupportedStreamType is returned for stream types other than
	// elementary, program or transport.
	ErrUnsupportedStreamType = errors.New("index: unsupported stream type")

	// ErrUnsupportedCodec is returned for MPEG types other than 1 and 2.
	ErrUnsupportedCodec = errors.New("index: unsupported codec")

	// ErrFrameOutOfRange is returned when a frame number is not in the frame table.
	ErrFrameOutOfRange = errors.New("index: frame out of range")

	// ErrCorruptIndex is returned when the tables reference entries that do not exist.
	ErrCorruptIndex = errors.New("index: corrupt index")
)

// GOP is one group of pictures: where it starts and whether it is closed.
type GOP struct {
	// File is the index into Index.Files of the file holding the GOP start.
	File int `json:"file"`
	// Pos is the byte position of the GOP start within that file.
	Pos int64 `json:"pos"`
	// Closed is false for open GOPs whose leading pictures reference the previous GOP.
	Closed bool `json:"closed"`
}

// Frame maps a presentation-order frame number to its GOP.
type Frame struct {
	GOP int `json:"gop"`
	// Offset is the number of decode-order pictures to step over from the
	// GOP start to reach this frame.
	Offset int `json:"offset"`
}

// Index is the read-only output of the indexer.
type Index struct {
	Files      []string         `json:"files"`
	StreamType ports.StreamType `json:"stream_type"`
	MPEGType   int              `json:"mpeg_type"`
	// IDCT is passed through unmodified to the decoder.
	IDCT   int     `json:"idct"`
	GOPs   []GOP   `json:"gops"`
	Frames []Frame `json:"frames"`
}

// Codec returns the codec variant for MPEGType.
func (idx *Index) Codec() (ports.CodecVariant, error) {
	switch idx.MPEGType {
	case 1:
		return ports.CodecMPEG1, nil
	case 2:
		return ports.CodecMPEG2, nil
	default:
		return 0, fmt.Errorf("%w: mpeg type %d", ErrUnsupportedCodec, idx.MPEGType)
	}
}

// Container returns the demuxer name and detection hint for the stream type.
func (idx *Index) Container() (ports.ContainerFormat, error) {
	return ContainerFor(idx.StreamType)
}

// ContainerFor maps a stream type to its demuxer and synthetic file name.
func ContainerFor(t ports.StreamType) (ports.ContainerFormat, error) {
	switch t {
	case ports.StreamElementary:
		return ports.ContainerFormat{Name: "mpegvideo", Hint: "fakevideo.m2v"}, nil
	case ports.StreamProgram:
		return ports.ContainerFormat{Name: "mpeg", Hint: "fakevideo.vob"}, nil
	case ports.StreamTransport:
		return ports.ContainerFormat{Name: "mpegts", Hint: "fakevideo.ts"}, nil
	default:
		return ports.ContainerFormat{}, fmt.Errorf("%w: %d", ErrUnsupportedStreamType, int(t))
	}
}

// NumFrames returns the number of frames in the frame table.
func (idx *Index) NumFrames() int {
	return len(idx.Frames)
}

// Validate checks the stream parameters and that every table reference resolves.
func (idx *Index) Validate() error {
	if _, err := idx.Container(); err != nil {
		return err
	}
	if _, err := idx.Codec(); err != nil {
		return err
	}
	if len(idx.Files) == 0 {
		return fmt.Errorf("%w: no files", ErrCorruptIndex)
	}
	for i, g := range idx.GOPs {
		if g.File < 0 || g.File >= len(idx.Files) {
			return fmt.Errorf("%w: gop %d references file %d", ErrCorruptIndex, i, g.File)
		}
		if g.Pos < 0 {
			return fmt.Errorf("%w: gop %d has negative position", ErrCorruptIndex, i)
		}
	}
	for i, f := range idx.Frames {
		if f.GOP < 0 || f.GOP >= len(idx.GOPs) {
			return fmt.Errorf("%w: frame %d references gop %d", ErrCorruptIndex, i, f.GOP)
		}
		if f.Offset < 0 {
			return fmt.Errorf("%w: frame %d has negative offset", ErrCorruptIndex, i)
		}
	}
	return nil
}
