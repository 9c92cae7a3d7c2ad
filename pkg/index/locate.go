package index

import "fmt"

// PipelineDelay is the number of pictures the reference MPEG decoder holds
// back for B-frame reordering. The open-GOP correction in Locate subtracts it
// once when decoding starts from the previous GOP.
//
// The value matches libavcodec, which drops the leading pictures of an open
// GOP after a flush. A backend with a different contract reports its own
// value through ports.Backend.PipelineDelay.
const PipelineDelay = 1

// Location is where decoding has to start to produce a frame.
type Location struct {
	// GOP is the GOP decoding starts from. It is FrameGOP-1 for frames in
	// open GOPs after the first one.
	GOP int
	// FrameGOP is the GOP the requested frame belongs to.
	FrameGOP int
	// File and Pos locate the start of GOP.
	File int
	Pos  int64
	// Offset is the number of decoded pictures to discard before the
	// requested frame is produced.
	Offset int
}

// Locate resolves a frame number using PipelineDelay.
func (idx *Index) Locate(frame int) (Location, error) {
	return idx.LocateWithDelay(frame, PipelineDelay)
}

// LocateWithDelay resolves a frame number, compensating open-GOP lookback
// by the given decoder pipeline delay.
func (idx *Index) LocateWithDelay(frame, delay int) (Location, error) {
	if frame < 0 || frame >= len(idx.Frames) {
		return Location{}, fmt.Errorf("%w: %d of %d", ErrFrameOutOfRange, frame, len(idx.Frames))
	}

	f := idx.Frames[frame]
	if f.GOP < 0 || f.GOP >= len(idx.GOPs) {
		return Location{}, fmt.Errorf("%w: frame %d references gop %d", ErrCorruptIndex, frame, f.GOP)
	}

	loc := Location{
		GOP:      f.GOP,
		FrameGOP: f.GOP,
		Offset:   f.Offset,
	}

	if !idx.GOPs[f.GOP].Closed && f.GOP > 0 {
		prev, err := idx.previousGOPTail(frame)
		if err != nil {
			return Location{}, err
		}
		loc.GOP = f.GOP - 1
		// A previous GOP of one picture leaves nothing to skip.
		loc.Offset = max(0, loc.Offset+prev.Offset-delay)
	}

	g := idx.GOPs[loc.GOP]
	loc.File = g.File
	loc.Pos = g.Pos
	return loc, nil
}

// previousGOPTail walks back from frame to the anchor of its GOP (the first
// entry with a zero offset) and returns the entry just before it.
func (idx *Index) previousGOPTail(frame int) (Frame, error) {
	n := frame
	for idx.Frames[n].Offset != 0 {
		n--
		if n < 0 {
			return Frame{}, fmt.Errorf("%w: no anchor before frame %d", ErrCorruptIndex, frame)
		}
	}
	n--
	if n < 0 {
		return Frame{}, fmt.Errorf("%w: no previous gop before frame %d", ErrCorruptIndex, frame)
	}
	return idx.Frames[n], nil
}
