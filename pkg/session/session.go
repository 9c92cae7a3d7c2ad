// Package session decodes arbitrary frames of an indexed MPEG-1/2 stream.
//
// A Session owns the file set, the demuxer and the video decoder. Requests
// for the frame right after the previous one continue from the open demuxer;
// any other request repositions the stream at the start of the frame's GOP
// and steps the decoder forward to the frame.
package session

import (
	"errors"
	"fmt"
	"io"

	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/multifile"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

var (
	// ErrDecoderInit is returned when the backend cannot configure a video decoder.
	ErrDecoderInit = errors.New("session: decoder init failed")

	// ErrContainerOpen is returned when the demuxer cannot be opened after a reposition.
	ErrContainerOpen = errors.New("session: cannot open container")

	// ErrNoVideoStream is returned when the container holds no video stream.
	ErrNoVideoStream = errors.New("session: no video stream")

	// ErrUnsupportedPixelFormat is returned when the first decoded picture has
	// a pixel format the sink cannot receive.
	ErrUnsupportedPixelFormat = errors.New("session: unsupported pixel format")

	// ErrEndOfStream is returned when the input ends before the frame is produced.
	ErrEndOfStream = errors.New("session: end of stream")

	// ErrDecode is returned when the decoder rejects data or stops consuming it.
	ErrDecode = errors.New("session: decode failed")

	// ErrPlaneSize is returned when a picture plane does not fit the sink buffer.
	ErrPlaneSize = errors.New("session: plane size mismatch")

	// ErrClosed is returned by DecodeFrame after Close.
	ErrClosed = errors.New("session: closed")
)

// Deps are the collaborators of a Session.
type Deps struct {
	FS      ports.FileSystem
	Backend ports.Backend
	Logger  ports.Logger
}

// Options tune a Session.
type Options struct {
	// ScratchSize is the read buffer between the file set and the demuxer.
	// Zero means multifile.ScratchSize.
	ScratchSize int
}

// Info describes an open session.
type Info struct {
	Frames     int
	GOPs       int
	Files      []string
	StreamType ports.StreamType
	Codec      ports.CodecVariant
	IDCT       int
	Backend    string
	// The fields below are zero until the first frame was delivered.
	Width  int
	Height int
	SAR    ports.Rational
	Format ports.SinkFormat
}

// Session decodes frames of one indexed stream. It is not safe for
// concurrent use; callers sharing a Session must serialize DecodeFrame.
type Session struct {
	idx       *index.Index
	backend   ports.Backend
	log       ports.Logger
	container ports.ContainerFormat
	codec     ports.CodecVariant
	delay     int

	stream   *multifile.Stream
	scratch  *multifile.Buffered
	demux    ports.Demuxer
	decoder  ports.VideoDecoder
	video    int
	pending  []byte
	drained  bool
	state    State
	reseeks  int
	closed   bool

	lastFrame int
	lastGOP   int

	format ports.SinkFormat
	width  int
	height int
	sar    ports.Rational
}

// Open validates idx, opens its files and configures the video decoder.
// On failure everything acquired so far is released.
func Open(idx *index.Index, deps Deps, opts Options) (*Session, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: no index", index.ErrCorruptIndex)
	}
	container, err := idx.Container()
	if err != nil {
		return nil, err
	}
	codec, err := idx.Codec()
	if err != nil {
		return nil, err
	}
	if deps.Backend == nil || deps.FS == nil {
		return nil, errors.New("session: backend and file system are required")
	}

	base := logger.OrNoop(deps.Logger)
	s := &Session{
		idx:       idx,
		backend:   deps.Backend,
		log:       base.WithComponent("session"),
		container: container,
		codec:     codec,
		delay:     deps.Backend.PipelineDelay(),
		lastFrame: -1,
		lastGOP:   -1,
	}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	if s.delay != index.PipelineDelay {
		s.log.Debug("Backend %s reports a pipeline delay of %d, open GOP correction uses it", s.backend.Name(), s.delay)
	}

	s.stream, err = multifile.Open(deps.FS, idx.Files, base)
	if err != nil {
		return nil, err
	}
	s.scratch = multifile.NewBuffered(s.stream, opts.ScratchSize)

	s.decoder, err = deps.Backend.OpenVideoDecoder(ports.DecoderConfig{Codec: codec, IDCT: idx.IDCT})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecoderInit, deps.Backend.Name(), err)
	}

	s.log.Debug("Opened %d files, %d frames, %s %s via %s", len(idx.Files), idx.NumFrames(), idx.StreamType, codec, deps.Backend.Name())
	ok = true
	return s, nil
}

// DecodeFrame decodes frame into a buffer acquired from sink. On failure no
// frame is committed and the next request reseeks.
func (s *Session) DecodeFrame(frame int, sink ports.FrameSink) error {
	if s.closed {
		return ErrClosed
	}
	if sink == nil {
		return errors.New("session: nil frame sink")
	}

	loc, err := s.idx.LocateWithDelay(frame, s.delay)
	if err != nil {
		return s.fail(frame, err)
	}

	steps := 0
	if !s.isLinear(frame, loc) {
		s.state = StateSeeking
		if err := s.reseek(loc); err != nil {
			return s.fail(frame, err)
		}
		steps = max(0, loc.Offset)
	}

	s.state = StateDecoding
	var pic *ports.Picture
	for i := 0; i <= steps; i++ {
		pic, err = s.nextPicture()
		if err != nil {
			return s.fail(frame, err)
		}
	}

	if pic == nil {
		return s.fail(frame, fmt.Errorf("%w: no picture for frame %d", ErrDecode, frame))
	}
	if err := s.deliver(frame, pic, sink); err != nil {
		return s.fail(frame, err)
	}

	s.lastFrame = frame
	s.lastGOP = loc.FrameGOP
	s.state = StateLinear
	return nil
}

func (s *Session) isLinear(frame int, loc index.Location) bool {
	if s.state == StateIdle {
		return false
	}
	return (s.lastGOP == loc.FrameGOP || s.lastGOP == loc.FrameGOP-1) && s.lastFrame == frame-1
}

// reseek rebuilds the demuxer at the start of loc.GOP.
func (s *Session) reseek(loc index.Location) error {
	s.closeDemuxer()

	if err := s.stream.Reposition(loc.File, loc.Pos); err != nil {
		return err
	}
	s.scratch.Reset()

	demux, err := s.backend.OpenDemuxer(s.scratch, s.container)
	if err != nil {
		return fmt.Errorf("%w: %s (%s): %v", ErrContainerOpen, s.container.Name, s.container.Hint, err)
	}
	s.demux = demux

	s.decoder.Flush()

	s.video = -1
	for _, st := range demux.Streams() {
		if st.Type == ports.MediaVideo {
			s.video = st.Index
			break
		}
	}
	if s.video < 0 {
		return ErrNoVideoStream
	}

	s.reseeks++
	s.log.Debug("Seek to gop %d (file %d @ %d), %d pictures to skip", loc.GOP, loc.File, loc.Pos, loc.Offset)
	return nil
}

// nextPicture feeds video packets until the decoder completes a picture.
// Unconsumed packet data stays pending for the next call.
func (s *Session) nextPicture() (*ports.Picture, error) {
	for {
		if len(s.pending) == 0 {
			if s.drained {
				return s.drain()
			}
			pkt, err := s.demux.ReadPacket()
			if err == io.EOF {
				s.drained = true
				return s.drain()
			}
			if err != nil {
				return nil, fmt.Errorf("session: read packet: %w", err)
			}
			if pkt.StreamIndex != s.video || len(pkt.Data) == 0 {
				continue
			}
			s.pending = pkt.Data
		}

		n, pic, err := s.decoder.Decode(s.pending)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if n < 0 || n > len(s.pending) {
			return nil, fmt.Errorf("%w: decoder consumed %d of %d bytes", ErrDecode, n, len(s.pending))
		}
		s.pending = s.pending[n:]
		if pic != nil {
			return pic, nil
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: decoder stalled with %d bytes pending", ErrDecode, len(s.pending))
		}
	}
}

// drain asks the decoder for one picture it is still holding back.
func (s *Session) drain() (*ports.Picture, error) {
	_, pic, err := s.decoder.Decode(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if pic == nil {
		return nil, ErrEndOfStream
	}
	return pic, nil
}

func (s *Session) deliver(frame int, pic *ports.Picture, sink ports.FrameSink) error {
	if s.format == ports.SinkFormatNone {
		f, err := ResolveFormat(pic.Format)
		if err != nil {
			return err
		}
		s.format = f
		s.log.Debug("Resolved pixel format %s to %s", pic.Format, f)
	}
	info, _ := s.format.Info()

	buf, err := sink.Acquire(s.format, pic.Width, pic.Height)
	if err != nil {
		return fmt.Errorf("session: acquire frame buffer: %w", err)
	}
	if err := copyPlanes(buf, pic, info); err != nil {
		sink.Discard(buf)
		return err
	}

	meta := ports.FrameMeta{
		Frame:  frame,
		Format: s.format,
		Width:  pic.Width,
		Height: pic.Height,
		SAR:    pic.SAR,
	}
	if err := sink.Commit(buf, meta); err != nil {
		return fmt.Errorf("session: commit frame: %w", err)
	}

	s.width, s.height, s.sar = pic.Width, pic.Height, pic.SAR
	return nil
}

// fail tears the demuxer down so the next request reseeks.
func (s *Session) fail(frame int, err error) error {
	s.closeDemuxer()
	s.state = StateIdle
	s.log.Debug("Frame %d failed: %v", frame, err)
	return fmt.Errorf("decode frame %d: %w", frame, err)
}

func (s *Session) closeDemuxer() {
	if s.demux != nil {
		if err := s.demux.Close(); err != nil {
			s.log.Warn("Closing demuxer failed: %v", err)
		}
		s.demux = nil
	}
	s.pending = nil
	s.drained = false
}

// State returns the current decode state.
func (s *Session) State() State {
	return s.state
}

// Reseeks returns how many times the stream was repositioned.
func (s *Session) Reseeks() int {
	return s.reseeks
}

// Info returns stream parameters and, once a frame was delivered, the
// picture geometry.
func (s *Session) Info() Info {
	return Info{
		Frames:     s.idx.NumFrames(),
		GOPs:       len(s.idx.GOPs),
		Files:      s.idx.Files,
		StreamType: s.idx.StreamType,
		Codec:      s.codec,
		IDCT:       s.idx.IDCT,
		Backend:    s.backend.Name(),
		Width:      s.width,
		Height:     s.height,
		SAR:        s.sar,
		Format:     s.format,
	}
}

// Close releases the demuxer, then the files, then the video decoder.
// Calling Close more than once is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.state = StateIdle

	var errs []error
	if s.demux != nil {
		if err := s.demux.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: close demuxer: %w", err))
		}
		s.demux = nil
	}
	s.pending = nil
	s.scratch = nil

	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			errs = append(errs, err)
		}
		s.stream = nil
	}

	if s.decoder != nil {
		if err := s.decoder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session: close decoder: %w", err))
		}
		s.decoder = nil
	}
	return errors.Join(errs...)
}
