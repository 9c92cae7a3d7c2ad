package session

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/mocks"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

const gopSize = 8

// newFixture builds three closed GOPs of eight pictures each, numbered 0-23
// in decode order. File 0 holds GOPs 0 and 1 with an audio packet after
// picture 2; file 1 holds GOP 2. Frame n is picture n.
func newFixture(t *testing.T) (*mocks.FileSystem, *mocks.Backend, *index.Index) {
	t.Helper()

	var file0 []byte
	file0 = append(file0, mocks.Records(0, 2)...)
	file0 = append(file0, mocks.Record(1, 999)...)
	file0 = append(file0, mocks.Records(3, 7)...)
	gop1Pos := int64(len(file0))
	file0 = append(file0, mocks.Records(8, 15)...)
	file1 := mocks.Records(16, 23)

	fs := mocks.NewFileSystem()
	fs.AddFile("VTS_01_1.VOB", file0)
	fs.AddFile("VTS_01_2.VOB", file1)

	idx := &index.Index{
		Files:      []string{"VTS_01_1.VOB", "VTS_01_2.VOB"},
		StreamType: ports.StreamProgram,
		MPEGType:   2,
		IDCT:       20,
		GOPs: []index.GOP{
			{File: 0, Pos: 0, Closed: true},
			{File: 0, Pos: gop1Pos, Closed: true},
			{File: 1, Pos: 0, Closed: true},
		},
	}
	for n := 0; n < 3*gopSize; n++ {
		idx.Frames = append(idx.Frames, index.Frame{GOP: n / gopSize, Offset: n % gopSize})
	}

	return fs, mocks.NewBackend(), idx
}

func openSession(t *testing.T, fs *mocks.FileSystem, backend *mocks.Backend, idx *index.Index) *Session {
	t.Helper()
	s, err := Open(idx, Deps{FS: fs, Backend: backend}, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// lumaOf returns the sample value of the last committed frame.
func lumaOf(t *testing.T, sink *mocks.FrameSink) byte {
	t.Helper()
	f, ok := sink.Last()
	if !ok {
		t.Fatal("no frame committed")
	}
	return f.Planes[0][0]
}

func TestDecodeFrame_ConsecutiveFramesNeverReseek(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	for n := 0; n < idx.NumFrames(); n++ {
		if err := s.DecodeFrame(n, sink); err != nil {
			t.Fatalf("DecodeFrame(%d) failed: %v", n, err)
		}
		if got := lumaOf(t, sink); got != byte(n) {
			t.Fatalf("frame %d: expected picture %d, got %d", n, n, got)
		}
		if s.State() != StateLinear {
			t.Errorf("frame %d: expected linear state, got %s", n, s.State())
		}
	}

	if s.Reseeks() != 1 {
		t.Errorf("expected 1 reseek, got %d", s.Reseeks())
	}
	if backend.DemuxersOpened != 1 {
		t.Errorf("expected 1 demuxer, got %d", backend.DemuxersOpened)
	}
}

func TestDecodeFrame_OffsetStepsDiscardPictures(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	// Frame 13 is offset 5 in GOP 1.
	if err := s.DecodeFrame(13, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	want := []int{8, 9, 10, 11, 12, 13}
	if !reflect.DeepEqual(backend.Emitted, want) {
		t.Errorf("expected pictures %v, got %v", want, backend.Emitted)
	}
	if len(sink.Committed) != 1 {
		t.Fatalf("expected 1 committed frame, got %d", len(sink.Committed))
	}
	if got := lumaOf(t, sink); got != 13 {
		t.Errorf("expected picture 13, got %d", got)
	}
	if sink.Committed[0].Meta.Frame != 13 {
		t.Errorf("expected meta frame 13, got %d", sink.Committed[0].Meta.Frame)
	}
}

func TestDecodeFrame_RepeatedRandomAccessIsIdentical(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	for _, n := range []int{18, 3, 18} {
		if err := s.DecodeFrame(n, sink); err != nil {
			t.Fatalf("DecodeFrame(%d) failed: %v", n, err)
		}
	}

	if s.Reseeks() != 3 {
		t.Errorf("expected 3 reseeks, got %d", s.Reseeks())
	}
	first, last := sink.Committed[0], sink.Committed[2]
	for p := 0; p < 3; p++ {
		if !bytes.Equal(first.Planes[p], last.Planes[p]) {
			t.Errorf("plane %d differs between the two decodes of frame 18", p)
		}
	}
	if first.Meta != last.Meta {
		t.Errorf("metadata differs: %+v vs %+v", first.Meta, last.Meta)
	}
	if backend.Flushes != 3 {
		t.Errorf("expected a flush per reseek, got %d", backend.Flushes)
	}
}

func TestDecodeFrame_CopiesVisibleAreaOnly(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	if err := s.DecodeFrame(5, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	f, _ := sink.Last()
	if bytes.IndexByte(f.Planes[0], 0xff) >= 0 {
		t.Error("luma padding was copied into the sink buffer")
	}
	if len(f.Planes[0]) != 8 || len(f.Planes[1]) != 2 {
		t.Errorf("unexpected plane sizes %d/%d", len(f.Planes[0]), len(f.Planes[1]))
	}
	meta := f.Meta
	if meta.Format != ports.SinkYUV420P8 || meta.Width != 4 || meta.Height != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.SAR != (ports.Rational{Num: 1, Den: 1}) {
		t.Errorf("expected SAR 1:1, got %+v", meta.SAR)
	}
}

func TestDecodeFrame_PartialConsumption(t *testing.T) {
	fs, backend, idx := newFixture(t)
	backend.MaxConsume = 1
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	for _, n := range []int{6, 7, 8, 9} {
		if err := s.DecodeFrame(n, sink); err != nil {
			t.Fatalf("DecodeFrame(%d) failed: %v", n, err)
		}
		if got := lumaOf(t, sink); got != byte(n) {
			t.Errorf("frame %d: expected picture %d, got %d", n, n, got)
		}
	}
	if s.Reseeks() != 1 {
		t.Errorf("expected 1 reseek, got %d", s.Reseeks())
	}
}

func TestDecodeFrame_SkipsNonVideoPackets(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	for n := 0; n < 5; n++ {
		if err := s.DecodeFrame(n, sink); err != nil {
			t.Fatalf("DecodeFrame(%d) failed: %v", n, err)
		}
	}
	for _, id := range backend.Decoded {
		if id == 999 {
			t.Fatal("audio packet was fed to the video decoder")
		}
	}
}

func TestDecodeFrame_LastFrameDrainsDecoder(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	if err := s.DecodeFrame(23, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if got := lumaOf(t, sink); got != 23 {
		t.Errorf("expected picture 23, got %d", got)
	}
}

func TestDecodeFrame_EndOfStream(t *testing.T) {
	fs, backend, idx := newFixture(t)
	idx.Frames = append(idx.Frames, index.Frame{GOP: 2, Offset: gopSize})
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	err := s.DecodeFrame(24, sink)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle state, got %s", s.State())
	}
	if len(sink.Committed) != 0 {
		t.Error("expected no committed frame")
	}
}

func TestDecodeFrame_OpenGOPStartsFromPreviousGOP(t *testing.T) {
	fs, backend, idx := newFixture(t)
	idx.GOPs[1].Closed = false
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	loc, err := idx.LocateWithDelay(9, backend.PipelineDelay())
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if loc.GOP != 0 {
		t.Fatalf("expected lookback to gop 0, got %d", loc.GOP)
	}

	if err := s.DecodeFrame(9, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if len(backend.Emitted) != loc.Offset+1 {
		t.Errorf("expected %d pictures decoded from gop 0, got %v", loc.Offset+1, backend.Emitted)
	}
	if backend.Emitted[0] != 0 {
		t.Errorf("expected decoding to start at gop 0, got picture %d", backend.Emitted[0])
	}

	// The cursor records the frame's own GOP, so the next frame is linear.
	if err := s.DecodeFrame(10, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if s.Reseeks() != 1 {
		t.Errorf("expected 1 reseek, got %d", s.Reseeks())
	}
}

func TestDecodeFrame_OpenGOPAfterSinglePictureGOP(t *testing.T) {
	var data []byte
	data = append(data, mocks.Records(0, 0)...)
	gop1Pos := int64(len(data))
	data = append(data, mocks.Records(1, 2)...)

	fs := mocks.NewFileSystem()
	fs.AddFile("a.m2v", data)
	backend := mocks.NewBackend()
	idx := &index.Index{
		Files:      []string{"a.m2v"},
		StreamType: ports.StreamElementary,
		MPEGType:   2,
		GOPs: []index.GOP{
			{File: 0, Pos: 0, Closed: true},
			{File: 0, Pos: gop1Pos, Closed: false},
		},
		Frames: []index.Frame{
			{GOP: 0, Offset: 0},
			{GOP: 1, Offset: 0},
			{GOP: 1, Offset: 1},
		},
	}
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	if err := s.DecodeFrame(1, sink); err != nil {
		t.Fatalf("DecodeFrame(1) failed: %v", err)
	}
	if len(sink.Committed) != 1 {
		t.Fatalf("expected 1 committed frame, got %d", len(sink.Committed))
	}
	if len(backend.Emitted) != 1 {
		t.Errorf("expected exactly one decoded picture, got %v", backend.Emitted)
	}

	if err := s.DecodeFrame(2, sink); err != nil {
		t.Fatalf("DecodeFrame(2) failed: %v", err)
	}
	if s.Reseeks() != 1 {
		t.Errorf("expected 1 reseek, got %d", s.Reseeks())
	}
	if s.State() != StateLinear {
		t.Errorf("expected linear state, got %s", s.State())
	}
}

func TestDecodeFrame_ContainerOpenFailureReturnsToIdle(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	backend.OpenDemuxerErr = errors.New("probe failed")
	err := s.DecodeFrame(0, sink)
	if !errors.Is(err, ErrContainerOpen) {
		t.Fatalf("expected ErrContainerOpen, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle state, got %s", s.State())
	}

	backend.OpenDemuxerErr = nil
	if err := s.DecodeFrame(1, sink); err != nil {
		t.Fatalf("DecodeFrame after failure failed: %v", err)
	}
	if got := lumaOf(t, sink); got != 1 {
		t.Errorf("expected picture 1, got %d", got)
	}
	if len(backend.Formats) != 2 {
		t.Errorf("expected 2 demuxer opens, got %d", len(backend.Formats))
	}
	if backend.Formats[0].Name != "mpeg" || backend.Formats[0].Hint != "fakevideo.vob" {
		t.Errorf("unexpected container format %+v", backend.Formats[0])
	}
}

func TestDecodeFrame_FailureForcesReseek(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	if err := s.DecodeFrame(0, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	backend.ReadErr = errors.New("disk gone")
	if err := s.DecodeFrame(1, sink); err == nil {
		t.Fatal("expected read error")
	}

	backend.ReadErr = nil
	if err := s.DecodeFrame(2, sink); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if s.Reseeks() != 2 {
		t.Errorf("expected a reseek after the failure, got %d reseeks", s.Reseeks())
	}
	if got := lumaOf(t, sink); got != 2 {
		t.Errorf("expected picture 2, got %d", got)
	}
}

func TestDecodeFrame_NoVideoStream(t *testing.T) {
	fs, backend, idx := newFixture(t)
	backend.StreamList = []ports.StreamInfo{{Index: 1, Type: ports.MediaAudio}}
	s := openSession(t, fs, backend, idx)

	err := s.DecodeFrame(0, mocks.NewFrameSink())
	if !errors.Is(err, ErrNoVideoStream) {
		t.Errorf("expected ErrNoVideoStream, got %v", err)
	}
}

func TestDecodeFrame_UnsupportedPixelFormat(t *testing.T) {
	fs, backend, idx := newFixture(t)
	backend.Format = ports.PixFmtGray8
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()

	err := s.DecodeFrame(0, sink)
	if !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Errorf("expected ErrUnsupportedPixelFormat, got %v", err)
	}
	if sink.Acquired != 0 {
		t.Error("expected no buffer to be acquired")
	}
}

func TestDecodeFrame_OutOfRange(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)

	if err := s.DecodeFrame(0, mocks.NewFrameSink()); err != nil {
		t.Fatalf("DecodeFrame(0) failed: %v", err)
	}

	err := s.DecodeFrame(100, mocks.NewFrameSink())
	if !errors.Is(err, index.ErrFrameOutOfRange) {
		t.Errorf("expected ErrFrameOutOfRange, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("expected Idle after out of range frame, got %s", s.State())
	}

	if err := s.DecodeFrame(1, mocks.NewFrameSink()); err != nil {
		t.Fatalf("DecodeFrame(1) failed: %v", err)
	}
	if s.Reseeks() != 2 {
		t.Errorf("expected frame 1 to reseek, got %d reseeks", s.Reseeks())
	}
}

func TestDecodeFrame_CommitFailure(t *testing.T) {
	fs, backend, idx := newFixture(t)
	s := openSession(t, fs, backend, idx)
	sink := mocks.NewFrameSink()
	sink.CommitErr = errors.New("host rejected frame")

	if err := s.DecodeFrame(0, sink); err == nil {
		t.Fatal("expected commit error")
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle state, got %s", s.State())
	}
}

func TestOpen_PassesDecoderConfig(t *testing.T) {
	fs, backend, idx := newFixture(t)
	openSession(t, fs, backend, idx)

	want := []ports.DecoderConfig{{Codec: ports.CodecMPEG2, IDCT: 20}}
	if !reflect.DeepEqual(backend.Configs, want) {
		t.Errorf("expected configs %v, got %v", want, backend.Configs)
	}
}

func TestOpen_DecoderInitFailureReleasesFiles(t *testing.T) {
	fs, backend, idx := newFixture(t)
	backend.OpenDecoderErr = errors.New("no such codec")

	s, err := Open(idx, Deps{FS: fs, Backend: backend}, Options{})
	if !errors.Is(err, ErrDecoderInit) {
		t.Fatalf("expected ErrDecoderInit, got %v", err)
	}
	if s != nil {
		t.Error("expected nil session")
	}
	if fs.OpenCount() != 0 {
		t.Errorf("expected all files closed, %d still open", fs.OpenCount())
	}
}

func TestOpen_MissingFileOpensNoDecoder(t *testing.T) {
	fs, backend, idx := newFixture(t)
	idx.Files = append(idx.Files, "VTS_01_3.VOB")

	_, err := Open(idx, Deps{FS: fs, Backend: backend}, Options{})
	if err == nil {
		t.Fatal("expected file open error")
	}
	if len(backend.Configs) != 0 {
		t.Error("decoder should not be configured when files are missing")
	}
	if fs.OpenCount() != 0 {
		t.Errorf("expected all files closed, %d still open", fs.OpenCount())
	}
}

func TestOpen_RejectsUnsupportedParameters(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*index.Index)
		want   error
	}{
		{"stream type", func(idx *index.Index) { idx.StreamType = ports.StreamType(7) }, index.ErrUnsupportedStreamType},
		{"codec", func(idx *index.Index) { idx.MPEGType = 4 }, index.ErrUnsupportedCodec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, backend, idx := newFixture(t)
			tt.mutate(idx)

			_, err := Open(idx, Deps{FS: fs, Backend: backend}, Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if len(fs.Opened()) != 0 {
				t.Error("expected no files to be opened")
			}
		})
	}
}

func TestClose_ReleaseOrder(t *testing.T) {
	fs, backend, idx := newFixture(t)
	fs.OnClose = func(path string) { backend.Event("file.close") }

	s, err := Open(idx, Deps{FS: fs, Backend: backend}, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.DecodeFrame(0, mocks.NewFrameSink()); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	backend.Events = nil
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	want := []string{"demuxer.close", "file.close", "file.close", "decoder.close"}
	if !reflect.DeepEqual(backend.Events, want) {
		t.Errorf("expected %v, got %v", want, backend.Events)
	}

	if err := s.DecodeFrame(1, mocks.NewFrameSink()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestIndependentSessions(t *testing.T) {
	fs, backend, idx := newFixture(t)
	a := openSession(t, fs, backend, idx)
	b := openSession(t, fs, backend, idx)
	sinkA, sinkB := mocks.NewFrameSink(), mocks.NewFrameSink()

	if err := a.DecodeFrame(4, sinkA); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if err := b.DecodeFrame(5, sinkB); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if err := a.DecodeFrame(5, sinkA); err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if a.Reseeks() != 1 || b.Reseeks() != 1 {
		t.Errorf("expected one reseek per session, got %d and %d", a.Reseeks(), b.Reseeks())
	}
	if lumaOf(t, sinkA) != 5 || lumaOf(t, sinkB) != 5 {
		t.Error("sessions interfered with each other")
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		in   ports.PixelFormat
		want ports.SinkFormat
	}{
		{ports.PixFmtYUV420P, ports.SinkYUV420P8},
		{ports.PixFmtYUVJ420P, ports.SinkYUV420P8},
		{ports.PixFmtYUVJ422P, ports.SinkYUV422P8},
		{ports.PixFmtYUV444P, ports.SinkYUV444P8},
		{ports.PixFmtYUV422P9, ports.SinkYUV422P9},
		{ports.PixFmtYUV420P10, ports.SinkYUV420P10},
	}
	for _, tt := range tests {
		got, err := ResolveFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ResolveFormat(%s) = %s, %v; want %s", tt.in, got, err, tt.want)
		}
	}

	if _, err := ResolveFormat(ports.PixFmtGray8); !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Errorf("expected ErrUnsupportedPixelFormat for gray, got %v", err)
	}
}
