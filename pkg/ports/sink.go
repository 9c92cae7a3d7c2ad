package ports

// SinkFormat is the destination pixel format enumeration of a FrameSink.
type SinkFormat int

const (
	SinkFormatNone SinkFormat = iota
	SinkYUV420P8
	SinkYUV422P8
	SinkYUV444P8
	SinkYUV420P9
	SinkYUV422P9
	SinkYUV444P9
	SinkYUV420P10
	SinkYUV422P10
	SinkYUV444P10
)

// SinkFormatInfo describes the plane geometry of a SinkFormat.
type SinkFormatInfo struct {
	Name string
	// BitsPerSample is 8, 9 or 10. Samples above 8 bits are stored as
	// little-endian uint16.
	BitsPerSample int
	// SubSamplingW and SubSamplingH are log2 chroma subsampling factors.
	SubSamplingW int
	SubSamplingH int
}

var sinkFormats = map[SinkFormat]SinkFormatInfo{
	SinkYUV420P8:  {"YUV420P8", 8, 1, 1},
	SinkYUV422P8:  {"YUV422P8", 8, 1, 0},
	SinkYUV444P8:  {"YUV444P8", 8, 0, 0},
	SinkYUV420P9:  {"YUV420P9", 9, 1, 1},
	SinkYUV422P9:  {"YUV422P9", 9, 1, 0},
	SinkYUV444P9:  {"YUV444P9", 9, 0, 0},
	SinkYUV420P10: {"YUV420P10", 10, 1, 1},
	SinkYUV422P10: {"YUV422P10", 10, 1, 0},
	SinkYUV444P10: {"YUV444P10", 10, 0, 0},
}

// Info returns the plane geometry of the format. ok is false for SinkFormatNone
// and unknown values.
func (f SinkFormat) Info() (info SinkFormatInfo, ok bool) {
	info, ok = sinkFormats[f]
	return info, ok
}

func (f SinkFormat) String() string {
	if info, ok := sinkFormats[f]; ok {
		return info.Name
	}
	return "none"
}

// BytesPerSample returns 1 for 8-bit formats and 2 otherwise.
func (i SinkFormatInfo) BytesPerSample() int {
	if i.BitsPerSample > 8 {
		return 2
	}
	return 1
}

// PlaneSize returns the width and height in samples of plane p for a picture
// of the given luma dimensions.
func (i SinkFormatInfo) PlaneSize(p, width, height int) (int, int) {
	if p == 0 {
		return width, height
	}
	w := (width + (1 << i.SubSamplingW) - 1) >> i.SubSamplingW
	h := (height + (1 << i.SubSamplingH) - 1) >> i.SubSamplingH
	return w, h
}

// FrameBuffer is a destination picture supplied by a FrameSink.
type FrameBuffer struct {
	Format  SinkFormat
	Width   int
	Height  int
	Planes  [3][]byte
	Strides [3]int
	// Opaque is reserved for the sink that allocated the buffer.
	Opaque any
}

// FrameMeta is the picture metadata propagated from the stream.
type FrameMeta struct {
	Frame  int
	Format SinkFormat
	Width  int
	Height int
	SAR    Rational
}

// FrameSink owns destination buffers for decoded frames.
type FrameSink interface {
	// Acquire returns a writable buffer for a picture of the given format and size.
	Acquire(format SinkFormat, width, height int) (*FrameBuffer, error)

	// Commit hands a fully written buffer back to the sink.
	Commit(buf *FrameBuffer, meta FrameMeta) error

	// Discard releases a buffer that was acquired but not written completely.
	Discard(buf *FrameBuffer)
}
