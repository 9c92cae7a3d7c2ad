package ports

import "io"

// SeekSize is the whence value a demux layer passes to ByteSource.Seek to
// query the total stream length instead of repositioning.
const SeekSize = 0x10000

// ByteSource is a seekable byte stream consumed by a demuxer.
// Seek supports io.SeekStart and SeekSize only.
type ByteSource interface {
	io.Reader
	io.Seeker

	// Size returns the length of the stream in bytes.
	Size() int64
}

// StreamType identifies the MPEG container layout of the indexed files.
type StreamType int

const (
	StreamElementary StreamType = iota
	StreamProgram
	StreamTransport
)

// String returns the index file spelling of the stream type.
func (t StreamType) String() string {
	switch t {
	case StreamElementary:
		return "elementary"
	case StreamProgram:
		return "program"
	case StreamTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// CodecVariant selects the MPEG video profile to decode.
type CodecVariant int

const (
	CodecMPEG1 CodecVariant = 1
	CodecMPEG2 CodecVariant = 2
)

// String returns the decoder name of the codec variant.
func (c CodecVariant) String() string {
	switch c {
	case CodecMPEG1:
		return "mpeg1video"
	case CodecMPEG2:
		return "mpeg2video"
	default:
		return "unknown"
	}
}

// ContainerFormat names the demuxer to open over a ByteSource.
type ContainerFormat struct {
	// Name is the demuxer name ("mpegvideo", "mpeg", "mpegts").
	Name string
	// Hint is a synthetic file name used only to hint container detection.
	Hint string
}

// MediaType classifies a demuxed stream.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaVideo
	MediaAudio
)

// StreamInfo describes one stream found by a demuxer.
type StreamInfo struct {
	Index int
	Type  MediaType
}

// Packet is one compressed unit read from a demuxer.
// Data is owned by the caller until the next ReadPacket call.
type Packet struct {
	StreamIndex int
	Data        []byte
}

// DecoderConfig is passed once to a backend when the video decoder is opened.
type DecoderConfig struct {
	Codec CodecVariant
	// IDCT is the IDCT algorithm selector from the index, passed through unmodified.
	IDCT int
}

// PixelFormat is the decoder-side layout of a decoded picture.
type PixelFormat int

const (
	PixFmtNone PixelFormat = iota
	PixFmtGray8
	PixFmtYUV420P
	PixFmtYUVJ420P
	PixFmtYUV422P
	PixFmtYUVJ422P
	PixFmtYUV444P
	PixFmtYUVJ444P
	PixFmtYUV420P9
	PixFmtYUV422P9
	PixFmtYUV444P9
	PixFmtYUV420P10
	PixFmtYUV422P10
	PixFmtYUV444P10
)

var pixFmtNames = map[PixelFormat]string{
	PixFmtNone:      "none",
	PixFmtGray8:     "gray",
	PixFmtYUV420P:   "yuv420p",
	PixFmtYUVJ420P:  "yuvj420p",
	PixFmtYUV422P:   "yuv422p",
	PixFmtYUVJ422P:  "yuvj422p",
	PixFmtYUV444P:   "yuv444p",
	PixFmtYUVJ444P:  "yuvj444p",
	PixFmtYUV420P9:  "yuv420p9",
	PixFmtYUV422P9:  "yuv422p9",
	PixFmtYUV444P9:  "yuv444p9",
	PixFmtYUV420P10: "yuv420p10",
	PixFmtYUV422P10: "yuv422p10",
	PixFmtYUV444P10: "yuv444p10",
}

func (p PixelFormat) String() string {
	if name, ok := pixFmtNames[p]; ok {
		return name
	}
	return "unknown"
}

// Rational is a fraction such as a sample aspect ratio. A zero Den means unknown.
type Rational struct {
	Num int
	Den int
}

// Picture is a decoded picture as produced by a VideoDecoder.
// Plane data belongs to the decoder and is only valid until the next Decode call.
type Picture struct {
	Format PixelFormat
	Width  int
	Height int
	// SAR is the sample aspect ratio carried by the stream.
	SAR     Rational
	Planes  [3][]byte
	Strides [3]int
}

// Demuxer splits a container into compressed packets.
type Demuxer interface {
	// Streams returns the streams found while probing the container.
	Streams() []StreamInfo

	// ReadPacket returns the next packet, or io.EOF at the end of the input.
	ReadPacket() (Packet, error)

	// Close releases the demuxer. The ByteSource is not closed.
	Close() error
}

// VideoDecoder turns compressed video packets into pictures.
type VideoDecoder interface {
	// Decode feeds data to the decoder and returns how many bytes were consumed
	// and, when one was completed, a picture. A nil data slice drains one
	// delayed picture at the end of the input.
	Decode(data []byte) (consumed int, pic *Picture, err error)

	// Flush drops buffered reference pictures after a reposition.
	Flush()

	// Close releases decoder resources.
	Close() error
}

// Backend is the external decode capability.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// OpenDemuxer probes src as the given container format.
	OpenDemuxer(src ByteSource, format ContainerFormat) (Demuxer, error)

	// OpenVideoDecoder configures a video decoder once per session.
	OpenVideoDecoder(cfg DecoderConfig) (VideoDecoder, error)

	// PipelineDelay is the number of pictures the decoder holds back for
	// reference reordering before emitting them.
	PipelineDelay() int
}
