package ffmpegdecoder

import "errors"

var (
	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("ffmpegdecoder: ffmpeg not found")

	// ErrNotConfigured is returned when a demuxer is opened before the video decoder.
	ErrNotConfigured = errors.New("ffmpegdecoder: video decoder not configured")

	// ErrUnsupportedContainer is returned for unknown demuxer names.
	ErrUnsupportedContainer = errors.New("ffmpegdecoder: unsupported container")

	// ErrUnsupportedCodec is returned for codec variants ffmpeg is not asked to decode.
	ErrUnsupportedCodec = errors.New("ffmpegdecoder: unsupported codec")

	// ErrBadHeader is returned when the raw video stream header cannot be parsed.
	ErrBadHeader = errors.New("ffmpegdecoder: bad stream header")

	// ErrFrameSize is returned when a raw frame does not match the stream geometry.
	ErrFrameSize = errors.New("ffmpegdecoder: frame size mismatch")
)
