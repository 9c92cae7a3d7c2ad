// Package smartdecoder selects a decode backend for an index and creates
// backends for sessions.
package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/jsaowji/d2vsource/pkg/adapters/ffmpegdecoder"
	"github.com/jsaowji/d2vsource/pkg/adapters/mpegdecoder"
	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

// Kind names a decode backend.
type Kind string

const (
	// KindAuto picks the pure Go backend for MPEG-1 and ffmpeg otherwise.
	KindAuto Kind = "auto"
	// KindMPEG is the pure Go MPEG-1 backend.
	KindMPEG Kind = "mpeg"
	// KindFFmpeg is the ffmpeg process backend.
	KindFFmpeg Kind = "ffmpeg"
)

// Info contains information about the selected backend.
type Info struct {
	// Codec is the codec variant declared by the index.
	Codec ports.CodecVariant
	// Backend is the backend that will be used.
	Backend Kind
}

// Options configures backend selection.
type Options struct {
	// Backend forces a backend. Empty means KindAuto.
	Backend Kind
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	Logger     ports.Logger
}

var (
	// ErrUnknownBackend is returned for backend names other than auto, mpeg and ffmpeg.
	ErrUnknownBackend = errors.New("smartdecoder: unknown backend")
	// ErrNoDecoderAvailable is returned when no backend can decode the index.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
)

// ParseKind parses a backend name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAuto:
		return KindAuto, nil
	case KindMPEG, KindFFmpeg:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Select picks the backend for idx.
//
// The selection flow:
//   - MPEG-1: pure Go decoder
//   - MPEG-2: ffmpeg, when it can be found
func Select(idx *index.Index, opts Options) (Info, error) {
	if opts.FFmpegPath != "" {
		ffmpegdecoder.SetFFmpegPath(opts.FFmpegPath)
	}

	codec, err := idx.Codec()
	if err != nil {
		return Info{}, err
	}
	kind, err := ParseKind(string(opts.Backend))
	if err != nil {
		return Info{}, err
	}

	switch kind {
	case KindMPEG:
		if codec != ports.CodecMPEG1 {
			return Info{}, fmt.Errorf("%w: the mpeg backend decodes MPEG-1 only", ErrNoDecoderAvailable)
		}
	case KindFFmpeg:
		if !ffmpegdecoder.IsAvailable() {
			return Info{}, fmt.Errorf("%w: %v", ErrNoDecoderAvailable, ffmpegdecoder.ErrFFmpegNotFound)
		}
	default:
		switch {
		case codec == ports.CodecMPEG1:
			kind = KindMPEG
		case ffmpegdecoder.IsAvailable():
			kind = KindFFmpeg
		default:
			return Info{}, fmt.Errorf("%w: %s needs ffmpeg", ErrNoDecoderAvailable, codec)
		}
	}

	return Info{Codec: codec, Backend: kind}, nil
}

// Factory creates one backend per session.
type Factory func() (ports.Backend, error)

// NewFactory selects a backend for idx and returns a factory creating it.
func NewFactory(idx *index.Index, opts Options) (Factory, Info, error) {
	info, err := Select(idx, opts)
	if err != nil {
		return nil, Info{}, err
	}

	log := opts.Logger
	switch info.Backend {
	case KindMPEG:
		return func() (ports.Backend, error) {
			return mpegdecoder.New(log), nil
		}, info, nil
	default:
		return func() (ports.Backend, error) {
			return ffmpegdecoder.New(log)
		}, info, nil
	}
}

// New selects and creates a backend for idx.
func New(idx *index.Index, opts Options) (ports.Backend, Info, error) {
	factory, info, err := NewFactory(idx, opts)
	if err != nil {
		return nil, Info{}, err
	}
	b, err := factory()
	if err != nil {
		return nil, Info{}, err
	}
	return b, info, nil
}

// IsFFmpegAvailable checks if the ffmpeg backend can be used.
func IsFFmpegAvailable() bool {
	return ffmpegdecoder.IsAvailable()
}
