// Package mpegdecoder provides a pure Go decode backend.
//
// Video is decoded with github.com/gen2brain/mpeg, which handles MPEG-1
// only. Containers are split by small demuxers in this package so that
// decoding starts exactly at the byte the stream was positioned at.
package mpegdecoder

import (
	"errors"
	"fmt"

	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

var (
	// ErrUnsupportedCodec is returned for codecs other than MPEG-1 video.
	ErrUnsupportedCodec = errors.New("mpegdecoder: unsupported codec")

	// ErrUnsupportedContainer is returned for unknown demuxer names.
	ErrUnsupportedContainer = errors.New("mpegdecoder: unsupported container")

	// ErrNotProgramStream is returned when no pack header is found while probing.
	ErrNotProgramStream = errors.New("mpegdecoder: no pack header")

	// ErrNoProgram is returned when no PMT is found while probing a transport stream.
	ErrNoProgram = errors.New("mpegdecoder: no program map")
)

// Backend implements ports.Backend in pure Go.
type Backend struct {
	log ports.Logger
}

// New creates a new Backend.
func New(log ports.Logger) *Backend {
	return &Backend{log: logger.OrNoop(log).WithComponent("mpegdecoder")}
}

// Name returns "mpeg".
func (b *Backend) Name() string {
	return "mpeg"
}

// PipelineDelay is -1. The decoder does not drop the leading B pictures of
// an open GOP after a reset, so decoding from the previous GOP has to step
// one picture past its tail instead of one short of it.
func (b *Backend) PipelineDelay() int {
	return -1
}

// OpenDemuxer opens one of the elementary, program or transport demuxers.
func (b *Backend) OpenDemuxer(src ports.ByteSource, format ports.ContainerFormat) (ports.Demuxer, error) {
	switch format.Name {
	case "mpegvideo":
		return newElementaryDemuxer(src), nil
	case "mpeg":
		return newProgramDemuxer(src)
	case "mpegts":
		return newTransportDemuxer(src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, format.Name)
	}
}

// OpenVideoDecoder creates an MPEG-1 video decoder. The IDCT selector is not
// configurable in this decoder and is ignored.
func (b *Backend) OpenVideoDecoder(cfg ports.DecoderConfig) (ports.VideoDecoder, error) {
	if cfg.Codec != ports.CodecMPEG1 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, cfg.Codec)
	}
	if cfg.IDCT != 0 {
		b.log.Debug("IDCT algorithm %d ignored by the pure Go decoder", cfg.IDCT)
	}
	return newVideoDecoder(b.log)
}

// Ensure Backend implements ports.Backend
var _ ports.Backend = (*Backend)(nil)
