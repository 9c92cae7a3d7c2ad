// Package filesink provides a frame sink that saves frames as image files.
package filesink

import (
	"fmt"
	"path/filepath"

	"github.com/jsaowji/d2vsource/pkg/adapters/imagesink"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

// Sink saves every committed frame to baseDir as frame-NNNNNN.png or .jpg.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
	format   ports.ImageFormat
	quality  int
	images   *imagesink.Sink
	saved    []string
}

// New creates a new Sink. quality is used for JPEG output.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer, format ports.ImageFormat, quality int) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		format:   format,
		quality:  quality,
		images:   imagesink.New(),
	}
}

// FramePath returns the path a frame is saved to.
func (s *Sink) FramePath(frame int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("frame-%06d%s", frame, s.format.Ext()))
}

// Acquire allocates a buffer.
func (s *Sink) Acquire(format ports.SinkFormat, width, height int) (*ports.FrameBuffer, error) {
	return s.images.Acquire(format, width, height)
}

// Commit encodes the frame and writes it.
func (s *Sink) Commit(buf *ports.FrameBuffer, meta ports.FrameMeta) error {
	img, err := imagesink.ToImage(buf)
	if err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, s.format, s.quality)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", meta.Frame, err)
	}
	if err := s.fs.MkdirAll(s.baseDir); err != nil {
		return err
	}
	path := s.FramePath(meta.Frame)
	if err := s.fs.WriteFile(path, data); err != nil {
		return err
	}
	s.saved = append(s.saved, path)
	return nil
}

// Discard drops buf.
func (s *Sink) Discard(buf *ports.FrameBuffer) {
	s.images.Discard(buf)
}

// Saved returns the paths written so far.
func (s *Sink) Saved() []string {
	return s.saved
}

// SaveInfoJSON saves stream information next to the frames.
func (s *Sink) SaveInfoJSON(data []byte) error {
	if err := s.fs.MkdirAll(s.baseDir); err != nil {
		return err
	}
	path := filepath.Join(s.baseDir, "info.json")
	return s.fs.WriteFile(path, data)
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
