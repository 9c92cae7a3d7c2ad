// Package imagesink provides a frame sink that turns decoded frames into
// image.YCbCr pictures.
//
// 8-bit frames are decoded straight into the image planes. Frames with 9 or
// 10 bits per sample are decoded into 16-bit planes and shifted down to 8
// bits on commit.
package imagesink

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// ErrUnknownFormat is returned by Acquire for SinkFormatNone and unknown formats.
var ErrUnknownFormat = errors.New("imagesink: unknown sink format")

// Frame is a committed frame.
type Frame struct {
	Meta  ports.FrameMeta
	Image *image.YCbCr
}

// Sink implements ports.FrameSink.
type Sink struct {
	// OnFrame, when set, is called for every committed frame. An error is
	// returned from Commit.
	OnFrame func(Frame) error

	mu   sync.Mutex
	last *Frame
}

// New creates a new Sink.
func New() *Sink {
	return &Sink{}
}

func subsampleRatio(info ports.SinkFormatInfo) image.YCbCrSubsampleRatio {
	switch {
	case info.SubSamplingW == 1 && info.SubSamplingH == 1:
		return image.YCbCrSubsampleRatio420
	case info.SubSamplingW == 1:
		return image.YCbCrSubsampleRatio422
	default:
		return image.YCbCrSubsampleRatio444
	}
}

// Acquire allocates a buffer. 8-bit buffers alias the planes of a new
// image.YCbCr held in Opaque.
func (s *Sink) Acquire(format ports.SinkFormat, width, height int) (*ports.FrameBuffer, error) {
	info, ok := format.Info()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("imagesink: invalid size %dx%d", width, height)
	}

	buf := &ports.FrameBuffer{Format: format, Width: width, Height: height}
	if info.BitsPerSample == 8 {
		img := image.NewYCbCr(image.Rect(0, 0, width, height), subsampleRatio(info))
		buf.Planes = [3][]byte{img.Y, img.Cb, img.Cr}
		buf.Strides = [3]int{img.YStride, img.CStride, img.CStride}
		buf.Opaque = img
		return buf, nil
	}

	for p := 0; p < 3; p++ {
		w, h := info.PlaneSize(p, width, height)
		buf.Strides[p] = w * info.BytesPerSample()
		buf.Planes[p] = make([]byte, buf.Strides[p]*h)
	}
	return buf, nil
}

// Commit converts buf into an image and records it as the last frame.
func (s *Sink) Commit(buf *ports.FrameBuffer, meta ports.FrameMeta) error {
	img, err := ToImage(buf)
	if err != nil {
		return err
	}
	f := Frame{Meta: meta, Image: img}

	s.mu.Lock()
	s.last = &f
	s.mu.Unlock()

	if s.OnFrame != nil {
		return s.OnFrame(f)
	}
	return nil
}

// Discard drops buf.
func (s *Sink) Discard(buf *ports.FrameBuffer) {}

// Last returns the most recently committed frame.
func (s *Sink) Last() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Frame{}, false
	}
	return *s.last, true
}

// ToImage returns the image of buf. 8-bit buffers from Acquire are returned
// without copying.
func ToImage(buf *ports.FrameBuffer) (*image.YCbCr, error) {
	if img, ok := buf.Opaque.(*image.YCbCr); ok {
		return img, nil
	}
	info, ok := buf.Format.Info()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, buf.Format)
	}

	img := image.NewYCbCr(image.Rect(0, 0, buf.Width, buf.Height), subsampleRatio(info))
	dst := [3][]byte{img.Y, img.Cb, img.Cr}
	dstStride := [3]int{img.YStride, img.CStride, img.CStride}
	shift := uint(info.BitsPerSample - 8)

	for p := 0; p < 3; p++ {
		w, h := info.PlaneSize(p, buf.Width, buf.Height)
		src, ss := buf.Planes[p], buf.Strides[p]
		if len(src) < ss*(h-1)+w*info.BytesPerSample() {
			return nil, fmt.Errorf("imagesink: plane %d too small", p)
		}
		for y := 0; y < h; y++ {
			row := src[y*ss:]
			out := dst[p][y*dstStride[p]:]
			for x := 0; x < w; x++ {
				if info.BitsPerSample == 8 {
					out[x] = row[x]
					continue
				}
				v := uint16(row[2*x]) | uint16(row[2*x+1])<<8
				if v >>= shift; v > 0xff {
					v = 0xff
				}
				out[x] = byte(v)
			}
		}
	}
	return img, nil
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
