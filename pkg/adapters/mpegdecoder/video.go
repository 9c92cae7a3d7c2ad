package mpegdecoder

import (
	"fmt"

	"github.com/gen2brain/mpeg"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// videoDecoder pushes packet data into an mpeg.Buffer and pulls pictures
// from an mpeg.Video reading that buffer.
type videoDecoder struct {
	log   ports.Logger
	buf   *mpeg.Buffer
	video *mpeg.Video
	ended bool
	pic   ports.Picture
}

func newVideoDecoder(log ports.Logger) (*videoDecoder, error) {
	d := &videoDecoder{log: log}
	if err := d.reset(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *videoDecoder) reset() error {
	buf, err := mpeg.NewBuffer(nil)
	if err != nil {
		return fmt.Errorf("mpegdecoder: create buffer: %w", err)
	}
	// Data is pushed with Write; the decoder must never pull.
	buf.SetLoadCallback(func(*mpeg.Buffer) {})

	d.buf = buf
	d.video = mpeg.NewVideo(buf)
	d.ended = false
	return nil
}

// Decode returns a picture already complete in the buffer without consuming
// data. Otherwise it appends all of data and tries again.
func (d *videoDecoder) Decode(data []byte) (int, *ports.Picture, error) {
	if data == nil {
		if !d.ended {
			d.buf.SignalEnd()
			d.ended = true
		}
		return 0, d.picture(d.video.Decode()), nil
	}

	if d.ended {
		return 0, nil, fmt.Errorf("mpegdecoder: data after end of stream")
	}

	if f := d.video.Decode(); f != nil {
		return 0, d.picture(f), nil
	}

	d.buf.Write(data)
	return len(data), d.picture(d.video.Decode()), nil
}

func (d *videoDecoder) picture(f *mpeg.Frame) *ports.Picture {
	if f == nil {
		return nil
	}
	d.pic = ports.Picture{
		Format:  ports.PixFmtYUV420P,
		Width:   f.Width,
		Height:  f.Height,
		Planes:  [3][]byte{f.Y.Data, f.Cb.Data, f.Cr.Data},
		Strides: [3]int{f.Y.Width, f.Cb.Width, f.Cr.Width},
	}
	return &d.pic
}

// Flush drops buffered data and reference pictures.
func (d *videoDecoder) Flush() {
	if err := d.reset(); err != nil {
		d.log.Warn("Flush failed: %v", err)
	}
}

func (d *videoDecoder) Close() error {
	d.buf = nil
	d.video = nil
	return nil
}

var _ ports.VideoDecoder = (*videoDecoder)(nil)
