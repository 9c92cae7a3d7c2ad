package session

import (
	"fmt"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

var sinkFormats = map[ports.PixelFormat]ports.SinkFormat{
	ports.PixFmtYUV420P:   ports.SinkYUV420P8,
	ports.PixFmtYUVJ420P:  ports.SinkYUV420P8,
	ports.PixFmtYUV422P:   ports.SinkYUV422P8,
	ports.PixFmtYUVJ422P:  ports.SinkYUV422P8,
	ports.PixFmtYUV444P:   ports.SinkYUV444P8,
	ports.PixFmtYUVJ444P:  ports.SinkYUV444P8,
	ports.PixFmtYUV420P9:  ports.SinkYUV420P9,
	ports.PixFmtYUV422P9:  ports.SinkYUV422P9,
	ports.PixFmtYUV444P9:  ports.SinkYUV444P9,
	ports.PixFmtYUV420P10: ports.SinkYUV420P10,
	ports.PixFmtYUV422P10: ports.SinkYUV422P10,
	ports.PixFmtYUV444P10: ports.SinkYUV444P10,
}

// ResolveFormat maps a decoder pixel format to the sink format it is copied
// into. Full-range variants share the format of their limited-range
// counterparts.
func ResolveFormat(pf ports.PixelFormat) (ports.SinkFormat, error) {
	if f, ok := sinkFormats[pf]; ok {
		return f, nil
	}
	return ports.SinkFormatNone, fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, pf)
}

// copyPlanes copies the visible area of every plane of pic into buf,
// honoring both strides.
func copyPlanes(buf *ports.FrameBuffer, pic *ports.Picture, info ports.SinkFormatInfo) error {
	bps := info.BytesPerSample()
	for p := 0; p < 3; p++ {
		w, h := info.PlaneSize(p, pic.Width, pic.Height)
		row := w * bps
		src, dst := pic.Planes[p], buf.Planes[p]
		ss, ds := pic.Strides[p], buf.Strides[p]
		if h == 0 || row == 0 {
			continue
		}
		if ss < row || ds < row || len(src) < ss*(h-1)+row || len(dst) < ds*(h-1)+row {
			return fmt.Errorf("%w: plane %d is %dx%d", ErrPlaneSize, p, w, h)
		}
		for y := 0; y < h; y++ {
			copy(dst[y*ds:y*ds+row], src[y*ss:y*ss+row])
		}
	}
	return nil
}
