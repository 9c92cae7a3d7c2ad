package ffmpegdecoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

const (
	y4mMagic = "YUV4MPEG2"
	y4mFrame = "FRAME"
)

// streamHeader is the parsed YUV4MPEG2 stream header written by ffmpeg.
type streamHeader struct {
	Width  int
	Height int
	SAR    ports.Rational
	Format ports.PixelFormat
}

type chromaLayout struct {
	format    ports.PixelFormat
	fullRange ports.PixelFormat
	shiftW    int
	shiftH    int
	bytes     int
}

var chromaLayouts = map[string]chromaLayout{
	"420jpeg":  {ports.PixFmtYUV420P, ports.PixFmtYUVJ420P, 1, 1, 1},
	"420mpeg2": {ports.PixFmtYUV420P, ports.PixFmtYUVJ420P, 1, 1, 1},
	"420paldv": {ports.PixFmtYUV420P, ports.PixFmtYUVJ420P, 1, 1, 1},
	"420":      {ports.PixFmtYUV420P, ports.PixFmtYUVJ420P, 1, 1, 1},
	"422":      {ports.PixFmtYUV422P, ports.PixFmtYUVJ422P, 1, 0, 1},
	"444":      {ports.PixFmtYUV444P, ports.PixFmtYUVJ444P, 0, 0, 1},
	"420p9":    {ports.PixFmtYUV420P9, ports.PixFmtYUV420P9, 1, 1, 2},
	"422p9":    {ports.PixFmtYUV422P9, ports.PixFmtYUV422P9, 1, 0, 2},
	"444p9":    {ports.PixFmtYUV444P9, ports.PixFmtYUV444P9, 0, 0, 2},
	"420p10":   {ports.PixFmtYUV420P10, ports.PixFmtYUV420P10, 1, 1, 2},
	"422p10":   {ports.PixFmtYUV422P10, ports.PixFmtYUV422P10, 1, 0, 2},
	"444p10":   {ports.PixFmtYUV444P10, ports.PixFmtYUV444P10, 0, 0, 2},
	"mono":     {ports.PixFmtGray8, ports.PixFmtGray8, 0, 0, 1},
}

func layoutOf(pf ports.PixelFormat) (chromaLayout, bool) {
	for _, l := range chromaLayouts {
		if l.format == pf || l.fullRange == pf {
			return l, true
		}
	}
	return chromaLayout{}, false
}

// parseHeader parses a stream header line without its trailing newline.
func parseHeader(line string) (streamHeader, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != y4mMagic {
		return streamHeader{}, fmt.Errorf("%w: missing %s", ErrBadHeader, y4mMagic)
	}

	var h streamHeader
	chroma := "420jpeg"
	full := false
	for _, f := range fields[1:] {
		tag, val := f[0], f[1:]
		switch tag {
		case 'W':
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return streamHeader{}, fmt.Errorf("%w: width %q", ErrBadHeader, val)
			}
			h.Width = n
		case 'H':
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return streamHeader{}, fmt.Errorf("%w: height %q", ErrBadHeader, val)
			}
			h.Height = n
		case 'A':
			h.SAR = parseRatio(val)
		case 'C':
			chroma = val
		case 'X':
			if val == "COLORRANGE=FULL" {
				full = true
			}
		}
	}
	if h.Width == 0 || h.Height == 0 {
		return streamHeader{}, fmt.Errorf("%w: missing dimensions", ErrBadHeader)
	}

	layout, ok := chromaLayouts[chroma]
	if !ok {
		return streamHeader{}, fmt.Errorf("%w: chroma %q", ErrBadHeader, chroma)
	}
	h.Format = layout.format
	if full {
		h.Format = layout.fullRange
	}
	return h, nil
}

// parseRatio parses "n:d". Unknown ratios such as "0:0" yield a zero Rational.
func parseRatio(s string) ports.Rational {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return ports.Rational{}
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return ports.Rational{}
	}
	return ports.Rational{Num: n, Den: d}
}

// planeGeometry returns the row size in bytes and the row count of each plane.
func (h streamHeader) planeGeometry() (rows [3]int, heights [3]int) {
	layout, _ := layoutOf(h.Format)
	rows[0], heights[0] = h.Width*layout.bytes, h.Height
	if h.Format == ports.PixFmtGray8 {
		return rows, heights
	}
	cw := (h.Width + (1 << layout.shiftW) - 1) >> layout.shiftW
	ch := (h.Height + (1 << layout.shiftH) - 1) >> layout.shiftH
	for p := 1; p < 3; p++ {
		rows[p], heights[p] = cw*layout.bytes, ch
	}
	return rows, heights
}

// frameSize is the byte size of one raw frame.
func (h streamHeader) frameSize() int {
	rows, heights := h.planeGeometry()
	n := 0
	for p := range rows {
		n += rows[p] * heights[p]
	}
	return n
}

// picture slices a raw frame into planes without copying.
func (h streamHeader) picture(data []byte) (*ports.Picture, error) {
	if len(data) != h.frameSize() {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d %s", ErrFrameSize, len(data), h.Width, h.Height, h.Format)
	}
	rows, heights := h.planeGeometry()
	pic := &ports.Picture{
		Format: h.Format,
		Width:  h.Width,
		Height: h.Height,
		SAR:    h.SAR,
	}
	off := 0
	for p := range rows {
		n := rows[p] * heights[p]
		pic.Planes[p] = data[off : off+n]
		pic.Strides[p] = rows[p]
		off += n
	}
	return pic, nil
}
