// Package ggrenderer provides a renderer implementation using the gg library.
package ggrenderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

const (
	sheetPadding = 4
	labelHeight  = 16
)

// Renderer implements ports.Renderer using the gg library.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// DecodeImage decodes image data into an image.Image.
func (r *Renderer) DecodeImage(data []byte, format ports.ImageFormat) (image.Image, error) {
	reader := bytes.NewReader(data)

	switch format {
	case ports.FormatJPEG:
		return jpeg.Decode(reader)
	case ports.FormatPNG:
		return png.Decode(reader)
	default:
		img, _, err := image.Decode(reader)
		return img, err
	}
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		opts := &jpeg.Options{Quality: quality}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage resizes an image to the specified dimensions.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// ContactSheet draws tiles row by row. Every cell is as tall as the tallest
// scaled tile plus a label line.
func (r *Renderer) ContactSheet(tiles []ports.Tile, columns, tileWidth int, bg color.Color) (image.Image, error) {
	if len(tiles) == 0 {
		return nil, errors.New("ggrenderer: no tiles")
	}
	if columns <= 0 || tileWidth <= 0 {
		return nil, fmt.Errorf("ggrenderer: invalid grid %d columns of width %d", columns, tileWidth)
	}
	if columns > len(tiles) {
		columns = len(tiles)
	}
	rows := (len(tiles) + columns - 1) / columns

	scaled := make([]image.Image, len(tiles))
	tileHeight := 0
	for i, t := range tiles {
		b := t.Image.Bounds()
		if b.Empty() {
			return nil, fmt.Errorf("ggrenderer: tile %d is empty", i)
		}
		h := max(1, tileWidth*b.Dy()/b.Dx())
		scaled[i] = r.ResizeImage(t.Image, tileWidth, h)
		tileHeight = max(tileHeight, h)
	}

	cellW := tileWidth + 2*sheetPadding
	cellH := tileHeight + labelHeight + 2*sheetPadding

	dc := gg.NewContext(columns*cellW, rows*cellH)
	dc.SetColor(bg)
	dc.Clear()

	fg := labelColor(bg)
	for i, img := range scaled {
		x := (i%columns)*cellW + sheetPadding
		y := (i/columns)*cellH + sheetPadding
		dc.DrawImage(img, x, y)

		if tiles[i].Label != "" {
			dc.SetColor(fg)
			dc.DrawStringAnchored(tiles[i].Label,
				float64(x)+float64(tileWidth)/2,
				float64(y+tileHeight)+labelHeight/2.0,
				0.5, 0.5)
		}
	}

	return dc.Image(), nil
}

// labelColor returns black on light backgrounds and white otherwise.
func labelColor(bg color.Color) color.Color {
	r, g, b, _ := bg.RGBA()
	lum := (299*r + 587*g + 114*b) / 1000
	if lum > 0x8000 {
		return color.Black
	}
	return color.White
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)
