package mocks

import (
	"image"
	"image/color"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image
	ContactSheetFunc func(tiles []ports.Tile, columns, tileWidth int, bg color.Color) (image.Image, error)

	// Encoded records every image passed to EncodeImage.
	Encoded []image.Image
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	m.Encoded = append(m.Encoded, img)
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte(format.Ext()), nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func (m *Renderer) ContactSheet(tiles []ports.Tile, columns, tileWidth int, bg color.Color) (image.Image, error) {
	if m.ContactSheetFunc != nil {
		return m.ContactSheetFunc(tiles, columns, tileWidth, bg)
	}
	rows := (len(tiles) + columns - 1) / columns
	return image.NewRGBA(image.Rect(0, 0, columns*tileWidth, rows*tileWidth)), nil
}

var _ ports.Renderer = (*Renderer)(nil)
