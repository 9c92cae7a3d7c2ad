package ports

import (
	"image"
	"image/color"
)

// Renderer abstracts image encoding and compositing for exported frames.
type Renderer interface {
	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)

	// ResizeImage resizes an image to the specified dimensions.
	ResizeImage(img image.Image, width, height int) image.Image

	// ContactSheet lays tiles out on a grid with the given number of columns.
	// Each tile is scaled to tileWidth, keeping its aspect ratio, and labeled.
	ContactSheet(tiles []Tile, columns, tileWidth int, bg color.Color) (image.Image, error)
}

// Tile is one labeled image on a contact sheet.
type Tile struct {
	Image image.Image
	Label string
}

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)

// ParseImageFormat maps a file extension or name to an ImageFormat.
// Anything other than jpeg/jpg yields FormatPNG.
func ParseImageFormat(s string) ImageFormat {
	switch s {
	case "jpeg", "jpg", ".jpeg", ".jpg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

// Ext returns the file extension for the format, including the dot.
func (f ImageFormat) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}
