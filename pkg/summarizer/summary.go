package summarizer

import "time"

// Summary contains all data collected during a verification run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	Index       string

	// Stream information from the index
	Stream StreamInfo

	// Picture geometry from the first decoded frame
	Picture PictureInfo

	// Decode results
	Decode DecodeInfo
}

// FileInfo describes one media file of the index.
type FileInfo struct {
	Path string
	Size int64
}

// StreamInfo describes the indexed stream.
type StreamInfo struct {
	StreamType string
	Codec      string
	IDCT       int
	Backend    string
	Frames     int
	GOPs       int
	ClosedGOPs int
	Files      []FileInfo
}

// PictureInfo describes decoded pictures.
type PictureInfo struct {
	Width  int
	Height int
	SAR    string
	Format string
}

// DecodeInfo contains the results of the decode pass.
type DecodeInfo struct {
	// Skipped is true when only the stream layout was checked.
	Skipped  bool
	Step     int
	Decoded  int
	Reseeks  int
	Duration time.Duration
}

// FramesPerSecond returns the decode rate, or 0 when nothing was timed.
func (d DecodeInfo) FramesPerSecond() float64 {
	if d.Duration <= 0 {
		return 0
	}
	return float64(d.Decoded) / d.Duration.Seconds()
}

// TotalSize returns the summed size of all files.
func (s StreamInfo) TotalSize() int64 {
	var n int64
	for _, f := range s.Files {
		n += f.Size
	}
	return n
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithIndex sets the index path.
func (b *Builder) WithIndex(path string) *Builder {
	b.summary.Index = path
	return b
}

// WithStream sets stream information.
func (b *Builder) WithStream(stream StreamInfo) *Builder {
	b.summary.Stream = stream
	return b
}

// WithPicture sets picture geometry.
func (b *Builder) WithPicture(picture PictureInfo) *Builder {
	b.summary.Picture = picture
	return b
}

// WithDecode sets decode results.
func (b *Builder) WithDecode(decode DecodeInfo) *Builder {
	b.summary.Decode = decode
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
