package index

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// document is the on-disk YAML layout written by the indexer. Frames are
// listed per GOP as decode offsets in presentation order:
//
//	stream_type: program
//	mpeg_type: 2
//	idct: 0
//	files: [VTS_01_1.VOB, VTS_01_2.VOB]
//	gops:
//	  - {file: 0, pos: 0, closed: true, frames: [2, 0, 1]}
//	  - {file: 0, pos: 8192, frames: [2, 0, 1, 5, 3, 4]}
type document struct {
	StreamType string        `yaml:"stream_type"`
	MPEGType   int           `yaml:"mpeg_type"`
	IDCT       int           `yaml:"idct"`
	Files      []string      `yaml:"files"`
	GOPs       []gopDocument `yaml:"gops"`
}

type gopDocument struct {
	File   int   `yaml:"file"`
	Pos    int64 `yaml:"pos"`
	Closed bool  `yaml:"closed"`
	Frames []int `yaml:"frames"`
}

// ParseStreamType parses the index spelling of a stream type.
func ParseStreamType(s string) (ports.StreamType, error) {
	switch s {
	case "elementary", "es":
		return ports.StreamElementary, nil
	case "program", "ps":
		return ports.StreamProgram, nil
	case "transport", "ts":
		return ports.StreamTransport, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedStreamType, s)
	}
}

// Parse decodes and validates a YAML index. Relative file paths are resolved
// against baseDir.
func Parse(data []byte, baseDir string) (*Index, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	st, err := ParseStreamType(doc.StreamType)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		StreamType: st,
		MPEGType:   doc.MPEGType,
		IDCT:       doc.IDCT,
		Files:      make([]string, len(doc.Files)),
		GOPs:       make([]GOP, 0, len(doc.GOPs)),
	}

	for i, f := range doc.Files {
		if baseDir != "" && !filepath.IsAbs(f) {
			f = filepath.Join(baseDir, f)
		}
		idx.Files[i] = f
	}

	for i, g := range doc.GOPs {
		idx.GOPs = append(idx.GOPs, GOP{File: g.File, Pos: g.Pos, Closed: g.Closed})
		for _, off := range g.Frames {
			idx.Frames = append(idx.Frames, Frame{GOP: i, Offset: off})
		}
	}

	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// LoadFile reads and parses an index file. Relative media paths are resolved
// against the index file's directory.
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Marshal encodes idx in the YAML layout accepted by Parse.
func Marshal(idx *Index) ([]byte, error) {
	doc := document{
		StreamType: idx.StreamType.String(),
		MPEGType:   idx.MPEGType,
		IDCT:       idx.IDCT,
		Files:      idx.Files,
		GOPs:       make([]gopDocument, len(idx.GOPs)),
	}
	for i, g := range idx.GOPs {
		doc.GOPs[i] = gopDocument{File: g.File, Pos: g.Pos, Closed: g.Closed}
	}
	for _, f := range idx.Frames {
		if f.GOP < 0 || f.GOP >= len(doc.GOPs) {
			return nil, fmt.Errorf("%w: frame references gop %d", ErrCorruptIndex, f.GOP)
		}
		doc.GOPs[f.GOP].Frames = append(doc.GOPs[f.GOP].Frames, f.Offset)
	}
	return yaml.Marshal(&doc)
}
