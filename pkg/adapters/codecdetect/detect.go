// Package codecdetect provides utilities for detecting the container layout
// and MPEG video variant of a stream from its first bytes.
package codecdetect

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// ProbeSize is how many bytes are inspected.
const ProbeSize = 1 << 20

const tsPacketSize = 188

// ErrUnknownFormat is returned when the data is neither an MPEG elementary,
// program nor transport stream.
var ErrUnknownFormat = errors.New("codecdetect: unknown format")

// Result describes a detected stream.
type Result struct {
	StreamType ports.StreamType
	// Codec is zero when no sequence header was found within ProbeSize.
	Codec ports.CodecVariant
}

// DetectFromFile detects the stream layout of a file.
func DetectFromFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return DetectFromReader(f)
}

// DetectFromReader detects the stream layout from the first ProbeSize bytes
// of reader. The reader is left wherever reading stopped.
func DetectFromReader(reader io.Reader) (Result, error) {
	data, err := io.ReadAll(io.LimitReader(reader, ProbeSize))
	if err != nil {
		return Result{}, fmt.Errorf("read: %w", err)
	}
	return DetectFromBytes(data)
}

// DetectFromBytes detects the stream layout of data.
func DetectFromBytes(data []byte) (Result, error) {
	var res Result
	switch {
	case isTransport(data):
		res.StreamType = ports.StreamTransport
	default:
		code, ok := firstStartCode(data)
		if !ok {
			return Result{}, ErrUnknownFormat
		}
		switch {
		case code == 0xBA:
			res.StreamType = ports.StreamProgram
		case code == 0xB3 || code == 0xB8 || code == 0x00:
			res.StreamType = ports.StreamElementary
		default:
			return Result{}, fmt.Errorf("%w: first start code %#x", ErrUnknownFormat, code)
		}
	}
	res.Codec = detectCodec(data)
	return res, nil
}

// isTransport reports whether data starts with consecutive transport packets.
func isTransport(data []byte) bool {
	if len(data) < tsPacketSize {
		return false
	}
	for off := 0; off < len(data) && off < 4*tsPacketSize; off += tsPacketSize {
		if data[off] != 0x47 {
			return false
		}
	}
	return true
}

// firstStartCode returns the code of the first 00 00 01 xx prefix.
func firstStartCode(data []byte) (byte, bool) {
	for i := 0; i+3 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			return data[i+3], true
		}
	}
	return 0, false
}

// detectCodec looks for a sequence header and whether a sequence extension
// follows it. Only MPEG-2 streams carry the extension.
func detectCodec(data []byte) ports.CodecVariant {
	seq := false
	for i := 0; i+4 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		switch data[i+3] {
		case 0xB3:
			seq = true
		case 0xB5:
			if seq && data[i+4]>>4 == 1 {
				return ports.CodecMPEG2
			}
		case 0x00:
			if seq {
				return ports.CodecMPEG1
			}
		}
	}
	if seq {
		return ports.CodecMPEG1
	}
	return 0
}
