package mocks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// RecordSize is the size of one packet record in the mock container.
//
// A record is [stream index][picture number, big endian uint16][pad]. The
// mock demuxer turns each record into a packet whose data is the last three
// bytes; the mock decoder turns every three bytes of data into one picture.
const RecordSize = 4

// Record encodes one packet record of the mock container.
func Record(stream int, picture int) []byte {
	b := make([]byte, RecordSize)
	b[0] = byte(stream)
	binary.BigEndian.PutUint16(b[1:3], uint16(picture))
	return b
}

// Records encodes consecutive video records for pictures first..last.
func Records(first, last int) []byte {
	var out []byte
	for i := first; i <= last; i++ {
		out = append(out, Record(0, i)...)
	}
	return out
}

// Backend is a scripted implementation of ports.Backend.
type Backend struct {
	mu sync.Mutex

	// Delay is the number of pictures the decoder holds back.
	Delay int
	// MaxConsume limits how many bytes one Decode call consumes; 0 means all.
	MaxConsume int
	// Format, Width and Height describe the emitted pictures.
	Format ports.PixelFormat
	Width  int
	Height int
	SAR    ports.Rational
	// StreamList overrides the streams reported by demuxers.
	StreamList []ports.StreamInfo

	OpenDemuxerErr error
	OpenDecoderErr error
	ReadErr        error

	// Configs records every decoder configuration.
	Configs []ports.DecoderConfig
	// Formats records the container format of every opened demuxer.
	Formats []ports.ContainerFormat
	// Events records close and flush calls in order.
	Events []string
	// Decoded records the picture numbers of every completed unit.
	Decoded []int
	// Emitted records the picture numbers of every returned picture.
	Emitted []int

	DemuxersOpened int
	Flushes        int
}

// NewBackend creates a mock backend emitting 4x2 yuv420p pictures with a
// one-picture delay.
func NewBackend() *Backend {
	return &Backend{
		Delay:  1,
		Format: ports.PixFmtYUV420P,
		Width:  4,
		Height: 2,
		SAR:    ports.Rational{Num: 1, Den: 1},
	}
}

func (b *Backend) Name() string { return "mock" }

func (b *Backend) PipelineDelay() int { return b.Delay }

// Event appends e to Events.
func (b *Backend) Event(e string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, e)
}

func (b *Backend) OpenDemuxer(src ports.ByteSource, format ports.ContainerFormat) (ports.Demuxer, error) {
	b.mu.Lock()
	b.Formats = append(b.Formats, format)
	b.mu.Unlock()
	if b.OpenDemuxerErr != nil {
		return nil, b.OpenDemuxerErr
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.DemuxersOpened++
	b.mu.Unlock()
	return &Demuxer{backend: b, src: src}, nil
}

func (b *Backend) OpenVideoDecoder(cfg ports.DecoderConfig) (ports.VideoDecoder, error) {
	b.mu.Lock()
	b.Configs = append(b.Configs, cfg)
	b.mu.Unlock()
	if b.OpenDecoderErr != nil {
		return nil, b.OpenDecoderErr
	}
	return &VideoDecoder{backend: b}, nil
}

var _ ports.Backend = (*Backend)(nil)

// Demuxer reads mock records from a ByteSource.
type Demuxer struct {
	backend *Backend
	src     ports.ByteSource
	buf     [RecordSize]byte
	closed  bool
}

func (d *Demuxer) Streams() []ports.StreamInfo {
	if d.backend.StreamList != nil {
		return d.backend.StreamList
	}
	return []ports.StreamInfo{
		{Index: 0, Type: ports.MediaVideo},
		{Index: 1, Type: ports.MediaAudio},
	}
}

func (d *Demuxer) ReadPacket() (ports.Packet, error) {
	if d.closed {
		return ports.Packet{}, errors.New("mock demuxer closed")
	}
	if d.backend.ReadErr != nil {
		return ports.Packet{}, d.backend.ReadErr
	}
	if _, err := io.ReadFull(d.src, d.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ports.Packet{}, io.EOF
		}
		return ports.Packet{}, err
	}
	data := make([]byte, RecordSize-1)
	copy(data, d.buf[1:])
	return ports.Packet{StreamIndex: int(d.buf[0]), Data: data}, nil
}

func (d *Demuxer) Close() error {
	if d.closed {
		return errors.New("mock demuxer closed twice")
	}
	d.closed = true
	d.backend.Event("demuxer.close")
	return nil
}

// VideoDecoder turns every three bytes of input into one picture and
// emits pictures Delay units after they were fed.
type VideoDecoder struct {
	backend *Backend
	partial []byte
	queue   []int
	closed  bool
}

func (v *VideoDecoder) Decode(data []byte) (int, *ports.Picture, error) {
	if v.closed {
		return 0, nil, errors.New("mock decoder closed")
	}

	if data == nil {
		if len(v.queue) == 0 {
			return 0, nil, nil
		}
		id := v.queue[0]
		v.queue = v.queue[1:]
		return 0, v.picture(id), nil
	}

	n := len(data)
	if v.backend.MaxConsume > 0 && n > v.backend.MaxConsume {
		n = v.backend.MaxConsume
	}
	need := RecordSize - 1 - len(v.partial)
	if n > need {
		n = need
	}
	v.partial = append(v.partial, data[:n]...)
	if len(v.partial) < RecordSize-1 {
		return n, nil, nil
	}

	id := int(binary.BigEndian.Uint16(v.partial[0:2]))
	v.partial = v.partial[:0]
	v.backend.mu.Lock()
	v.backend.Decoded = append(v.backend.Decoded, id)
	v.backend.mu.Unlock()

	v.queue = append(v.queue, id)
	if len(v.queue) <= v.backend.Delay {
		return n, nil, nil
	}
	out := v.queue[0]
	v.queue = v.queue[1:]
	return n, v.picture(out), nil
}

// picture builds a picture whose visible samples all equal the low byte of
// id. Luma rows are padded with 0xff to twice the width.
func (v *VideoDecoder) picture(id int) *ports.Picture {
	b := v.backend
	b.mu.Lock()
	b.Emitted = append(b.Emitted, id)
	b.mu.Unlock()

	pic := &ports.Picture{
		Format: b.Format,
		Width:  b.Width,
		Height: b.Height,
		SAR:    b.SAR,
	}
	cw, ch := (b.Width+1)/2, (b.Height+1)/2
	sizes := [3][2]int{{b.Width * 2, b.Height}, {cw, ch}, {cw, ch}}
	for p, sz := range sizes {
		plane := make([]byte, sz[0]*sz[1])
		for i := range plane {
			if p == 0 && i%sz[0] >= b.Width {
				plane[i] = 0xff
			} else {
				plane[i] = byte(id)
			}
		}
		pic.Planes[p] = plane
		pic.Strides[p] = sz[0]
	}
	return pic
}

func (v *VideoDecoder) Flush() {
	v.partial = v.partial[:0]
	v.queue = v.queue[:0]
	v.backend.mu.Lock()
	v.backend.Flushes++
	v.backend.mu.Unlock()
	v.backend.Event("decoder.flush")
}

func (v *VideoDecoder) Close() error {
	if v.closed {
		return fmt.Errorf("mock decoder closed twice")
	}
	v.closed = true
	v.backend.Event("decoder.close")
	return nil
}

var _ ports.Demuxer = (*Demuxer)(nil)
var _ ports.VideoDecoder = (*VideoDecoder)(nil)
