package mpegdecoder

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

// newSource returns a ports.ByteSource over data.
func newSource(data []byte) ports.ByteSource {
	return bytes.NewReader(data)
}

func mpeg2Pack() []byte {
	return []byte{0x00, 0x00, 0x01, 0xBA, 0x44, 0x00, 0x04, 0x00, 0x04, 0x01, 0x01, 0x89, 0xC3, 0xF8}
}

func mpeg1Pack() []byte {
	return []byte{0x00, 0x00, 0x01, 0xBA, 0x21, 0x00, 0x01, 0x00, 0x01, 0x80, 0x1B, 0x91}
}

// mpeg2PES builds a PES packet with an empty MPEG-2 header.
func mpeg2PES(id byte, payload []byte) []byte {
	body := append([]byte{0x80, 0x00, 0x00}, payload...)
	return append([]byte{0x00, 0x00, 0x01, id, byte(len(body) >> 8), byte(len(body))}, body...)
}

// mpeg1PES builds a PES packet with one stuffing byte and no timestamps.
func mpeg1PES(id byte, payload []byte) []byte {
	body := append([]byte{0xFF, 0x0F}, payload...)
	return append([]byte{0x00, 0x00, 0x01, id, byte(len(body) >> 8), byte(len(body))}, body...)
}

func readAll(t *testing.T, d ports.Demuxer) []ports.Packet {
	t.Helper()
	var out []ports.Packet
	for {
		pkt, err := d.ReadPacket()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadPacket failed: %v", err)
		}
		out = append(out, ports.Packet{StreamIndex: pkt.StreamIndex, Data: bytes.Clone(pkt.Data)})
	}
}

func TestBackend_Properties(t *testing.T) {
	b := New(nil)
	if b.Name() != "mpeg" {
		t.Errorf("Name() = %q", b.Name())
	}
	if b.PipelineDelay() != -1 {
		t.Errorf("PipelineDelay() = %d, want -1", b.PipelineDelay())
	}
}

func TestBackend_RejectsMPEG2(t *testing.T) {
	_, err := New(nil).OpenVideoDecoder(ports.DecoderConfig{Codec: ports.CodecMPEG2})
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestBackend_UnknownContainer(t *testing.T) {
	_, err := New(nil).OpenDemuxer(newSource(nil), ports.ContainerFormat{Name: "avi"})
	if !errors.Is(err, ErrUnsupportedContainer) {
		t.Errorf("expected ErrUnsupportedContainer, got %v", err)
	}
}

func TestElementaryDemuxer_Chunks(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 2*chunkSize+100)
	d, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpegvideo"})
	if err != nil {
		t.Fatalf("OpenDemuxer failed: %v", err)
	}
	defer d.Close()

	streams := d.Streams()
	if len(streams) != 1 || streams[0].Type != ports.MediaVideo {
		t.Fatalf("unexpected streams: %+v", streams)
	}

	pkts := readAll(t, d)
	if len(pkts) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(pkts))
	}
	if len(pkts[2].Data) != 100 {
		t.Errorf("last packet has %d bytes, want 100", len(pkts[2].Data))
	}
}

func TestProgramDemuxer_MPEG2(t *testing.T) {
	var data []byte
	data = append(data, mpeg2Pack()...)
	data = append(data, mpeg2PES(0xE0, []byte("VIDEO"))...)
	data = append(data, mpeg2PES(0xC0, []byte("AUD"))...)
	data = append(data, 0x00, 0x00, 0x01, 0xBE, 0x00, 0x02, 0xFF, 0xFF)
	data = append(data, mpeg2Pack()...)
	data = append(data, mpeg2PES(0xE0, []byte("MORE"))...)
	data = append(data, 0x00, 0x00, 0x01, 0xB9)

	d, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpeg"})
	if err != nil {
		t.Fatalf("OpenDemuxer failed: %v", err)
	}
	defer d.Close()

	want := []ports.StreamInfo{{Index: 0xE0, Type: ports.MediaVideo}, {Index: 0xC0, Type: ports.MediaAudio}}
	if got := d.Streams(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Streams() = %+v, want %+v", got, want)
	}

	pkts := readAll(t, d)
	if len(pkts) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(pkts))
	}
	expect := []struct {
		stream int
		data   string
	}{{0xE0, "VIDEO"}, {0xC0, "AUD"}, {0xE0, "MORE"}}
	for i, e := range expect {
		if pkts[i].StreamIndex != e.stream || string(pkts[i].Data) != e.data {
			t.Errorf("packet %d = %#x %q, want %#x %q", i, pkts[i].StreamIndex, pkts[i].Data, e.stream, e.data)
		}
	}
}

func TestProgramDemuxer_MPEG1(t *testing.T) {
	var data []byte
	data = append(data, mpeg1Pack()...)
	data = append(data, mpeg1PES(0xE0, []byte("ONE"))...)

	d, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpeg"})
	if err != nil {
		t.Fatalf("OpenDemuxer failed: %v", err)
	}
	pkts := readAll(t, d)
	if len(pkts) != 1 || string(pkts[0].Data) != "ONE" {
		t.Errorf("unexpected packets: %+v", pkts)
	}
}

func TestProgramDemuxer_TruncatedPacket(t *testing.T) {
	data := append(mpeg2Pack(), mpeg2PES(0xE0, []byte("VIDEO"))...)
	data = data[:len(data)-2]

	d, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpeg"})
	if err != nil {
		t.Fatalf("OpenDemuxer failed: %v", err)
	}
	if _, err := d.ReadPacket(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestProgramDemuxer_NoPackHeader(t *testing.T) {
	data := []byte{0x00, 0x00, 0x01, 0xB3, 0x16, 0x00, 0xF0}
	_, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpeg"})
	if !errors.Is(err, ErrNotProgramStream) {
		t.Errorf("expected ErrNotProgramStream, got %v", err)
	}
}

func TestPESPayload(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"mpeg2 with header data", []byte{0x80, 0x80, 0x05, 1, 2, 3, 4, 5, 'x'}, "x"},
		{"mpeg2 header past end", []byte{0x80, 0x80, 0x09, 1}, ""},
		{"mpeg1 pts", []byte{0x21, 0, 1, 0, 1, 'y'}, "y"},
		{"mpeg1 pts dts", []byte{0x31, 0, 1, 0, 1, 0x11, 0, 1, 0, 1, 'z'}, "z"},
		{"mpeg1 std buffer", []byte{0x40, 0x00, 0x0F, 'w'}, "w"},
		{"mpeg1 empty", []byte{0xFF, 0xFF}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(pesPayload(tt.in)); got != tt.want {
				t.Errorf("pesPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

// tsPacket builds one transport packet, padding payload with adaptation
// field stuffing.
func tsPacket(pid int, pusi bool, payload []byte) []byte {
	p := make([]byte, tsPacketSize)
	p[0] = tsSyncByte
	p[1] = byte(pid>>8) & 0x1F
	if pusi {
		p[1] |= 0x40
	}
	p[2] = byte(pid)
	stuffing := 183 - len(payload)
	p[3] = 0x30
	p[4] = byte(stuffing)
	if stuffing > 0 {
		p[5] = 0x00
		for i := 6; i < 5+stuffing; i++ {
			p[i] = 0xFF
		}
	}
	copy(p[5+stuffing:], payload)
	return p
}

func patPayload(pmtPID int) []byte {
	return []byte{
		0x00,
		0x00, 0xB0, 13, 0x00, 0x01, 0xC1, 0x00, 0x00,
		0x00, 0x01, 0xE0 | byte(pmtPID>>8), byte(pmtPID),
		0xDE, 0xAD, 0xBE, 0xEF,
	}
}

func pmtPayload() []byte {
	return []byte{
		0x00,
		0x02, 0xB0, 23, 0x00, 0x01, 0xC1, 0x00, 0x00,
		0xE1, 0x01, 0xF0, 0x00,
		0x02, 0xE1, 0x01, 0xF0, 0x00,
		0x03, 0xE1, 0x02, 0xF0, 0x00,
		0xDE, 0xAD, 0xBE, 0xEF,
	}
}

func videoPESStart(payload string) []byte {
	return append([]byte{0x00, 0x00, 0x01, 0xE0, 0x00, 0x00, 0x80, 0x00, 0x00}, payload...)
}

func TestTransportDemuxer_ReassemblesVideo(t *testing.T) {
	var data []byte
	data = append(data, tsPacket(0, true, patPayload(0x100))...)
	data = append(data, tsPacket(0x101, true, videoPESStart("ABC"))...)
	data = append(data, tsPacket(0x100, true, pmtPayload())...)
	data = append(data, tsPacket(0x102, true, []byte{0x00, 0x00, 0x01, 0xC0, 0x00, 0x00, 0x80, 0x00, 0x00, 'a'})...)
	data = append(data, tsPacket(0x101, false, []byte("DEF"))...)
	data = append(data, tsPacket(0x101, true, videoPESStart("GHI"))...)

	d, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpegts"})
	if err != nil {
		t.Fatalf("OpenDemuxer failed: %v", err)
	}
	defer d.Close()

	streams := d.Streams()
	if len(streams) != 2 {
		t.Fatalf("expected 2 streams, got %+v", streams)
	}
	if streams[0] != (ports.StreamInfo{Index: 0x101, Type: ports.MediaVideo}) {
		t.Errorf("unexpected video stream %+v", streams[0])
	}
	if streams[1].Type != ports.MediaAudio {
		t.Errorf("unexpected audio stream %+v", streams[1])
	}

	pkts := readAll(t, d)
	if len(pkts) != 2 {
		t.Fatalf("expected 2 packets, got %d", len(pkts))
	}
	if string(pkts[0].Data) != "ABCDEF" || string(pkts[1].Data) != "GHI" {
		t.Errorf("unexpected payloads %q %q", pkts[0].Data, pkts[1].Data)
	}
	if pkts[0].StreamIndex != 0x101 {
		t.Errorf("StreamIndex = %#x, want 0x101", pkts[0].StreamIndex)
	}
}

func TestTransportDemuxer_DropsLeadingContinuation(t *testing.T) {
	var data []byte
	data = append(data, tsPacket(0, true, patPayload(0x100))...)
	data = append(data, tsPacket(0x100, true, pmtPayload())...)
	data = append(data, tsPacket(0x101, false, []byte("tail"))...)
	data = append(data, tsPacket(0x101, true, videoPESStart("head"))...)

	d, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpegts"})
	if err != nil {
		t.Fatalf("OpenDemuxer failed: %v", err)
	}
	pkts := readAll(t, d)
	if len(pkts) != 1 || string(pkts[0].Data) != "head" {
		t.Errorf("unexpected packets: %+v", pkts)
	}
}

func TestTransportDemuxer_NoProgram(t *testing.T) {
	data := tsPacket(0x101, true, videoPESStart("x"))
	_, err := New(nil).OpenDemuxer(newSource(data), ports.ContainerFormat{Name: "mpegts"})
	if !errors.Is(err, ErrNoProgram) {
		t.Errorf("expected ErrNoProgram, got %v", err)
	}
}

func TestVideoDecoder_GarbageAndDrain(t *testing.T) {
	dec, err := New(nil).OpenVideoDecoder(ports.DecoderConfig{Codec: ports.CodecMPEG1, IDCT: 3})
	if err != nil {
		t.Fatalf("OpenVideoDecoder failed: %v", err)
	}
	defer dec.Close()

	n, pic, err := dec.Decode([]byte{1, 2, 3, 4})
	if err != nil || n != 4 || pic != nil {
		t.Fatalf("Decode() = %d, %v, %v", n, pic, err)
	}

	n, pic, err = dec.Decode(nil)
	if err != nil || n != 0 || pic != nil {
		t.Fatalf("drain Decode() = %d, %v, %v", n, pic, err)
	}

	if _, _, err := dec.Decode([]byte{5}); err == nil {
		t.Error("expected error for data after end of stream")
	}

	dec.Flush()
	if n, _, err := dec.Decode([]byte{5}); err != nil || n != 1 {
		t.Errorf("Decode after Flush = %d, %v", n, err)
	}
}
