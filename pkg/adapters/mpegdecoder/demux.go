package mpegdecoder

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jsaowji/d2vsource/pkg/ports"
)

const (
	// chunkSize is the packet size of the elementary demuxer.
	chunkSize = 32 * 1024

	// probeSize is how far a program stream is inspected for its streams.
	probeSize = 256 * 1024

	// probePackets is how many transport packets are read looking for a PMT.
	probePackets = 8192

	tsPacketSize = 188
	tsSyncByte   = 0x47
)

// Start code values of the MPEG-1/2 system layer.
const (
	codePackHeader   = 0xBA
	codeSystemHeader = 0xBB
	codeProgramEnd   = 0xB9
	codePrivate1     = 0xBD
)

func isVideoID(id byte) bool { return id >= 0xE0 && id <= 0xEF }
func isAudioID(id byte) bool { return id >= 0xC0 && id <= 0xDF }

// elementaryDemuxer returns the raw bytes in fixed-size chunks as stream 0.
type elementaryDemuxer struct {
	r   io.Reader
	buf []byte
}

func newElementaryDemuxer(r io.Reader) *elementaryDemuxer {
	return &elementaryDemuxer{r: r, buf: make([]byte, chunkSize)}
}

func (d *elementaryDemuxer) Streams() []ports.StreamInfo {
	return []ports.StreamInfo{{Index: 0, Type: ports.MediaVideo}}
}

func (d *elementaryDemuxer) ReadPacket() (ports.Packet, error) {
	n, err := io.ReadFull(d.r, d.buf)
	if n > 0 {
		return ports.Packet{StreamIndex: 0, Data: d.buf[:n]}, nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return ports.Packet{}, err
}

func (d *elementaryDemuxer) Close() error { return nil }

// programDemuxer splits an MPEG program stream into PES payloads. Stream
// indexes are PES stream ids.
type programDemuxer struct {
	r       *bufio.Reader
	streams []ports.StreamInfo
	payload []byte
}

func newProgramDemuxer(r io.Reader) (*programDemuxer, error) {
	d := &programDemuxer{r: bufio.NewReaderSize(r, probeSize)}
	if err := d.probe(); err != nil {
		return nil, err
	}
	return d, nil
}

// probe scans the start of the stream for a pack header and the PES stream
// ids it carries, without consuming anything.
func (d *programDemuxer) probe() error {
	data, err := d.r.Peek(probeSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return fmt.Errorf("mpegdecoder: probe program stream: %w", err)
	}

	pack := false
	seen := make(map[byte]bool)
	for i := 0; i+3 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		id := data[i+3]
		switch {
		case id == codePackHeader:
			pack = true
		case isVideoID(id), isAudioID(id), id == codePrivate1:
			if !seen[id] {
				seen[id] = true
				d.streams = append(d.streams, ports.StreamInfo{Index: int(id), Type: mediaTypeOfID(id)})
			}
		}
	}
	if !pack {
		return ErrNotProgramStream
	}
	return nil
}

func mediaTypeOfID(id byte) ports.MediaType {
	switch {
	case isVideoID(id):
		return ports.MediaVideo
	case isAudioID(id):
		return ports.MediaAudio
	default:
		return ports.MediaUnknown
	}
}

func (d *programDemuxer) Streams() []ports.StreamInfo {
	return d.streams
}

func (d *programDemuxer) ReadPacket() (ports.Packet, error) {
	for {
		code, err := d.nextStartCode()
		if err != nil {
			return ports.Packet{}, err
		}

		switch {
		case code == codePackHeader:
			if err := d.skipPackHeader(); err != nil {
				return ports.Packet{}, err
			}
		case code == codeProgramEnd:
		case code >= codeSystemHeader:
			var lenBuf [2]byte
			if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
				return ports.Packet{}, eof(err)
			}
			length := int(binary.BigEndian.Uint16(lenBuf[:]))
			if cap(d.payload) < length {
				d.payload = make([]byte, length)
			}
			d.payload = d.payload[:length]
			if _, err := io.ReadFull(d.r, d.payload); err != nil {
				return ports.Packet{}, eof(err)
			}
			if isVideoID(code) || isAudioID(code) || code == codePrivate1 {
				return ports.Packet{StreamIndex: int(code), Data: pesPayload(d.payload)}, nil
			}
		}
	}
}

// nextStartCode consumes bytes up to and including the next 00 00 01 xx
// prefix and returns xx.
func (d *programDemuxer) nextStartCode() (byte, error) {
	window := uint32(0xFFFFFFFF)
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		window = window<<8 | uint32(b)
		if window&0xFFFFFF00 == 0x00000100 {
			return b, nil
		}
	}
}

func (d *programDemuxer) skipPackHeader() error {
	first, err := d.r.Peek(1)
	if err != nil {
		return eof(err)
	}
	if first[0]&0xC0 == 0x40 {
		// MPEG-2: 10 bytes after the start code, then stuffing.
		var hdr [10]byte
		if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
			return eof(err)
		}
		_, err := d.r.Discard(int(hdr[9] & 0x07))
		return eof(err)
	}
	// MPEG-1: 8 bytes after the start code.
	_, err = d.r.Discard(8)
	return eof(err)
}

func (d *programDemuxer) Close() error { return nil }

// pesPayload strips the header following the PES packet length field. Both
// the MPEG-2 and the MPEG-1 header syntax are accepted.
func pesPayload(p []byte) []byte {
	if len(p) >= 3 && p[0]&0xC0 == 0x80 {
		n := 3 + int(p[2])
		if n > len(p) {
			return nil
		}
		return p[n:]
	}

	i := 0
	for i < len(p) && i < 16 && p[i] == 0xFF {
		i++
	}
	if i < len(p) && p[i]&0xC0 == 0x40 {
		i += 2
	}
	if i >= len(p) {
		return nil
	}
	switch p[i] & 0xF0 {
	case 0x20:
		i += 5
	case 0x30:
		i += 10
	default:
		i++
	}
	if i > len(p) {
		return nil
	}
	return p[i:]
}

// transportDemuxer reassembles the PES packets of the first video stream of
// an MPEG transport stream. Stream indexes are PIDs.
type transportDemuxer struct {
	r        *bufio.Reader
	pkt      [tsPacketSize]byte
	replay   [][]byte
	pmtPID   int
	videoPID int
	streams  []ports.StreamInfo
	pes      []byte
	started  bool
	out      []byte
}

func newTransportDemuxer(r io.Reader) (*transportDemuxer, error) {
	d := &transportDemuxer{r: bufio.NewReaderSize(r, 64*1024), pmtPID: -1, videoPID: -1}
	if err := d.probe(); err != nil {
		return nil, err
	}
	return d, nil
}

// probe reads packets until the program map was parsed. The packets read are
// replayed by ReadPacket.
func (d *transportDemuxer) probe() error {
	for i := 0; i < probePackets && d.streams == nil; i++ {
		p, err := d.readRaw()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("mpegdecoder: probe transport stream: %w", err)
		}
		d.replay = append(d.replay, bytes.Clone(p))

		pid, pusi, payload := splitTSPacket(p)
		if !pusi || payload == nil {
			continue
		}
		switch {
		case pid == 0 && d.pmtPID < 0:
			d.pmtPID = parsePAT(payload)
		case pid == d.pmtPID:
			d.streams, d.videoPID = parsePMT(payload)
		}
	}
	if d.streams == nil {
		return ErrNoProgram
	}
	return nil
}

func (d *transportDemuxer) readRaw() ([]byte, error) {
	if len(d.replay) > 0 && d.streams != nil {
		p := d.replay[0]
		d.replay = d.replay[1:]
		return p, nil
	}
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != tsSyncByte {
			continue
		}
		d.pkt[0] = b
		if _, err := io.ReadFull(d.r, d.pkt[1:]); err != nil {
			return nil, eof(err)
		}
		return d.pkt[:], nil
	}
}

func (d *transportDemuxer) Streams() []ports.StreamInfo {
	return d.streams
}

func (d *transportDemuxer) ReadPacket() (ports.Packet, error) {
	for {
		p, err := d.readRaw()
		if err == io.EOF {
			if d.started && len(d.pes) > 0 {
				d.started = false
				return d.emit(), nil
			}
			return ports.Packet{}, io.EOF
		}
		if err != nil {
			return ports.Packet{}, err
		}

		pid, pusi, payload := splitTSPacket(p)
		if pid != d.videoPID || payload == nil {
			continue
		}
		if pusi {
			var pkt ports.Packet
			flush := d.started && len(d.pes) > 0
			if flush {
				pkt = d.emit()
			}
			d.pes = append(d.pes[:0], payload...)
			d.started = true
			if flush {
				return pkt, nil
			}
			continue
		}
		if d.started {
			d.pes = append(d.pes, payload...)
		}
	}
}

// emit copies the payload of the accumulated PES packet out.
func (d *transportDemuxer) emit() ports.Packet {
	var data []byte
	if len(d.pes) >= 6 && d.pes[0] == 0 && d.pes[1] == 0 && d.pes[2] == 1 {
		data = pesPayload(d.pes[6:])
	}
	d.out = append(d.out[:0], data...)
	d.pes = d.pes[:0]
	return ports.Packet{StreamIndex: d.videoPID, Data: d.out}
}

func (d *transportDemuxer) Close() error {
	d.replay = nil
	return nil
}

// splitTSPacket returns the PID, the payload unit start flag and the payload
// of a transport packet. payload is nil when the packet carries none.
func splitTSPacket(p []byte) (pid int, pusi bool, payload []byte) {
	pid = int(p[1]&0x1F)<<8 | int(p[2])
	pusi = p[1]&0x40 != 0
	off := 4
	switch (p[3] >> 4) & 0x03 {
	case 0x01:
	case 0x03:
		off += 1 + int(p[4])
	default:
		return pid, pusi, nil
	}
	if off >= len(p) {
		return pid, pusi, nil
	}
	return pid, pusi, p[off:]
}

// psiSection skips the pointer field and returns the section bounded by its
// section_length, without the CRC.
func psiSection(payload []byte, tableID byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, errors.New("empty PSI payload")
	}
	start := 1 + int(payload[0])
	if start+3 > len(payload) {
		return nil, errors.New("short PSI payload")
	}
	sec := payload[start:]
	if sec[0] != tableID {
		return nil, fmt.Errorf("table id %#x, want %#x", sec[0], tableID)
	}
	end := 3 + (int(sec[1]&0x0F)<<8 | int(sec[2])) - 4
	if end > len(sec) || end < 8 {
		return nil, errors.New("section exceeds packet")
	}
	return sec[:end], nil
}

// parsePAT returns the PMT PID of the first program, or -1.
func parsePAT(payload []byte) int {
	sec, err := psiSection(payload, 0x00)
	if err != nil {
		return -1
	}
	for i := 8; i+4 <= len(sec); i += 4 {
		program := int(sec[i])<<8 | int(sec[i+1])
		if program != 0 {
			return int(sec[i+2]&0x1F)<<8 | int(sec[i+3])
		}
	}
	return -1
}

// parsePMT returns the elementary streams of a program map and the PID of the
// first MPEG video stream, or -1.
func parsePMT(payload []byte) ([]ports.StreamInfo, int) {
	sec, err := psiSection(payload, 0x02)
	if err != nil || len(sec) < 12 {
		return nil, -1
	}
	video := -1
	streams := []ports.StreamInfo{}
	i := 12 + (int(sec[10]&0x0F)<<8 | int(sec[11]))
	for i+5 <= len(sec) {
		streamType := sec[i]
		pid := int(sec[i+1]&0x1F)<<8 | int(sec[i+2])
		infoLen := int(sec[i+3]&0x0F)<<8 | int(sec[i+4])

		typ := ports.MediaUnknown
		switch streamType {
		case 0x01, 0x02:
			typ = ports.MediaVideo
			if video < 0 {
				video = pid
			}
		case 0x03, 0x04, 0x0F, 0x81:
			typ = ports.MediaAudio
		}
		streams = append(streams, ports.StreamInfo{Index: pid, Type: typ})
		i += 5 + infoLen
	}
	return streams, video
}

func eof(err error) error {
	if err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}
