// Package ffmpegdecoder decodes MPEG-1/2 video with an external ffmpeg process.
//
// The repositioned byte stream is piped to ffmpeg's stdin and raw pictures
// are read back from its stdout as YUV4MPEG2. One raw picture is one packet;
// the video decoder only slices it into planes.
package ffmpegdecoder

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

// demuxerNames maps container names to ffmpeg input formats.
var demuxerNames = map[string]string{
	"mpegvideo": "mpegvideo",
	"mpeg":      "mpeg",
	"mpegts":    "mpegts",
}

// Backend implements ports.Backend with ffmpeg. A Backend serves one session:
// the decoder configuration is kept for the demuxers opened afterwards.
type Backend struct {
	ffmpegPath string
	log        ports.Logger

	mu     sync.Mutex
	cfg    *ports.DecoderConfig
	active *demuxer
}

// New locates ffmpeg and creates a Backend.
func New(log ports.Logger) (*Backend, error) {
	path, err := FindFFmpeg()
	if err != nil {
		return nil, err
	}
	return &Backend{
		ffmpegPath: path,
		log:        logger.OrNoop(log).WithComponent("ffmpegdecoder"),
	}, nil
}

// Name returns "ffmpeg".
func (b *Backend) Name() string {
	return "ffmpeg"
}

// PipelineDelay matches libavcodec's MPEG-1/2 decoder.
func (b *Backend) PipelineDelay() int {
	return 1
}

// OpenVideoDecoder records cfg for later demuxers.
func (b *Backend) OpenVideoDecoder(cfg ports.DecoderConfig) (ports.VideoDecoder, error) {
	if cfg.Codec != ports.CodecMPEG1 && cfg.Codec != ports.CodecMPEG2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCodec, cfg.Codec)
	}
	if _, ok := idctNames[cfg.IDCT]; !ok {
		b.log.Warn("Unknown IDCT algorithm %d, using auto", cfg.IDCT)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c := cfg
	b.cfg = &c
	return &videoDecoder{backend: b}, nil
}

// args builds the ffmpeg command line for one demuxer.
func (b *Backend) args(cfg ports.DecoderConfig, input string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-idct", idctName(cfg.IDCT),
		"-c:v", cfg.Codec.String(),
		"-f", input,
		"-i", "pipe:0",
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-strict", "-1",
		"-f", "yuv4mpegpipe",
		"pipe:1",
	}
}

// OpenDemuxer starts ffmpeg reading src and waits for the stream header.
func (b *Backend) OpenDemuxer(src ports.ByteSource, format ports.ContainerFormat) (ports.Demuxer, error) {
	input, ok := demuxerNames[format.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, format.Name)
	}

	b.mu.Lock()
	cfg := b.cfg
	b.mu.Unlock()
	if cfg == nil {
		return nil, ErrNotConfigured
	}

	args := b.args(*cfg, input)
	b.log.Debug("Starting %s %s", b.ffmpegPath, strings.Join(args, " "))

	d := &demuxer{backend: b, done: make(chan struct{})}
	d.cmd = exec.Command(b.ffmpegPath, args...)
	d.cmd.Stderr = &d.stderr

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go d.pump(stdin, src)
	d.out = bufio.NewReaderSize(stdout, 1<<20)

	line, err := d.out.ReadString('\n')
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("%w: %v: %s", ErrBadHeader, err, strings.TrimSpace(d.stderr.String()))
	}
	d.header, err = parseHeader(strings.TrimSuffix(line, "\n"))
	if err != nil {
		d.Close()
		return nil, err
	}
	d.buf = make([]byte, d.header.frameSize())

	b.mu.Lock()
	b.active = d
	b.mu.Unlock()

	b.log.Debug("Stream is %dx%d %s", d.header.Width, d.header.Height, d.header.Format)
	return d, nil
}

func (b *Backend) header() (streamHeader, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil {
		return streamHeader{}, false
	}
	return b.active.header, true
}

// demuxer reads raw pictures from one ffmpeg process.
type demuxer struct {
	backend *Backend
	cmd     *exec.Cmd
	stderr  bytes.Buffer
	out     *bufio.Reader
	header  streamHeader
	buf     []byte
	done    chan struct{}
	closed  bool
}

// pump copies src into ffmpeg until src ends or ffmpeg goes away.
func (d *demuxer) pump(stdin io.WriteCloser, src io.Reader) {
	defer close(d.done)
	defer stdin.Close()
	if _, err := io.Copy(stdin, src); err != nil {
		d.backend.log.Debug("Input pipe closed: %v", err)
	}
}

func (d *demuxer) Streams() []ports.StreamInfo {
	return []ports.StreamInfo{{Index: 0, Type: ports.MediaVideo}}
}

func (d *demuxer) ReadPacket() (ports.Packet, error) {
	line, err := d.out.ReadString('\n')
	if err == io.EOF && line == "" {
		return ports.Packet{}, io.EOF
	}
	if err != nil {
		return ports.Packet{}, fmt.Errorf("read frame header: %w", err)
	}
	if !strings.HasPrefix(line, y4mFrame) {
		return ports.Packet{}, fmt.Errorf("%w: unexpected %q", ErrBadHeader, strings.TrimSpace(line))
	}
	if _, err := io.ReadFull(d.out, d.buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ports.Packet{}, io.EOF
		}
		return ports.Packet{}, err
	}
	return ports.Packet{StreamIndex: 0, Data: d.buf}, nil
}

// Close stops ffmpeg and waits until the input pump no longer reads the
// source.
func (d *demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	<-d.done
	d.cmd.Wait()

	d.backend.mu.Lock()
	if d.backend.active == d {
		d.backend.active = nil
	}
	d.backend.mu.Unlock()
	return nil
}

// videoDecoder slices raw pictures using the geometry of the active demuxer.
type videoDecoder struct {
	backend *Backend
}

func (v *videoDecoder) Decode(data []byte) (int, *ports.Picture, error) {
	if data == nil {
		return 0, nil, nil
	}
	h, ok := v.backend.header()
	if !ok {
		return 0, nil, ErrNotConfigured
	}
	pic, err := h.picture(data)
	if err != nil {
		return 0, nil, err
	}
	return len(data), pic, nil
}

// Flush is a no-op: every demuxer runs a fresh ffmpeg process.
func (v *videoDecoder) Flush() {}

func (v *videoDecoder) Close() error {
	v.backend.mu.Lock()
	defer v.backend.mu.Unlock()
	v.backend.cfg = nil
	return nil
}

// Ensure Backend implements ports.Backend
var _ ports.Backend = (*Backend)(nil)
