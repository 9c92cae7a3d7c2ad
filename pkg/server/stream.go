package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jsaowji/d2vsource/pkg/adapters/imagesink"
	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is a JSON text message sent on a stream. Every frame is
// announced by a "frame" message followed by one binary message holding
// the encoded image.
type StreamMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Frame  int    `json:"frame,omitempty"`
	Start  int    `json:"start,omitempty"`
	Count  int    `json:"count,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ControlMessage is a JSON message a client may send on a stream.
type ControlMessage struct {
	Action string `json:"action"`
}

// streamRange reads start and count. count defaults to the rest of the
// stream.
func (s *Server) streamRange(r *http.Request) (int, int, error) {
	start, count := 0, s.idx.NumFrames()
	q := r.URL.Query()
	if v := q.Get("start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, errors.New("invalid start")
		}
		start = n
	}
	if start >= s.idx.NumFrames() {
		return 0, 0, index.ErrFrameOutOfRange
	}
	count = s.idx.NumFrames() - start
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, 0, errors.New("invalid count")
		}
		count = min(n, count)
	}
	if s.opts.MaxStreamFrames > 0 {
		count = min(count, s.opts.MaxStreamFrames)
	}
	return start, count, nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	start, count, err := s.streamRange(r)
	if err != nil {
		if errors.Is(err, index.ErrFrameOutOfRange) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	format, quality, err := s.imageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	id := uuid.NewString()
	if !s.register(id, ws) {
		ws.WriteJSON(StreamMessage{Type: "error", Error: ErrClosed.Error()})
		return
	}
	defer s.unregister(id)
	s.log.Info("Stream %s started at frame %d, %d frames", id, start, count)

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		for {
			var msg ControlMessage
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Action == "stop" {
				return
			}
		}
	}()

	sent := s.stream(ws, id, start, count, format, quality, stop)
	s.log.Info("Stream %s ended after %d frames", id, sent)
}

// stream decodes count frames from start with a private session and sends
// them until done or stop is closed. It returns the number of frames sent.
func (s *Server) stream(ws *websocket.Conn, id string, start, count int, format ports.ImageFormat, quality int, stop <-chan struct{}) int {
	sess, err := s.openSession()
	if err != nil {
		ws.WriteJSON(StreamMessage{Type: "error", ID: id, Error: err.Error()})
		return 0
	}
	defer sess.Close()

	if err := ws.WriteJSON(StreamMessage{Type: "stream_start", ID: id, Start: start, Count: count}); err != nil {
		return 0
	}

	sent := 0
	sink := imagesink.New()
	for n := start; n < start+count; n++ {
		select {
		case <-stop:
			ws.WriteJSON(StreamMessage{Type: "stream_end", ID: id, Count: sent})
			return sent
		default:
		}

		if err := sess.DecodeFrame(n, sink); err != nil {
			s.log.Warn("Stream %s: %v", id, err)
			ws.WriteJSON(StreamMessage{Type: "error", ID: id, Frame: n, Error: err.Error()})
			return sent
		}
		f, _ := sink.Last()
		data, err := s.deps.Renderer.EncodeImage(f.Image, format, quality)
		if err != nil {
			ws.WriteJSON(StreamMessage{Type: "error", ID: id, Frame: n, Error: err.Error()})
			return sent
		}

		hdr := StreamMessage{Type: "frame", ID: id, Frame: n, Width: f.Meta.Width, Height: f.Meta.Height}
		if err := ws.WriteJSON(hdr); err != nil {
			return sent
		}
		if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return sent
		}
		sent++
	}

	ws.WriteJSON(StreamMessage{Type: "stream_end", ID: id, Count: sent})
	s.log.Debug("Stream %s used %d reseeks", id, sess.Reseeks())
	return sent
}

func (s *Server) register(id string, ws *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.streams[id] = ws
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, id)
}

// Streams returns the number of connected streams.
func (s *Server) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}
