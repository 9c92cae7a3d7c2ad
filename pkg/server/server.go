// Package server serves decoded frames over HTTP and streams consecutive
// frames over a websocket.
//
// Single frame requests share one session guarded by a mutex. Every
// websocket connection gets a private session so that a stream keeps the
// linear decode path while other clients seek.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jsaowji/d2vsource/pkg/adapters/imagesink"
	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/adapters/smartdecoder"
	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/ports"
	"github.com/jsaowji/d2vsource/pkg/session"
)

// ErrClosed is returned for requests after Close.
var ErrClosed = errors.New("server: closed")

// Deps are the collaborators of a Server.
type Deps struct {
	FS       ports.FileSystem
	Backends smartdecoder.Factory
	Renderer ports.Renderer
	Logger   ports.Logger
}

// Options configure a Server.
type Options struct {
	// Format and Quality are used when a request names no format.
	Format  ports.ImageFormat
	Quality int
	// MaxStreamFrames caps the frame count of one websocket stream.
	// Zero means no cap.
	MaxStreamFrames int
	Session         session.Options
}

// Server serves the frames of one index.
type Server struct {
	idx  *index.Index
	deps Deps
	opts Options
	log  ports.Logger

	mu      sync.Mutex
	shared  *session.Session
	closed  bool
	streams map[string]*websocket.Conn
}

// New creates a Server. Sessions are opened on demand.
func New(idx *index.Index, deps Deps, opts Options) *Server {
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	return &Server{
		idx:     idx,
		deps:    deps,
		opts:    opts,
		log:     logger.OrNoop(deps.Logger).WithComponent("server"),
		streams: make(map[string]*websocket.Conn),
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	api.HandleFunc("/frames/{frame:[0-9]+}", s.handleFrame).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	return router
}

// openSession creates a session with a fresh backend.
func (s *Server) openSession() (*session.Session, error) {
	backend, err := s.deps.Backends()
	if err != nil {
		return nil, err
	}
	return session.Open(s.idx, session.Deps{
		FS:      s.deps.FS,
		Backend: backend,
		Logger:  s.deps.Logger,
	}, s.opts.Session)
}

// sharedSession returns the session used by single frame requests.
// The caller must hold s.mu.
func (s *Server) sharedSession() (*session.Session, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.shared == nil {
		sess, err := s.openSession()
		if err != nil {
			return nil, err
		}
		s.shared = sess
	}
	return s.shared, nil
}

// InfoResponse is the body of GET /api/v1/info.
type InfoResponse struct {
	Frames     int      `json:"frames"`
	GOPs       int      `json:"gops"`
	Files      []string `json:"files"`
	StreamType string   `json:"stream_type"`
	Codec      string   `json:"codec"`
	IDCT       int      `json:"idct"`
	Backend    string   `json:"backend"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	SAR        string   `json:"sar,omitempty"`
	Format     string   `json:"format,omitempty"`
}

// NewInfoResponse converts session info for JSON output.
func NewInfoResponse(info session.Info) InfoResponse {
	resp := InfoResponse{
		Frames:     info.Frames,
		GOPs:       info.GOPs,
		Files:      info.Files,
		StreamType: info.StreamType.String(),
		Codec:      info.Codec.String(),
		IDCT:       info.IDCT,
		Backend:    info.Backend,
		Width:      info.Width,
		Height:     info.Height,
	}
	if info.SAR.Den != 0 {
		resp.SAR = fmt.Sprintf("%d:%d", info.SAR.Num, info.SAR.Den)
	}
	if info.Format != ports.SinkFormatNone {
		resp.Format = info.Format.String()
	}
	return resp
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess, err := s.sharedSession()
	var info session.Info
	if err == nil {
		info = sess.Info()
	}
	s.mu.Unlock()

	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(NewInfoResponse(info))
}

// imageParams reads the format and quality query parameters.
func (s *Server) imageParams(r *http.Request) (ports.ImageFormat, int, error) {
	format := s.opts.Format
	if v := r.URL.Query().Get("format"); v != "" {
		format = ports.ParseImageFormat(v)
	}
	quality := s.opts.Quality
	if v := r.URL.Query().Get("quality"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 || q > 100 {
			return format, 0, fmt.Errorf("invalid quality %q", v)
		}
		quality = q
	}
	return format, quality, nil
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := strconv.Atoi(mux.Vars(r)["frame"])
	if err != nil {
		http.Error(w, "invalid frame number", http.StatusBadRequest)
		return
	}
	format, quality, err := s.imageParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sink := imagesink.New()
	s.mu.Lock()
	sess, err := s.sharedSession()
	if err == nil {
		err = sess.DecodeFrame(frame, sink)
	}
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}

	f, _ := sink.Last()
	data, err := s.deps.Renderer.EncodeImage(f.Image, format, quality)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Frame-Number", strconv.Itoa(f.Meta.Frame))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// writeError maps decode errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, index.ErrFrameOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}

// Close releases the shared session and disconnects all streams.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for id, conn := range s.streams {
		conn.Close()
		delete(s.streams, id)
	}
	if s.shared != nil {
		err := s.shared.Close()
		s.shared = nil
		return err
	}
	return nil
}
