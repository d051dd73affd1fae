// Package server exposes the display over HTTP: a polling viewer page, still
// snapshots of the canvas, pipeline counters and a WHEP endpoint that streams
// the canvas as H.264 over WebRTC.
package server

import (
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"camview/internal/display"
	"camview/internal/stream"
	"camview/internal/version"
)

// Canvas is the rendered display: still snapshots for HTTP and raw RGBA
// frames for the encoder.
type Canvas interface {
	Snapshot() *image.RGBA
	stream.Source
}

// Config sizes the WHEP encoder.
type Config struct {
	EncoderWidth  int
	EncoderHeight int
	EncoderFPS    int
	FFmpeg        string
}

type stopper interface{ Stop() }

type encoderStarter func(cfg stream.PipelineConfig) (stopper, error)

func startH264(cfg stream.PipelineConfig) (stopper, error) {
	p, err := stream.StartH264Pipeline(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type session struct {
	pc     *webrtc.PeerConnection
	remove func()
}

// Server serves the viewer and WHEP sessions. All sessions share one
// broadcaster; the encoder runs only while at least one session exists.
type Server struct {
	cfg    Config
	canvas Canvas
	stats  func() any
	api    *webrtc.API
	bcast  *stream.SampleBroadcaster
	log    *logrus.Entry

	startEncoder encoderStarter

	mu       sync.Mutex
	sessions map[string]*session
	encoder  stopper
}

// New creates a server. stats is called for every /stats request and must
// return a JSON-encodable value.
func New(cfg Config, canvas Canvas, stats func() any) (*Server, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	if stats == nil {
		stats = func() any { return struct{}{} }
	}
	return &Server{
		cfg:          cfg,
		canvas:       canvas,
		stats:        stats,
		api:          webrtc.NewAPI(webrtc.WithMediaEngine(me)),
		bcast:        stream.NewSampleBroadcaster(),
		log:          logrus.WithField("component", "server"),
		startEncoder: startH264,
		sessions:     map[string]*session{},
	}, nil
}

// RegisterRoutes installs the HTTP handlers on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/whep", s.handleWHEPPost)
	mux.HandleFunc("/whep/", s.handleWHEPResource)
	mux.HandleFunc("/frame.jpg", s.handleFrame("image/jpeg", func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
	}))
	mux.HandleFunc("/frame.png", s.handleFrame("image/png", png.Encode))
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, indexHTML)
	})
}

func (s *Server) handleFrame(contentType string, encode func(io.Writer, image.Image) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w, r)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := s.canvas.Snapshot()
		if snap == nil {
			http.Error(w, display.ErrSlotUnavailable.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		if err := encode(w, snap); err != nil {
			s.log.WithFields(logrus.Fields{
				"function": "Server.handleFrame",
				"error":    err,
			}).Debug("Writing snapshot failed")
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"pipeline": s.stats(),
		"encoder":  stream.GetCounters(),
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, r)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"version":  version.String(),
		"sessions": s.SessionCount(),
		"rendered": s.canvas.Snapshot() != nil,
	})
}

func (s *Server) handleWHEPPost(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		allowCORS(w, r)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	offerSDP, err := io.ReadAll(r.Body)
	if err != nil || len(offerSDP) == 0 {
		http.Error(w, "empty offer", http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	log := s.log.WithFields(logrus.Fields{"function": "Server.handleWHEPPost", "session": id})

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeH264,
		ClockRate:   90000,
		SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
	}, "video", "camview")
	if err != nil {
		_ = pc.Close()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offerSDP)}); err != nil {
		_ = pc.Close()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	<-gatherComplete

	if err := s.addSession(id, pc, track); err != nil {
		_ = pc.Close()
		log.WithField("error", err).Error("Encoder unavailable")
		http.Error(w, fmt.Sprintf("encoder error: %v", err), http.StatusInternalServerError)
		return
	}
	log.Info("WHEP session created")

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.WithFields(logrus.Fields{"session": id, "state": state.String()}).Debug("Session state changed")
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.closeSession(id)
		}
	})

	allowCORS(w, r)
	w.Header().Set("Content-Type", "application/sdp")
	w.Header().Set("Location", "/whep/"+id)
	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, pc.LocalDescription().SDP)
}

// addSession registers the session and its track, starting the encoder for
// the first one.
func (s *Server) addSession(id string, pc *webrtc.PeerConnection, track stream.SampleWriter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder == nil {
		enc, err := s.startEncoder(stream.PipelineConfig{
			Width:  s.cfg.EncoderWidth,
			Height: s.cfg.EncoderHeight,
			FPS:    s.cfg.EncoderFPS,
			Binary: s.cfg.FFmpeg,
			Source: s.canvas,
			Track:  s.bcast,
		})
		if err != nil {
			return err
		}
		s.encoder = enc
	}
	s.sessions[id] = &session{pc: pc, remove: s.bcast.Add(track)}
	return nil
}

func (s *Server) handleWHEPResource(w http.ResponseWriter, r *http.Request) {
	allowCORS(w, r)
	id := strings.TrimPrefix(r.URL.Path, "/whep/")
	switch r.Method {
	case http.MethodPatch, http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if !s.closeSession(id) {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// closeSession tears down the session and stops the encoder when it was the
// last one. It reports whether the session existed.
func (s *Server) closeSession(id string) bool {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	var enc stopper
	if sess != nil && len(s.sessions) == 0 {
		enc, s.encoder = s.encoder, nil
	}
	s.mu.Unlock()
	if sess == nil {
		return false
	}
	sess.remove()
	_ = sess.pc.Close()
	if enc != nil {
		enc.Stop()
	}
	s.log.WithFields(logrus.Fields{"function": "Server.closeSession", "session": id}).Info("WHEP session closed")
	return true
}

// SessionCount returns the number of open WHEP sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every session and stops the encoder.
func (s *Server) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.closeSession(id)
	}
	s.bcast.Close()
}

func allowCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Expose-Headers", "Location")
}
