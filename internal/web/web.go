// Package web serves the operator console API and the display page that
// screenshot capture loads.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"confagenda/internal/config"
	"confagenda/internal/display"
	"confagenda/internal/kiosk"
	appLog "confagenda/internal/log"
	"confagenda/internal/render"
)

// Options wires the server to the running displays.
type Options struct {
	// Displays are the controllers of this process, one per role.
	Displays []*display.Controller
	// Views hold the latest frame of each display for /display.
	Views map[display.Role]*render.Latest
	// Kiosk reports power for /api/kiosk. nil uses a static reader.
	Kiosk kiosk.Reader
	// Now is the cache clock. nil uses time.Now.
	Now func() time.Time
}

// Server provides the operator HTTP API.
type Server struct {
	cfg      *config.Config
	displays []*display.Controller
	views    map[display.Role]*render.Latest
	kiosk    kiosk.Reader
	now      func() time.Time
	mux      *http.ServeMux

	// Power readings do not need sub-second precision; a short-lived
	// cache keeps the fuel gauge off the request path.
	kioskMu    sync.RWMutex
	kioskCache *kioskCache
}

type kioskCache struct {
	power     kiosk.Power
	updatedAt time.Time
}

const kioskCacheTTL = 30 * time.Second

// maxBodyBytes bounds operator request bodies.
const maxBodyBytes = 64 << 10

// NewServer constructs a Server. At least one display is required.
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	if len(opts.Displays) == 0 {
		return nil, errors.New("web: no displays")
	}
	if opts.Kiosk == nil {
		opts.Kiosk = kiosk.NewStaticReader()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		cfg:      cfg,
		displays: opts.Displays,
		views:    opts.Views,
		kiosk:    opts.Kiosk,
		now:      opts.Now,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. An empty
// username or password disables it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="confagenda", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/agenda.ics", s.handleAgendaICS)
	s.mux.HandleFunc("GET /api/sync", s.handleSync)
	s.mux.HandleFunc("GET /api/kiosk", s.handleKiosk)

	s.mux.HandleFunc("POST /api/day", s.handleDay)
	s.mux.HandleFunc("POST /api/restart", s.handleRestart)
	s.mux.HandleFunc("POST /api/mode", s.handleMode)
	s.mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/preview", s.handlePreviewMode)
	s.mux.HandleFunc("POST /api/visibility", s.handleVisibility)
	s.mux.HandleFunc("POST /api/controls", s.handleControls)

	s.mux.HandleFunc("GET /display", s.handleDisplay)
	s.mux.HandleFunc("GET /preview.png", s.handlePreviewPNG)

	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint: "+r.URL.Path)
	})
}

// operator returns the display operator commands go to: the primary when
// this process runs one.
func (s *Server) operator() *display.Controller {
	for _, d := range s.displays {
		if d.Role() == display.RolePrimary {
			return d
		}
	}
	return s.displays[0]
}

// pick returns the display named by ?display=, or the operator display.
func (s *Server) pick(r *http.Request) (*display.Controller, error) {
	name := r.URL.Query().Get("display")
	if name == "" {
		return s.operator(), nil
	}
	for _, d := range s.displays {
		if string(d.Role()) == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no %s display in this process", name)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// decodeBody reads a JSON request body into v. Unknown fields are errors.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
