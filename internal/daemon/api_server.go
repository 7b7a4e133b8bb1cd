package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"psnrelay/internal/api"
	"psnrelay/internal/config"
	"psnrelay/internal/logging"
	"psnrelay/internal/relay"
	"psnrelay/internal/scene"
	"psnrelay/internal/session"
	"psnrelay/internal/tracker"
)

const maxRequestBody = 4096

type apiServer struct {
	bind      string
	token     string
	staticDir string
	logger    *slog.Logger
	daemon    *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      strings.TrimSpace(cfg.Server.Bind),
		token:     strings.TrimSpace(cfg.Server.APIToken),
		staticDir: strings.TrimSpace(cfg.Server.StaticDir),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		daemon:    d,
	}
	ws := session.NewHandler(d.hub, d.relay, session.Options{
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		PingInterval:    time.Duration(cfg.Server.PingIntervalMS) * time.Millisecond,
		QueueSize:       cfg.Server.ClientQueue,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
	}, d.loggerFor("session"))

	srv.server = &http.Server{
		Handler:           srv.routes(ws),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(ws http.Handler) http.Handler {
	mux := http.NewServeMux()

	// Browser UI routes.
	mux.Handle("/ws", ws)
	mux.HandleFunc("/mode", s.handleMode)
	mux.HandleFunc("/tracker", s.handleTracker)
	mux.HandleFunc("/background_image", s.handleBackgroundImage)
	mux.HandleFunc("/", s.handleStatic)

	// Control API used by the CLI.
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/trackers", authMiddleware(s.token, s.handleTrackers))
	mux.HandleFunc("/api/mode", authMiddleware(s.token, s.handleMode))
	return mux
}

func (s *apiServer) listen() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.bind, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("http server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *apiServer) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", logging.Error(err))
	}
}

// close releases a listener that was bound but never served.
func (s *apiServer) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleMode(w http.ResponseWriter, r *http.Request) {
	svc := s.daemon.relay
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, api.ModeResponse{Mode: svc.Mode(), Modes: svc.Modes()})
	case http.MethodPost:
		var req relay.ModeRequest
		if err := relay.DecodeStrict(http.MaxBytesReader(w, r.Body, maxRequestBody), &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		preset, err := svc.SetMode(req.Mode)
		if err != nil {
			s.writeError(w, statusFor(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ModeResponse{Mode: preset.Name, Modes: svc.Modes()})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTracker(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.addTracker(w, r)
	case http.MethodDelete:
		s.removeTracker(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTrackers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		svc := s.daemon.relay
		s.writeJSON(w, http.StatusOK, api.TrackerViews(svc.All(), svc.Active()))
	case http.MethodPost:
		s.addTracker(w, r)
	case http.MethodDelete:
		s.removeTracker(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) addTracker(w http.ResponseWriter, r *http.Request) {
	var req relay.TrackerIDRequest
	if err := relay.DecodeStrict(http.MaxBytesReader(w, r.Body, maxRequestBody), &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.daemon.relay.AddTracker(*req.ID)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromTrackerState(st, s.daemon.relay.Active().Bounds))
}

func (s *apiServer) removeTracker(w http.ResponseWriter, r *http.Request) {
	var req relay.TrackerIDRequest
	if err := relay.DecodeStrict(http.MaxBytesReader(w, r.Body, maxRequestBody), &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.relay.RemoveTracker(*req.ID); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.TrackerRemovedResponse{ID: *req.ID, Removed: true})
}

func (s *apiServer) handleBackgroundImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	preset := s.daemon.relay.Active()
	path, ok := s.staticPath(preset.BackgroundImage)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no background image for mode %q", preset.Name))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.staticDir == "" {
		s.writeError(w, http.StatusNotFound, "static ui not configured")
		return
	}
	http.FileServer(http.Dir(s.staticDir)).ServeHTTP(w, r)
}

// staticPath resolves name inside the static directory. Names that would
// escape it are refused.
func (s *apiServer) staticPath(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if s.staticDir == "" || name == "" || !filepath.IsLocal(name) {
		return "", false
	}
	return filepath.Join(s.staticDir, name), true
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

// statusFor maps relay errors to HTTP statuses. Every caller-caused failure is
// a 400 so the browser UI can show the message verbatim.
func statusFor(err error) int {
	switch {
	case errors.Is(err, relay.ErrInvalidUpdate),
		errors.Is(err, tracker.ErrAlreadyExists),
		errors.Is(err, tracker.ErrNotFound),
		errors.Is(err, scene.ErrUnknownMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
