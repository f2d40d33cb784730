package visualization

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/gasprops/internal/diffusion"
)

// Server serves a live view of a model and advances it on request.
type Server struct {
	model         *diffusion.Model
	dt            float64
	stepsPerFrame int
	opts          Options

	modelMu    sync.Mutex
	httpServer *http.Server
	mu         sync.Mutex
	addr       string
}

// NewServer creates a live view server. Each /api/step request advances m
// by stepsPerFrame steps of dt.
func NewServer(m *diffusion.Model, dt float64, stepsPerFrame int, opts Options) *Server {
	if stepsPerFrame < 1 {
		stepsPerFrame = 1
	}
	return &Server{
		model:         m,
		dt:            dt,
		stepsPerFrame: stepsPerFrame,
		opts:          opts,
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/scene", s.handleScene)
	mux.HandleFunc("/api/step", s.handleStep)
	return mux
}

// ListenAndServe starts the HTTP server on an OS-assigned port and blocks
// until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := s.httpServer
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) snapshot() Scene {
	s.modelMu.Lock()
	defer s.modelMu.Unlock()
	return Snapshot(s.model)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	html, err := RenderHTML(s.snapshot(), s.opts, true)
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	data, err := RenderJSON(s.snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleStep advances the model and returns the new frame as SVG. The
// optional n query parameter overrides the steps per frame.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	n := s.stepsPerFrame
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 {
			http.Error(w, "invalid 'n' query parameter: "+q, http.StatusBadRequest)
			return
		}
		n = v
	}

	s.modelMu.Lock()
	err := s.model.Run(r.Context(), s.dt, n, nil)
	scene := Snapshot(s.model)
	s.modelMu.Unlock()
	if err != nil {
		http.Error(w, "step error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Sim-Time", strconv.FormatFloat(scene.Time, 'f', -1, 64))
	w.Header().Set("X-Sim-Steps", strconv.Itoa(scene.Steps))
	w.Write([]byte(RenderSVG(scene, s.opts)))
}
