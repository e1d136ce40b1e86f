package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/itohio/emgkb/pkg/config"
)

const (
	shutdownTimeout = 2 * time.Second
	historyPath     = "/history"
)

// HistoryProvider returns recent filtered values per channel, decimated to
// at most maxPoints each (all values when maxPoints <= 0).
type HistoryProvider interface {
	History(maxPoints int) [][]float64
}

// Server exposes the metrics, the live stream and the rolling history over HTTP.
type Server struct {
	cfg     config.TelemetryConfig
	metrics *Metrics
	hub     *Hub
	history HistoryProvider
}

// NewServer creates a server for the given collectors. history may be nil.
func NewServer(cfg config.TelemetryConfig, metrics *Metrics, hub *Hub, history HistoryProvider) *Server {
	return &Server{cfg: cfg, metrics: metrics, hub: hub, history: history}
}

// Handler returns the HTTP routes served by Run.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	mux.Handle(s.cfg.StreamPath, s.hub)
	if s.history != nil {
		mux.HandleFunc(historyPath, s.serveHistory)
	}
	return mux
}

func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request) {
	points := 0
	if v := r.URL.Query().Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "points must be a non-negative integer", http.StatusBadRequest)
			return
		}
		points = n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"session":  s.hub.Session(),
		"channels": s.history.History(points),
	}); err != nil {
		log.Printf("Telemetry: failed to write history: %v", err)
	}
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("telemetry listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Printf("Telemetry: serving %s and %s on %s", s.cfg.MetricsPath, s.cfg.StreamPath, ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("telemetry server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Hijacked websocket connections are not tracked by Shutdown.
		srv.Close()
	}
	<-errCh
	return nil
}
