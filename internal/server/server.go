package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/svirmi/sitewatch/internal/broadcast"
	"github.com/svirmi/sitewatch/internal/logger"
	"github.com/svirmi/sitewatch/internal/models"
)

var log zerolog.Logger

func init() {
	log = logger.GetLogger("server")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// MetricsView is the aggregator's read-only query surface.
type MetricsView interface {
	ListSites() []models.SiteInfo
	Snapshot(siteID string) (models.SiteSnapshot, bool)
}

// TelemetryView exposes the latest self-monitoring sample.
type TelemetryView interface {
	Sample() models.TelemetrySample
}

// Server is the read-only surface for presentation collaborators: snapshot
// endpoints plus a live websocket feed of telemetry samples. It never
// mutates aggregator or telemetry state.
type Server struct {
	addr      string
	metrics   MetricsView
	telemetry TelemetryView
	feed      *broadcast.Service
	server    *http.Server
}

func New(addr string, metrics MetricsView, telemetry TelemetryView, feed *broadcast.Service) *Server {
	return &Server{
		addr:      addr,
		metrics:   metrics,
		telemetry: telemetry,
		feed:      feed,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites", s.handleSites)
	mux.HandleFunc("GET /sites/{siteID}/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) Run() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting consumer surface")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Shutting down consumer surface")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.ListSites())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	siteID := r.PathValue("siteID")
	snapshot, ok := s.metrics.Snapshot(siteID)
	if !ok {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "unknown site"})
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.telemetry.Sample())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleWebSocket streams every superseding telemetry sample to the client
// until it disconnects. Slow clients drop samples rather than stall the feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	id, ch := s.feed.Subscribe()
	log.Info().
		Str("subscriber_id", id).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("Feed subscriber connected")

	done := make(chan struct{})
	go func() {
		// Drain the client side; returns when the peer goes away.
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.feed.Unsubscribe(id)
		conn.Close()
		log.Info().Str("subscriber_id", id).Msg("Feed subscriber disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
