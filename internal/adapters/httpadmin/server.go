package httpadmin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/jose-valero/autovoice-bot/internal/app/service"
	"github.com/jose-valero/autovoice-bot/internal/domain"
)

// Lo implementa internal/infra/cache.Publisher
type SnapshotReader interface {
	GetAutoChannels(ctx context.Context, guildID string) ([]domain.ActiveAutoChannel, error)
}

// Server expone la superficie admin por HTTP: stats, snapshot cacheado y
// limpieza forzada. Va detrás de un secret compartido en header.
type Server struct {
	secret string
	mgr    *service.AutoChannelService
	snaps  SnapshotReader // opcional; nil = sin cache
	mux    *http.ServeMux
}

func New(secret string, mgr *service.AutoChannelService, snaps SnapshotReader) *Server {
	s := &Server{secret: secret, mgr: mgr, snaps: snaps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/autovoice/stats", s.handleStats)
	s.mux.HandleFunc("/autovoice/channels", s.handleChannels)
	s.mux.HandleFunc("/autovoice/cleanup", s.handleCleanup)
}

func (s *Server) authorized(r *http.Request) bool {
	return s.secret != "" && r.Header.Get("X-Admin-Token") == s.secret
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.mgr.Stats())
}

// handleChannels sirve la proyección cacheada, no el estado en memoria:
// es el read-path de los consumidores externos.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if s.snaps == nil {
		http.Error(w, "cache no configurado", http.StatusServiceUnavailable)
		return
	}
	guildID := r.URL.Query().Get("guild")
	if guildID == "" {
		http.Error(w, "falta guild", http.StatusBadRequest)
		return
	}
	channels, err := s.snaps.GetAutoChannels(r.Context(), guildID)
	if err != nil {
		log.Printf("[http] snapshot guild=%s: %v", guildID, err)
		http.Error(w, "cache unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(channels)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	n := s.mgr.ForceCleanup(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{"deleted": n})
}

func (s *Server) Start(addr string) {
	log.Printf("[http] admin escuchando en %s", addr)
	if err := http.ListenAndServe(addr, s.mux); err != nil {
		log.Printf("[http] server: %v", err)
	}
}
