package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dreamspy/mnemo/internal/constants"
	"github.com/dreamspy/mnemo/internal/models"
	"github.com/dreamspy/mnemo/internal/service"
	"github.com/dreamspy/mnemo/internal/store"
	"github.com/dreamspy/mnemo/internal/syncer"
	"github.com/dreamspy/mnemo/pkg/mnemo"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server is the agent's local control endpoint: it exposes the queue
// badge, lets the user trigger a sync or drop a stuck item, and accepts
// a token update. It binds to localhost only.
type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	cfg     *models.Config
	store   *store.Store
	engine  *syncer.Engine
	badge   *service.Badge
	client  mnemo.Client
	monitor *service.ConnectivityMonitor
	server  *http.Server
}

// SetMonitor attaches the connectivity monitor so /status can report
// the observed online state.
func (s *Server) SetMonitor(m *service.ConnectivityMonitor) {
	s.monitor = m
}

func NewServer(cfg *models.Config, st *store.Store, engine *syncer.Engine, badge *service.Badge, client mnemo.Client, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		cfg:    cfg,
		store:  st,
		engine: engine,
		badge:  badge,
		client: client,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/sync", s.handleSync()).Methods(http.MethodPost)
	s.router.HandleFunc("/queue/{id}", s.handleRemove()).Methods(http.MethodDelete)
	s.router.HandleFunc("/token", s.handleToken()).Methods(http.MethodPost)
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(constants.DefaultServerIdleTimeoutSec) * time.Second,
	}
}

func (s *Server) Start() error {
	s.server = s.httpServer()

	s.logger.WithField("addr", s.server.Addr).Info("Starting control server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusItem struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

type statusResponse struct {
	Pending int          `json:"pending"`
	Online  bool         `json:"online"`
	Items   []statusItem `json:"items"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.store.Load(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to load queue for status")
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to load queue"})
			return
		}

		resp := statusResponse{
			Pending: len(items),
			Online:  s.monitor != nil && s.monitor.Online(),
			Items:   make([]statusItem, 0, len(items)),
		}
		for i := range items {
			item := &items[i]
			resp.Items = append(resp.Items, statusItem{
				ID:        item.ID,
				Kind:      string(item.Kind),
				Label:     item.Label(),
				Status:    string(item.Status),
				Error:     item.Error,
				CreatedAt: item.CreatedAt.Format(time.RFC3339),
			})
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := s.engine.Drain(ctx); err != nil {
				s.logger.WithError(err).Warn("Manual sync failed")
			}
		}()
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
	}
}

func (s *Server) handleRemove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := s.store.Remove(r.Context(), id); err != nil {
			s.logger.WithError(err).Error("Failed to remove queue item")
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to remove item"})
			return
		}
		pending := s.badge.Refresh(r.Context())
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"removed": id, "pending": pending})
	}
}

func (s *Server) handleToken() http.HandlerFunc {
	type tokenRequest struct {
		Token string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "token is required"})
			return
		}
		if err := s.store.SetToken(r.Context(), req.Token); err != nil {
			s.logger.WithError(err).Error("Failed to store token")
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to store token"})
			return
		}
		s.client.SetToken(req.Token)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "token saved"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
