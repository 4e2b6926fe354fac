// Package api exposes the inbound message actions over HTTP so local
// collaborators (popup, options page, scripts) can drive the curator.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tabcurator/tabcurator/internal/channel"
	"github.com/tabcurator/tabcurator/internal/concurrency"
	"github.com/tabcurator/tabcurator/internal/config"
	curatorErrors "github.com/tabcurator/tabcurator/internal/errors"
)

type Config struct {
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func ConfigFrom(cfg config.ServerConfig) (Config, error) {
	requestTimeout, err := config.DurationOrDefault(cfg.RequestTimeout, config.DefaultServerRequestTimeout)
	if err != nil {
		return Config{}, curatorErrors.Wrap(err, "parse request timeout")
	}
	shutdown, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return Config{}, curatorErrors.Wrap(err, "parse shutdown timeout")
	}
	port := cfg.Port
	if port <= 0 {
		port = config.DefaultServerPort
	}
	return Config{Port: port, RequestTimeout: requestTimeout, ShutdownTimeout: shutdown}, nil
}

type Server struct {
	router *channel.Router
	cfg    Config

	mu      sync.Mutex
	started bool
	httpSrv *http.Server
	wg      sync.WaitGroup
}

func NewServer(router *channel.Router, cfg Config) *Server {
	return &Server{router: router, cfg: cfg}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/api/v1/healthz", s.handleHealthz)
	r.Post("/api/v1/messages", s.handleMessage)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.cfg.Port),
		Handler: r,
	}

	s.wg.Add(1)
	concurrency.SafeGo(func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server terminated", "error", err)
		}
	}, nil)

	slog.Info("HTTP server started", "addr", s.httpSrv.Addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	srv := s.httpSrv
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return curatorErrors.Wrap(err, "shutdown http server")
	}
	s.wg.Wait()
	slog.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMessage accepts one inbound message and returns the routed response.
// Routing failures come back as {error} with status 200: the transport
// succeeded, the action did not.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg channel.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, channel.Response{Error: "malformed message body"})
		return
	}
	if msg.Action == "" {
		writeJSON(w, http.StatusBadRequest, channel.Response{Error: "message action is required"})
		return
	}

	resp := s.router.Dispatch(r.Context(), msg)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
