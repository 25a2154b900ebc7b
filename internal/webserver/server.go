// Package webserver exposes the bot's health, metrics and event feed over
// HTTP.
package webserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"github.com/tsgs/tsgsbot/internal/status"
	"github.com/tsgs/tsgsbot/internal/version"
	"go.uber.org/zap"
)

// PendingCounter reports scheduled work.
type PendingCounter interface {
	Pending() int
}

// SessionCounter reports live sessions of one store.
type SessionCounter interface {
	Name() string
	Len() int
}

type Options struct {
	Port      int
	StartedAt time.Time
	Scheduler PendingCounter
	Sessions  []SessionCounter
	// Feed serves /ws; nil leaves the route unregistered.
	Feed http.Handler
}

type Server struct {
	opts       Options
	httpServer *http.Server
	now        func() time.Time
}

func New(opts Options) *Server {
	return &Server{opts: opts, now: time.Now}
}

// corsMiddleware adds CORS headers to HTTP handlers
func corsMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", corsMiddleware(s.handleStatus))
	mux.Handle("/metrics", metrics.Handler())
	if s.opts.Feed != nil {
		mux.Handle("/ws", s.opts.Feed)
	}
	return mux
}

// Start listens on the configured port. It returns an error when the port
// cannot be bound.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	logger.Info("Starting web server", zap.String("address", addr))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	// Wait briefly to catch immediate binding errors
	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Failed to start web server", zap.Error(err))
			return fmt.Errorf("failed to start web server on port %d: %w", s.opts.Port, err)
		}
	case <-time.After(100 * time.Millisecond):
	}
	return nil
}

// Shutdown gracefully shuts down the web server
func (s *Server) Shutdown() {
	if s.httpServer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown web server gracefully", zap.Error(err))
	} else {
		logger.Info("Web server shutdown complete")
	}
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version          string         `json:"version"`
	Uptime           string         `json:"uptime"`
	GatewayConnected bool           `json:"gatewayConnected"`
	GatewaySince     *time.Time     `json:"gatewaySince,omitempty"`
	Pending          int            `json:"pending"`
	Sessions         map[string]int `json:"sessions"`
	Timestamp        string         `json:"timestamp"`
}

// handleStatus returns the current bot status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	now := s.now()
	connected, since := status.IsGatewayConnected()
	resp := StatusResponse{
		Version:          version.String(),
		Uptime:           now.Sub(s.opts.StartedAt).Truncate(time.Second).String(),
		GatewayConnected: connected,
		Sessions:         make(map[string]int, len(s.opts.Sessions)),
		Timestamp:        now.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if !since.IsZero() {
		resp.GatewaySince = &since
	}
	if s.opts.Scheduler != nil {
		resp.Pending = s.opts.Scheduler.Pending()
	}
	for _, sc := range s.opts.Sessions {
		resp.Sessions[sc.Name()] = sc.Len()
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("Failed to write status response", zap.Error(err))
	}
}
