package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"roost/internal/api"
	"roost/internal/claims"
	"roost/internal/config"
	"roost/internal/coord"
	"roost/internal/locks"
	"roost/internal/logging"
	"roost/internal/zones"
)

// APIServer exposes the coordination REST surface over HTTP.
type APIServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

// NewAPIServer builds the HTTP server for a daemon. Returns nil when no
// bind address is configured.
func NewAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *APIServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &APIServer{
		bind:   bind,
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/claims", authMiddleware(token, srv.handleClaims))
	mux.HandleFunc("/api/locks", authMiddleware(token, srv.handleLocks))
	mux.HandleFunc("/api/zones", authMiddleware(token, srv.handleZones))
	mux.HandleFunc("/api/heartbeat", authMiddleware(token, srv.handleHeartbeat))
	mux.HandleFunc("/api/heartbeat/history", authMiddleware(token, srv.handleHeartbeatHistory))
	mux.HandleFunc("/api/cloud-agent", authMiddleware(token, srv.handleCloudAgentActions))
	mux.HandleFunc("/api/cloud-agents", authMiddleware(token, srv.handleCloudAgents))
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start begins serving and ties shutdown to ctx.
func (s *APIServer) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down immediately.
func (s *APIServer) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound address, useful when the bind port is 0.
func (s *APIServer) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	_, summary, err := s.daemon.heartbeats.All(r.Context())
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Degraded:     status.Degraded,
		Fleet:        summary,
	})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeCoordError maps a coordination error to its HTTP status and, for
// ownership conflicts, names the current holder in the body.
func (s *APIServer) writeCoordError(w http.ResponseWriter, err error) {
	status := coord.HTTPStatus(err)
	body := api.ErrorResponse{Error: err.Error()}

	var claimConflict *claims.ConflictError
	var lockConflict *locks.ConflictError
	var zoneConflict *zones.ConflictError
	switch {
	case errors.As(err, &claimConflict):
		body.ClaimedBy = claimConflict.Existing.By
		body.Since = claimConflict.Existing.Since
		body.Message = fmt.Sprintf("already claimed by %s", claimConflict.Existing.By)
	case errors.As(err, &lockConflict):
		body.LockedBy = lockConflict.Existing.LockedBy
		body.Message = fmt.Sprintf("locked by %s", lockConflict.Existing.LockedBy)
	case errors.As(err, &zoneConflict):
		body.Owner = zoneConflict.Existing.Owner
		body.Message = fmt.Sprintf("zone owned by %s", zoneConflict.Existing.Owner)
	}

	if status >= 500 {
		s.logger.Error("request failed", logging.Error(err))
	}
	s.writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return coord.Validationf("invalid request body: %v", err)
	}
	return nil
}
