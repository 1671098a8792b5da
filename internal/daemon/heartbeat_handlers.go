package daemon

import (
	"net/http"
	"strings"

	"roost/internal/api"
	"roost/internal/coord"
	"roost/internal/heartbeat"
	"roost/internal/logging"
)

func (s *APIServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleHeartbeatRecord(w, r)
	case http.MethodGet:
		s.handleHeartbeatRead(w, r)
	case http.MethodDelete:
		s.handleHeartbeatRemove(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *APIServer) handleHeartbeatRecord(w http.ResponseWriter, r *http.Request) {
	var req api.HeartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeCoordError(w, err)
		return
	}
	view, wasOffline, err := s.daemon.heartbeats.Record(r.Context(), heartbeat.Heartbeat{
		AgentID:       req.AgentID,
		Status:        req.Status,
		SessionHealth: req.SessionHealth,
		ErrorCount:    req.ErrorCount,
		Metadata:      req.Metadata,
	})
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HeartbeatResponse{Success: true, Heartbeat: view, WasOffline: wasOffline})
}

func (s *APIServer) handleHeartbeatRead(w http.ResponseWriter, r *http.Request) {
	if agentID := strings.TrimSpace(r.URL.Query().Get("agentId")); agentID != "" {
		view, ok, err := s.daemon.heartbeats.Get(r.Context(), agentID)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		if !ok {
			s.writeCoordError(w, coord.Wrap(coord.ErrNotFound, "heartbeat", "get", "no heartbeat for "+agentID, nil))
			return
		}
		s.writeJSON(w, http.StatusOK, view)
		return
	}

	views, summary, err := s.daemon.heartbeats.All(r.Context())
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HeartbeatListResponse{Agents: views, Summary: summary})
}

func (s *APIServer) handleHeartbeatRemove(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(r.URL.Query().Get("agentId"))
	if err := s.daemon.heartbeats.Remove(r.Context(), agentID); err != nil {
		s.writeCoordError(w, err)
		return
	}
	if err := s.daemon.notifier.NotifyAgentOffline(r.Context(), agentID); err != nil {
		s.logger.Warn("offline notification failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})
}

func (s *APIServer) handleHeartbeatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	agentID := strings.TrimSpace(r.URL.Query().Get("agentId"))
	events, err := s.daemon.heartbeats.History(r.Context(), agentID)
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HeartbeatHistoryResponse{Events: events})
}
