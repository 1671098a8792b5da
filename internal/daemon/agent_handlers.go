package daemon

import (
	"net/http"
	"strings"

	"roost/internal/api"
	"roost/internal/coord"
)

// handleCloudAgentActions serves the action-style PATCH endpoint used by
// agents themselves: heartbeats, shadow registration, activation, and
// on-demand stall checks.
func (s *APIServer) handleCloudAgentActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	switch action := strings.TrimSpace(query.Get("action")); action {
	case "heartbeat":
		primaryID := strings.TrimSpace(query.Get("primaryAgentId"))
		if err := s.daemon.shadows.RecordPrimaryHeartbeat(r.Context(), primaryID); err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.SuccessResponse{Success: true})

	case "activate-shadow":
		agentID := strings.TrimSpace(query.Get("agentId"))
		agent, err := s.daemon.shadows.Activate(r.Context(), agentID)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.AgentResponse{Success: true, Agent: agent})

	case "check-stalls":
		result, err := s.daemon.CheckStalls(r.Context())
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)

	case "register-shadow":
		var req api.RegisterShadowRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeCoordError(w, err)
			return
		}
		agent, err := s.daemon.shadows.RegisterShadow(r.Context(), req.PrimaryAgentID, req.ShadowAgentID, req.StallThresholdMs)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.AgentResponse{Success: true, Agent: agent})

	default:
		s.writeCoordError(w, coord.Validationf("unknown action %q", action))
	}
}

// handleCloudAgents serves fleet record management.
func (s *APIServer) handleCloudAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req api.SpawnAgentRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeCoordError(w, err)
			return
		}
		agent, err := s.daemon.agents.Spawn(r.Context(), req.AgentID, req.Name)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.AgentResponse{Success: true, Agent: agent})

	case http.MethodGet:
		if agentID := strings.TrimSpace(r.URL.Query().Get("agentId")); agentID != "" {
			agent, ok, err := s.daemon.agents.Get(r.Context(), agentID)
			if err != nil {
				s.writeCoordError(w, err)
				return
			}
			if !ok {
				s.writeCoordError(w, coord.Wrap(coord.ErrNotFound, "fleet", "get", "unknown agent "+agentID, nil))
				return
			}
			s.writeJSON(w, http.StatusOK, api.AgentResponse{Success: true, Agent: agent})
			return
		}
		agents, err := s.daemon.agents.List(r.Context())
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.AgentsListResponse{Agents: agents, Count: len(agents)})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
