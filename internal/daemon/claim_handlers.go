package daemon

import (
	"net/http"
	"strings"

	"roost/internal/api"
)

func (s *APIServer) handleClaims(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleClaimCreate(w, r)
	case http.MethodGet:
		s.handleClaimRead(w, r)
	case http.MethodDelete:
		s.handleClaimRelease(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *APIServer) handleClaimCreate(w http.ResponseWriter, r *http.Request) {
	var req api.ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeCoordError(w, err)
		return
	}
	claim, err := s.daemon.claims.Claim(r.Context(), req.What, req.By, req.Description)
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClaimResponse{Claimed: true, By: claim.By, Since: claim.Since})
}

func (s *APIServer) handleClaimRead(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if what := strings.TrimSpace(query.Get("what")); what != "" {
		claim, ok, err := s.daemon.claims.Check(r.Context(), what)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		if !ok {
			s.writeJSON(w, http.StatusOK, api.ClaimResponse{Claimed: false})
			return
		}
		s.writeJSON(w, http.StatusOK, api.ClaimResponse{Claimed: true, By: claim.By, Since: claim.Since})
		return
	}

	includeStale := query.Get("includeStale") == "true"
	list, err := s.daemon.claims.List(r.Context(), includeStale)
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClaimsListResponse{Claims: list, Count: len(list)})
}

func (s *APIServer) handleClaimRelease(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	what := strings.TrimSpace(query.Get("what"))
	by := strings.TrimSpace(query.Get("by"))
	if err := s.daemon.claims.Release(r.Context(), what, by); err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReleasedResponse{Released: true})
}
