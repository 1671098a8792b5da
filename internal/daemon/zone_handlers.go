package daemon

import (
	"net/http"
	"strings"

	"roost/internal/api"
)

func (s *APIServer) handleZones(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleZoneClaim(w, r)
	case http.MethodGet:
		s.handleZoneList(w, r)
	case http.MethodDelete:
		s.handleZoneRelease(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *APIServer) handleZoneClaim(w http.ResponseWriter, r *http.Request) {
	var req api.ZoneRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeCoordError(w, err)
		return
	}
	zone, err := s.daemon.zones.Claim(r.Context(), req.ZoneID, req.Path, req.Owner, req.Description)
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ZoneResponse{Success: true, Zone: zone})
}

func (s *APIServer) handleZoneList(w http.ResponseWriter, r *http.Request) {
	if owner := strings.TrimSpace(r.URL.Query().Get("owner")); owner != "" {
		list, err := s.daemon.zones.ZonesFor(r.Context(), owner)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ZonesListResponse{Zones: list, Count: len(list)})
		return
	}

	list, err := s.daemon.zones.List(r.Context())
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ZonesListResponse{Zones: list, Count: len(list)})
}

func (s *APIServer) handleZoneRelease(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	zoneID := strings.TrimSpace(query.Get("zoneId"))
	owner := strings.TrimSpace(query.Get("owner"))
	if err := s.daemon.zones.Release(r.Context(), zoneID, owner); err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReleasedResponse{Released: true})
}
