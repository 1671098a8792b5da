package daemon

import (
	"net/http"
	"strings"

	"roost/internal/api"
)

func (s *APIServer) handleLocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleLockAcquire(w, r)
	case http.MethodGet:
		s.handleLockRead(w, r)
	case http.MethodDelete:
		s.handleLockRelease(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *APIServer) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	var req api.LockRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeCoordError(w, err)
		return
	}
	lock, err := s.daemon.locks.Acquire(r.Context(), req.ResourcePath, req.LockedBy, req.Reason)
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LockResponse{Success: true, Lock: lock})
}

func (s *APIServer) handleLockRead(w http.ResponseWriter, r *http.Request) {
	if resourcePath := strings.TrimSpace(r.URL.Query().Get("resourcePath")); resourcePath != "" {
		lock, ok, err := s.daemon.locks.Check(r.Context(), resourcePath)
		if err != nil {
			s.writeCoordError(w, err)
			return
		}
		if !ok {
			s.writeJSON(w, http.StatusOK, api.LockResponse{Success: false})
			return
		}
		s.writeJSON(w, http.StatusOK, api.LockResponse{Success: true, Lock: lock})
		return
	}

	list, err := s.daemon.locks.List(r.Context())
	if err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LocksListResponse{Locks: list, Count: len(list)})
}

func (s *APIServer) handleLockRelease(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resourcePath := strings.TrimSpace(query.Get("resourcePath"))
	lockedBy := strings.TrimSpace(query.Get("lockedBy"))
	if err := s.daemon.locks.Release(r.Context(), resourcePath, lockedBy); err != nil {
		s.writeCoordError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReleasedResponse{Released: true})
}
