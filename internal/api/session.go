package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// handleLogin starts or renews the caller's session.
// POST /api/session/login
func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	writeJSON(w, http.StatusOK, s.sessions.Login(viewer.ID, viewer.Role))
}

// handleLogout ends the caller's session.
// POST /api/session/logout
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	if !s.sessions.Logout(viewer.ID) {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession reports the caller's session without counting as activity.
// GET /api/session
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	info, ok := s.sessions.Get(viewerFrom(r.Context()).ID)
	if !ok {
		writeError(w, http.StatusNotFound, "no session")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleActivity accepts interaction heartbeats from the UI. The
// interaction itself is recorded by the middleware.
// POST /api/session/activity {"kind": "scroll"}
func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Kind != "" {
		kind, ok := parseInteraction(req.Kind)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown interaction "+req.Kind)
			return
		}
		if err := s.sessions.Touch(viewerFrom(r.Context()).ID, kind); err != nil {
			writeError(w, http.StatusUnauthorized, "session expired; log in again")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
