package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cueso/internal/session"
)

// sessionSummary is the REST-visible projection of a session.Session.
type sessionSummary struct {
	ID             string `json:"id"`
	MessageCount   int    `json:"message_count"`
	IterationCount int    `json:"iteration_count"`
	LastActivity   string `json:"last_activity"`
}

func toSummary(s session.Session) sessionSummary {
	return sessionSummary{
		ID:             s.ID,
		MessageCount:   len(s.Messages),
		IterationCount: s.IterationCount,
		LastActivity:   s.LastActivity.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// SessionRoutes returns the REST surface expected by clients alongside the
// WebSocket endpoint: list, reset, and delete (spec.md §6).
//
//	GET    /sessions        -> list
//	POST   /sessions/{id}/reset
//	DELETE /sessions/{id}
func (h *Handler) SessionRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", h.handleList)
	mux.HandleFunc("/sessions/", h.handleSessionPath)
	return mux
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessions, err := h.Store.List(r.Context())
	if err != nil {
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSummary(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSessionPath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	id, action, hasAction := strings.Cut(rest, "/")
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	switch {
	case hasAction && action == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, id)
	case !hasAction && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.Store.Reset(r.Context(), id); err != nil {
		writeSessionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.Store.Delete(r.Context(), id); err != nil {
		writeSessionErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeSessionErr(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	http.Error(w, "store unavailable", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
