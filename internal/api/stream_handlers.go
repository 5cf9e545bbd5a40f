package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const defaultEventLimit = 50

// Streams lists the streams the orchestrator currently tracks.
func (h *Handler) Streams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, h.Orc.ActiveStreams())
}

// URLs resolves the upstream URL candidates for a stream of an application,
// derived from the origin map.
func (h *Handler) URLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	streamName := strings.TrimSpace(r.URL.Query().Get("stream"))
	if name == "" || streamName == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name and stream query parameters are required"))
		return
	}

	urls, ok := h.Orc.GetURLListForLocation(name, streamName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no origin matches %s/%s", name, streamName))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"urls": urls})
}

// Events returns recent control-plane events, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if h.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("event journal is not configured"))
		return
	}

	limit := defaultEventLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.Journal.Recent(r.Context(), limit)
	if err != nil {
		h.logger().Error("list journal events", "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list events: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}
