// Package api exposes the control plane over HTTP: topology snapshots,
// application provisioning, pull requests, and reload triggers.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"streamgate/internal/journal"
	"streamgate/internal/orchestrator"
)

type Handler struct {
	Orc     *orchestrator.Orchestrator
	Journal journal.Journal
	Reload  chan<- struct{}
	Logger  *slog.Logger
}

func NewHandler(orc *orchestrator.Orchestrator, j journal.Journal) *Handler {
	return &Handler{Orc: orc, Journal: j}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Resolve maps a request hostname to its owning virtual host, and optionally
// to a combined application name when ?app= is supplied.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("domain query parameter is required"))
		return
	}

	vhostName, ok := h.Orc.GetVhostNameFromDomain(domain)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no virtual host matches domain %q", domain))
		return
	}

	payload := map[string]string{"vhost": vhostName}
	if app := strings.TrimSpace(r.URL.Query().Get("app")); app != "" {
		name, ok := h.Orc.ResolveApplicationNameFromDomain(domain, app)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no virtual host matches domain %q", domain))
			return
		}
		payload["application"] = name
	}
	writeJSON(w, http.StatusOK, payload)
}

// TriggerReload asks the runtime to re-read and re-apply the origin map. The
// reload itself happens asynchronously.
func (h *Handler) TriggerReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if h.Reload == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("reload is not configured"))
		return
	}

	select {
	case h.Reload <- struct{}{}:
	default:
		// A reload is already pending.
	}
	h.logger().Info("origin map reload requested", "remote", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reload scheduled"})
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream string `json:"stream"`
	URL    string `json:"url"`
	Offset int64  `json:"offset"`
}

// Pull asks the orchestrator to pull a stream into an application, either
// from an explicit source URL or from the configured origin map.
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var req pullRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	streamName := strings.TrimSpace(req.Stream)
	if name == "" || streamName == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name and stream are required"))
		return
	}
	if req.Offset < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("offset must not be negative"))
		return
	}

	if !h.Orc.RequestPullStream(r.Context(), name, streamName, strings.TrimSpace(req.URL), req.Offset) {
		writeError(w, http.StatusBadGateway, fmt.Errorf("pull request for %s/%s failed", name, streamName))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"delegated": true})
}
