package api

import (
	"fmt"
	"net/http"
	"strings"

	"streamgate/internal/orchestrator"
	"streamgate/internal/streamkey"
)

type createAppRequest struct {
	VHost         string `json:"vhost"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	WithStreamKey bool   `json:"withStreamKey"`
}

type createAppResponse struct {
	Application orchestrator.ApplicationInfo `json:"application"`
	StreamKey   string                       `json:"streamKey,omitempty"`
}

// Apps lists every provisioned application or creates a new one. A created
// application's stream key is returned exactly once and never stored in
// plaintext.
func (h *Handler) Apps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		apps := make([]orchestrator.ApplicationInfo, 0)
		for _, vhost := range h.Orc.VirtualHosts() {
			apps = append(apps, vhost.Applications...)
		}
		writeJSON(w, http.StatusOK, apps)
	case http.MethodPost:
		h.createApp(w, r)
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodPost}, ", "))
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

func (h *Handler) createApp(w http.ResponseWriter, r *http.Request) {
	var req createAppRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	vhostName := strings.TrimSpace(req.VHost)
	appName := strings.TrimSpace(req.Name)
	if vhostName == "" || appName == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("vhost and name are required"))
		return
	}

	cfg := orchestrator.ApplicationConfig{Name: appName, Type: strings.TrimSpace(req.Type)}
	var plaintext string
	if req.WithStreamKey {
		key, err := streamkey.Generate()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		hash, err := streamkey.Hash(key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		plaintext = key
		cfg.StreamKeyHash = hash
	}

	switch result := h.Orc.CreateApplication(r.Context(), vhostName, cfg); result {
	case orchestrator.ResultSucceeded:
		info := h.Orc.GetApplication(orchestrator.ResolveApplicationName(vhostName, appName))
		writeJSON(w, http.StatusCreated, createAppResponse{Application: info, StreamKey: plaintext})
	case orchestrator.ResultExists:
		writeError(w, http.StatusConflict, fmt.Errorf("application %q already exists in %q", appName, vhostName))
	case orchestrator.ResultNotExists:
		writeError(w, http.StatusNotFound, fmt.Errorf("virtual host %q not found", vhostName))
	default:
		writeError(w, http.StatusInternalServerError, fmt.Errorf("application %q could not be created", appName))
	}
}

// AppByName serves /api/apps/{vhost}/{app}: lookup and deletion of one
// application.
func (h *Handler) AppByName(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/apps/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("path must be /api/apps/{vhost}/{app}"))
		return
	}
	combined := orchestrator.ResolveApplicationName(parts[0], parts[1])

	switch r.Method {
	case http.MethodGet:
		info := h.Orc.GetApplication(combined)
		if !info.IsValid() {
			writeError(w, http.StatusNotFound, fmt.Errorf("application %s not found", combined))
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodDelete:
		info := h.Orc.GetApplication(combined)
		if !info.IsValid() {
			writeError(w, http.StatusNotFound, fmt.Errorf("application %s not found", combined))
			return
		}
		switch result := h.Orc.DeleteApplication(r.Context(), info); result {
		case orchestrator.ResultSucceeded:
			writeJSON(w, http.StatusNoContent, nil)
		case orchestrator.ResultNotExists:
			writeError(w, http.StatusNotFound, fmt.Errorf("application %s not found", combined))
		default:
			// The application is gone but one or more modules failed to
			// acknowledge the deletion.
			writeError(w, http.StatusInternalServerError, fmt.Errorf("application %s deleted with module failures", combined))
		}
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodGet, http.MethodDelete}, ", "))
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}
