package api

import (
	"fmt"
	"net/http"
	"strings"
)

// Vhosts lists the reconciled virtual-host topology.
func (h *Handler) Vhosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, h.Orc.VirtualHosts())
}

// VhostByName returns one virtual host's topology snapshot.
func (h *Handler) VhostByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/vhosts/"), "/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, fmt.Errorf("virtual host name is required"))
		return
	}

	status, ok := h.Orc.VirtualHost(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("virtual host %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
