package api

import (
	"net/http"
	"strings"

	"github.com/nft3d-scanner/internal/resolver"
	"github.com/nft3d-scanner/internal/types"
)

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	body := map[string]interface{}{
		"service": "nft3d-scanner",
	}

	if s.credentials != nil {
		configured := s.credentials.Configured()
		body["credentialConfigured"] = configured
		if !configured {
			status = "degraded"
		}
	}
	if s.provider != nil {
		health := s.provider.Health()
		body["provider"] = health
		if !health.IsHealthy {
			status = "degraded"
		}
	}

	body["status"] = status
	respondJSON(w, http.StatusOK, body)
}

// handleListNetworks handles GET /api/networks
func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"networks": types.SupportedNetworks(),
	})
}

// handleResolveModel handles GET /api/models/resolve?url=
func (s *Server) handleResolveModel(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "url parameter required", nil)
		return
	}

	resolved := s.viewer.ResolveURL(r.Context(), raw)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"url":       raw,
		"resolved":  resolved,
		"extension": resolver.FileExtension(resolved),
		"gltf":      resolver.IsGLTF(resolved),
	})
}

// handleUpdateCredential handles PUT /api/credential
func (s *Server) handleUpdateCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := s.credentials.Update(r.Context(), req.APIKey); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
