package handlers

import (
	"net/http"

	serr "github.com/teilomillet/sous/errors"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status           string `json:"status"`
	GeminiConfigured bool   `json:"gemini_configured"`
}

// Health reports liveness and whether the provider is configured.
// configured is evaluated per request.
func Health(configured func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serr.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:           "ok",
			GeminiConfigured: configured(),
		})
	}
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// Root describes the service and its endpoints.
func Root(info ServiceInfo) http.HandlerFunc {
	if info.Endpoints == nil {
		info.Endpoints = []string{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		serr.WriteJSON(w, http.StatusOK, info)
	}
}
