package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/receiptwise/receiptmatch-backend/internal/api/dto"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// HealthHandler reports liveness along with a snapshot of the matching
// engine, so load balancer checks double as a cheap status endpoint.
type HealthHandler struct {
	matchService *service.MatchService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(matchService *service.MatchService) *HealthHandler {
	return &HealthHandler{matchService: matchService}
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := dto.NewHealthResponse(Version, len(h.matchService.ListActiveJobs()))
	_ = json.NewEncoder(w).Encode(response)
}
