package handlers

import (
	"net/http"

	"github.com/receiptwise/receiptmatch-backend/internal/api/dto"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// StatsHandler serves matching statistics.
type StatsHandler struct {
	*Base
	service *service.MatchService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(svc *service.MatchService) *StatsHandler {
	return &StatsHandler{
		Base:    &Base{},
		service: svc,
	}
}

// Get handles GET /api/stats?owner= - per-status counts for one owner.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("owner is required"))
		return
	}

	counts, err := h.service.Stats(r.Context(), owner)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.StatsResponse{
		Owner:        owner,
		Receipts:     statusMap(counts.Receipts),
		Transactions: statusMap(counts.Transactions),
		Groups:       statusMap(counts.Groups),
		Matches:      stateMap(counts.Matches),
	})
}

func statusMap(in map[storage.MatchStatus]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

func stateMap(in map[storage.MatchState]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}
