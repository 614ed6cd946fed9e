package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/receiptwise/receiptmatch-backend/internal/api/dto"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// MatchesHandler handles match lifecycle HTTP requests.
type MatchesHandler struct {
	*Base
	service *service.MatchService
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(svc *service.MatchService) *MatchesHandler {
	return &MatchesHandler{
		Base:    &Base{},
		service: svc,
	}
}

// Create handles POST /api/matches - creates a manual match.
func (h *MatchesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.ConfirmedBy == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("confirmed_by is required"))
		return
	}

	target, err := matching.ParseTarget(req.TransactionID, req.TransactionGroupID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	match, err := h.service.CreateManualMatch(r.Context(), req.ReceiptID, target, req.ConfirmedBy)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, toMatchResponse(match))
}

// List handles GET /api/matches - lists matches for review.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.MatchFilters{
		Owner:         r.URL.Query().Get("owner"),
		MinConfidence: ParseFloatParam(r, "min_confidence", 0),
		Limit:         ParseIntParam(r, "limit", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filters.Status = storage.MatchState(status)
	}

	matches, err := h.service.ListMatches(r.Context(), filters)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	response := dto.MatchListResponse{
		Matches: make([]dto.MatchResponse, 0, len(matches)),
		Count:   len(matches),
	}
	for _, m := range matches {
		response.Matches = append(response.Matches, toMatchResponse(m))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Confirm handles POST /api/matches/{id}/confirm.
func (h *MatchesHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	matchID, ok := ParseUUIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid match id"))
		return
	}

	var req dto.ConfirmMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.ConfirmedBy == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("confirmed_by is required"))
		return
	}

	match, err := h.service.ConfirmMatch(r.Context(), matchID, req.ConfirmedBy)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toMatchResponse(match))
}

// Reject handles POST /api/matches/{id}/reject.
func (h *MatchesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	matchID, ok := ParseUUIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid match id"))
		return
	}

	match, err := h.service.RejectMatch(r.Context(), matchID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toMatchResponse(match))
}

// BatchApprove handles POST /api/matches/approve.
func (h *MatchesHandler) BatchApprove(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.Owner == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("owner is required"))
		return
	}
	if req.ConfirmedBy == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("confirmed_by is required"))
		return
	}

	result, err := h.service.BatchApprove(r.Context(), req.Owner, req.MinConfidence, req.ConfirmedBy)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	response := dto.BatchApproveResponse{
		Approved: result.Approved,
		Skipped:  result.Skipped,
	}
	if len(result.Errors) > 0 {
		response.Errors = make(map[string]string, len(result.Errors))
		for id, msg := range result.Errors {
			response.Errors[id.String()] = msg
		}
	}
	h.WriteJSON(w, http.StatusOK, response)
}
