package handlers

import (
	"net/http"
	"time"

	"github.com/receiptwise/receiptmatch-backend/internal/api/dto"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
)

// ReceiptsHandler serves candidate discovery for receipts.
type ReceiptsHandler struct {
	*Base
	service *service.MatchService
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(svc *service.MatchService) *ReceiptsHandler {
	return &ReceiptsHandler{
		Base:    &Base{},
		service: svc,
	}
}

// Candidates handles GET /api/receipts/{id}/candidates - scores every
// discoverable candidate for the receipt, best first.
func (h *ReceiptsHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	receiptID, ok := ParseUUIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid receipt id"))
		return
	}

	candidates, err := h.service.GetCandidates(r.Context(), receiptID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	response := dto.CandidateListResponse{
		ReceiptID:  receiptID,
		Candidates: make([]dto.CandidateResponse, 0, len(candidates)),
		Count:      len(candidates),
	}
	for _, c := range candidates {
		response.Candidates = append(response.Candidates, dto.CandidateResponse{
			Kind:             string(c.Candidate.Kind),
			ID:               c.Candidate.ID,
			Amount:           c.Candidate.Amount,
			Date:             c.Candidate.Date.Format(time.RFC3339),
			Name:             c.Candidate.Name,
			TransactionCount: c.Candidate.TransactionCount,
			AmountScore:      c.Score.Amount,
			DateScore:        c.Score.Date,
			VendorScore:      c.Score.Vendor,
			ConfidenceScore:  c.Score.Confidence,
			MatchReason:      c.Score.Reason,
		})
	}
	h.WriteJSON(w, http.StatusOK, response)
}
