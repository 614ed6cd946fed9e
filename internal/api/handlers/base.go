package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/receiptwise/receiptmatch-backend/internal/api/dto"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct{}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// WriteAppError maps an application error to its HTTP shape and writes it.
func (b *Base) WriteAppError(w http.ResponseWriter, err error) {
	status, body := dto.FromError(err)
	b.WriteJSON(w, status, body)
}

// ParseUUIDParam parses a UUID from the URL path.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseFloatParam parses a float query parameter with a default value.
func ParseFloatParam(r *http.Request, name string, defaultVal float64) float64 {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// toMatchResponse converts a storage match to its API shape.
func toMatchResponse(m *storage.Match) dto.MatchResponse {
	resp := dto.MatchResponse{
		ID:                 m.ID,
		Owner:              m.Owner,
		ReceiptID:          m.ReceiptID,
		TransactionID:      m.TransactionID,
		TransactionGroupID: m.TransactionGroupID,
		Status:             string(m.Status),
		AmountScore:        m.AmountScore,
		DateScore:          m.DateScore,
		VendorScore:        m.VendorScore,
		ConfidenceScore:    m.ConfidenceScore,
		MatchReason:        m.MatchReason,
		IsManualMatch:      m.IsManualMatch,
		ConfirmedBy:        m.ConfirmedBy,
		CreatedAt:          m.CreatedAt.Format(time.RFC3339),
	}
	if m.ConfirmedAt != nil {
		confirmedAt := m.ConfirmedAt.Format(time.RFC3339)
		resp.ConfirmedAt = &confirmedAt
	}
	return resp
}
