package dto

import (
	"time"

	"github.com/google/uuid"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Version    string `json:"version"`
	ActiveJobs int    `json:"active_jobs"`
	Timestamp  string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current time and
// the number of auto-match jobs in flight.
func NewHealthResponse(version string, activeJobs int) HealthResponse {
	return HealthResponse{
		Status:     "ok",
		Service:    "receiptmatch-backend",
		Version:    version,
		ActiveJobs: activeJobs,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// MatchResponse represents a match in API responses.
type MatchResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Owner              string     `json:"owner"`
	ReceiptID          uuid.UUID  `json:"receipt_id"`
	TransactionID      *uuid.UUID `json:"transaction_id,omitempty"`
	TransactionGroupID *uuid.UUID `json:"transaction_group_id,omitempty"`
	Status             string     `json:"status"`
	AmountScore        float64    `json:"amount_score"`
	DateScore          float64    `json:"date_score"`
	VendorScore        float64    `json:"vendor_score"`
	ConfidenceScore    float64    `json:"confidence_score"`
	MatchReason        string     `json:"match_reason"`
	IsManualMatch      bool       `json:"is_manual_match"`
	ConfirmedAt        *string    `json:"confirmed_at,omitempty"`
	ConfirmedBy        *string    `json:"confirmed_by,omitempty"`
	CreatedAt          string     `json:"created_at"`
}

// MatchListResponse lists matches for review.
type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
	Count   int             `json:"count"`
}

// CandidateResponse represents one scored candidate for a receipt.
type CandidateResponse struct {
	Kind             string    `json:"kind"` // "individual" or "group"
	ID               uuid.UUID `json:"id"`
	Amount           float64   `json:"amount"`
	Date             string    `json:"date"`
	Name             string    `json:"name"`
	TransactionCount int       `json:"transaction_count"`
	AmountScore      float64   `json:"amount_score"`
	DateScore        float64   `json:"date_score"`
	VendorScore      float64   `json:"vendor_score"`
	ConfidenceScore  float64   `json:"confidence_score"`
	MatchReason      string    `json:"match_reason"`
}

// CandidateListResponse lists scored candidates for a receipt.
type CandidateListResponse struct {
	ReceiptID  uuid.UUID           `json:"receipt_id"`
	Candidates []CandidateResponse `json:"candidates"`
	Count      int                 `json:"count"`
}

// BatchApproveResponse summarizes a batch approval.
type BatchApproveResponse struct {
	Approved int               `json:"approved"`
	Skipped  int               `json:"skipped"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// StatsResponse reports per-status counts for one owner.
type StatsResponse struct {
	Owner        string         `json:"owner"`
	Receipts     map[string]int `json:"receipts"`
	Transactions map[string]int `json:"transactions"`
	Groups       map[string]int `json:"groups"`
	Matches      map[string]int `json:"matches"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
