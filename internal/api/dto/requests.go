package dto

import "github.com/google/uuid"

// CreateMatchRequest is the body for creating a manual match. Exactly
// one of transaction_id and transaction_group_id must be set.
type CreateMatchRequest struct {
	ReceiptID          uuid.UUID  `json:"receipt_id"`
	TransactionID      *uuid.UUID `json:"transaction_id,omitempty"`
	TransactionGroupID *uuid.UUID `json:"transaction_group_id,omitempty"`
	ConfirmedBy        string     `json:"confirmed_by"`
}

// ConfirmMatchRequest is the body for confirming a proposed match.
type ConfirmMatchRequest struct {
	ConfirmedBy string `json:"confirmed_by"`
}

// BatchApproveRequest is the body for approving every proposed match
// for one owner at or above a confidence floor.
type BatchApproveRequest struct {
	Owner         string  `json:"owner"`
	MinConfidence float64 `json:"min_confidence"`
	ConfirmedBy   string  `json:"confirmed_by"`
}

// StartAutoMatchRequest is the body for starting an auto-match job.
type StartAutoMatchRequest struct {
	Owner       string     `json:"owner"`
	AllOwners   bool       `json:"all_owners"`
	MaxReceipts int        `json:"max_receipts"`
	ReceiptID   *uuid.UUID `json:"receipt_id,omitempty"`
}
