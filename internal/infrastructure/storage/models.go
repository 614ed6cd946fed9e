package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// MatchStatus is the matching state of a receipt, transaction or group.
type MatchStatus string

const (
	StatusUnmatched MatchStatus = "unmatched"
	StatusProposed  MatchStatus = "proposed"
	StatusMatched   MatchStatus = "matched"
)

// MatchState is the lifecycle state of a Match record.
type MatchState string

const (
	MatchProposed  MatchState = "proposed"
	MatchConfirmed MatchState = "confirmed"
	MatchRejected  MatchState = "rejected"
)

// Receipt is an uploaded proof of purchase. The extraction pipeline owns the
// *_extracted fields; this service only ever mutates MatchStatus.
type Receipt struct {
	ID              uuid.UUID   `json:"id"`
	Owner           string      `json:"owner"`
	AmountExtracted *float64    `json:"amount_extracted,omitempty"`
	DateExtracted   *time.Time  `json:"date_extracted,omitempty"`
	VendorExtracted string      `json:"vendor_extracted"`
	MatchStatus     MatchStatus `json:"match_status"`
	UploadedAt      time.Time   `json:"uploaded_at"`
}

// Fields converts the receipt to the scorer's input shape.
func (r *Receipt) Fields() matching.ReceiptFields {
	return matching.ReceiptFields{
		Amount: r.AmountExtracted,
		Date:   r.DateExtracted,
		Vendor: r.VendorExtracted,
	}
}

// Transaction is one bank/card statement line, created by the statement
// import pipeline. A non-nil GroupID means the transaction belongs to a
// TransactionGroup and is never individually matchable.
type Transaction struct {
	ID              uuid.UUID   `json:"id"`
	Owner           string      `json:"owner"`
	Amount          float64     `json:"amount"`
	TransactionDate time.Time   `json:"transaction_date"`
	Description     string      `json:"description"`
	GroupID         *uuid.UUID  `json:"group_id,omitempty"`
	MatchStatus     MatchStatus `json:"match_status"`
	ImportedAt      time.Time   `json:"imported_at"`
}

// Candidate converts the transaction to the scorer's candidate shape.
func (t *Transaction) Candidate() matching.Candidate {
	return matching.Candidate{
		Kind:             matching.KindIndividual,
		ID:               t.ID,
		Amount:           t.Amount,
		Date:             t.TransactionDate,
		Name:             t.Description,
		TransactionCount: 1,
	}
}

// TransactionGroup collapses several same-group transactions into one
// matchable unit.
type TransactionGroup struct {
	ID               uuid.UUID   `json:"id"`
	Owner            string      `json:"owner"`
	DisplayName      string      `json:"display_name"`
	CombinedAmount   float64     `json:"combined_amount"`
	DisplayDate      time.Time   `json:"display_date"`
	TransactionCount int         `json:"transaction_count"`
	MatchStatus      MatchStatus `json:"match_status"`
	MatchedReceiptID *uuid.UUID  `json:"matched_receipt_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Candidate converts the group to the scorer's candidate shape.
func (g *TransactionGroup) Candidate() matching.Candidate {
	return matching.Candidate{
		Kind:             matching.KindGroup,
		ID:               g.ID,
		Amount:           g.CombinedAmount,
		Date:             g.DisplayDate,
		Name:             g.DisplayName,
		TransactionCount: g.TransactionCount,
	}
}

// Match links a receipt to exactly one transaction or one group.
type Match struct {
	ID                 uuid.UUID  `json:"id"`
	Owner              string     `json:"owner"`
	ReceiptID          uuid.UUID  `json:"receipt_id"`
	TransactionID      *uuid.UUID `json:"transaction_id,omitempty"`
	TransactionGroupID *uuid.UUID `json:"transaction_group_id,omitempty"`
	Status             MatchState `json:"status"`
	AmountScore        float64    `json:"amount_score"`
	DateScore          float64    `json:"date_score"`
	VendorScore        float64    `json:"vendor_score"`
	ConfidenceScore    float64    `json:"confidence_score"`
	MatchReason        string     `json:"match_reason"`
	IsManualMatch      bool       `json:"is_manual_match"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy        *string    `json:"confirmed_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// NewMatch builds a proposed match record from a target, keeping the
// one-target invariant inside the constructor.
func NewMatch(owner string, receiptID uuid.UUID, target matching.MatchTarget, score matching.Score, manual bool) *Match {
	m := &Match{
		ID:              uuid.New(),
		Owner:           owner,
		ReceiptID:       receiptID,
		Status:          MatchProposed,
		AmountScore:     score.Amount,
		DateScore:       score.Date,
		VendorScore:     score.Vendor,
		ConfidenceScore: score.Confidence,
		MatchReason:     score.Reason,
		IsManualMatch:   manual,
		CreatedAt:       time.Now().UTC(),
	}
	if id, ok := target.TransactionID(); ok {
		m.TransactionID = &id
	}
	if id, ok := target.GroupID(); ok {
		m.TransactionGroupID = &id
	}
	return m
}

// Target reconstructs the tagged target from the stored columns, failing on
// rows that somehow violate the XOR invariant.
func (m *Match) Target() (matching.MatchTarget, error) {
	target, err := matching.ParseTarget(m.TransactionID, m.TransactionGroupID)
	if err != nil {
		return matching.MatchTarget{}, apperrors.Wrap(err, apperrors.CategoryInternal,
			apperrors.CodeUnexpectedError, "stored match violates the one-target invariant")
	}
	return target, nil
}

// Validate checks the match row before insertion.
func (m *Match) Validate() error {
	if m.Owner == "" {
		return apperrors.NewValidation(apperrors.CodeMissingField, "match owner is required")
	}
	if m.ReceiptID == uuid.Nil {
		return apperrors.NewValidation(apperrors.CodeMissingField, "match receipt id is required")
	}
	if (m.TransactionID == nil) == (m.TransactionGroupID == nil) {
		return apperrors.NewValidation(apperrors.CodeTargetXOR,
			"match must reference exactly one of transaction or group")
	}
	return nil
}
