package matching

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// CandidateKind distinguishes individual transactions from transaction groups.
type CandidateKind string

const (
	KindIndividual CandidateKind = "individual"
	KindGroup      CandidateKind = "group"
)

// Candidate is one matchable unit presented to the scoring engine: either a
// standalone transaction or a group of transactions collapsed into one.
type Candidate struct {
	Kind             CandidateKind
	ID               uuid.UUID
	Amount           float64
	Date             time.Time
	Name             string // transaction description or group display name
	TransactionCount int    // 1 for individuals
}

// ReceiptFields holds the extracted fields the scorer needs. Amount and Date
// are pointers because OCR extraction can fail to produce them.
type ReceiptFields struct {
	Amount *float64
	Date   *time.Time
	Vendor string
}

// Score is the scoring engine's output for one receipt/candidate pair.
type Score struct {
	Amount     float64 `json:"amount_score"`
	Date       float64 `json:"date_score"`
	Vendor     float64 `json:"vendor_score"`
	Confidence float64 `json:"confidence_score"`
	Reason     string  `json:"reason"`
}

// ScoredCandidate pairs a candidate with its score.
type ScoredCandidate struct {
	Candidate Candidate
	Score     Score
}

// MatchTarget is a tagged choice of exactly one transaction or one group.
// The zero value is invalid; the constructors are the only way to build a
// valid target, which keeps the one-target invariant out of runtime checks.
type MatchTarget struct {
	kind CandidateKind
	id   uuid.UUID
}

// TransactionTarget builds a target pointing at an individual transaction.
func TransactionTarget(id uuid.UUID) MatchTarget {
	return MatchTarget{kind: KindIndividual, id: id}
}

// GroupTarget builds a target pointing at a transaction group.
func GroupTarget(id uuid.UUID) MatchTarget {
	return MatchTarget{kind: KindGroup, id: id}
}

// ParseTarget maps a pair of optional ids (as they arrive on the wire) to a
// target, rejecting both-set and neither-set.
func ParseTarget(transactionID, groupID *uuid.UUID) (MatchTarget, error) {
	switch {
	case transactionID != nil && groupID != nil:
		return MatchTarget{}, apperrors.NewValidation(apperrors.CodeTargetXOR,
			"exactly one of transaction_id and transaction_group_id must be set, got both")
	case transactionID == nil && groupID == nil:
		return MatchTarget{}, apperrors.NewValidation(apperrors.CodeTargetXOR,
			"exactly one of transaction_id and transaction_group_id must be set, got neither")
	case transactionID != nil:
		return TransactionTarget(*transactionID), nil
	default:
		return GroupTarget(*groupID), nil
	}
}

// Kind returns the target's kind.
func (t MatchTarget) Kind() CandidateKind { return t.kind }

// ID returns the target's id.
func (t MatchTarget) ID() uuid.UUID { return t.id }

// IsZero reports whether the target was never initialized.
func (t MatchTarget) IsZero() bool { return t.kind == "" }

// TransactionID returns the id when the target is an individual transaction.
func (t MatchTarget) TransactionID() (uuid.UUID, bool) {
	if t.kind == KindIndividual {
		return t.id, true
	}
	return uuid.Nil, false
}

// GroupID returns the id when the target is a group.
func (t MatchTarget) GroupID() (uuid.UUID, bool) {
	if t.kind == KindGroup {
		return t.id, true
	}
	return uuid.Nil, false
}
