package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the data access surface shared by the root repository and
// transaction-scoped views. Lifecycle operations always run against a
// transactional view obtained through Repository.WithinTx.
type Store interface {
	ReceiptStore
	TransactionStore
	GroupStore
	MatchStore
}

// Repository is the complete storage interface. The SQLite implementation
// and the in-memory mock both satisfy it, which keeps application tests off
// the filesystem.
type Repository interface {
	Store

	// WithinTx runs fn against a view of the store bound to a single
	// database transaction; fn returning an error rolls everything back.
	// Calls are not reentrant from inside fn.
	WithinTx(ctx context.Context, fn func(Store) error) error

	Close() error
}

// CandidateWindow bounds a candidate query around a receipt's extracted
// amount and date.
type CandidateWindow struct {
	AmountMin float64
	AmountMax float64
	DateFrom  time.Time
	DateTo    time.Time
}

// MatchFilters selects matches for listing and batch operations.
type MatchFilters struct {
	Owner         string
	Status        MatchState // empty = all
	MinConfidence float64
	Limit         int // 0 = no limit
}

// StatusCounts aggregates per-status counts for the stats endpoint.
type StatusCounts struct {
	Receipts     map[MatchStatus]int `json:"receipts"`
	Transactions map[MatchStatus]int `json:"transactions"`
	Groups       map[MatchStatus]int `json:"groups"`
	Matches      map[MatchState]int  `json:"matches"`
}

// ReceiptStore handles receipt rows.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, receipt *Receipt) error
	GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error)

	// ListUnmatchedReceipts returns the owner's receipts still awaiting a
	// proposal, oldest upload first.
	ListUnmatchedReceipts(ctx context.Context, owner string) ([]*Receipt, error)

	// ListOwnersWithUnmatchedReceipts returns each owner that has at least
	// one unmatched receipt, for scheduled full runs.
	ListOwnersWithUnmatchedReceipts(ctx context.Context) ([]string, error)

	// UpdateReceiptStatus flips a receipt's status only when it still holds
	// the expected value; a guard miss on an existing row is a conflict.
	UpdateReceiptStatus(ctx context.Context, id uuid.UUID, from, to MatchStatus) error
}

// TransactionStore handles statement transaction rows.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// FindCandidateTransactions returns the owner's unmatched, ungrouped
	// transactions inside the window. Grouped transactions never appear;
	// they are only reachable through their group.
	FindCandidateTransactions(ctx context.Context, owner string, window CandidateWindow) ([]*Transaction, error)

	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to MatchStatus) error
}

// GroupStore handles transaction group rows.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *TransactionGroup) error
	GetGroup(ctx context.Context, id uuid.UUID) (*TransactionGroup, error)

	FindCandidateGroups(ctx context.Context, owner string, window CandidateWindow) ([]*TransactionGroup, error)

	// UpdateGroupStatus flips the group's status under the same guard
	// discipline and writes/clears matched_receipt_id in the same statement.
	UpdateGroupStatus(ctx context.Context, id uuid.UUID, from, to MatchStatus, matchedReceiptID *uuid.UUID) error
}

// MatchStore handles match rows.
type MatchStore interface {
	CreateMatch(ctx context.Context, match *Match) error
	GetMatch(ctx context.Context, id uuid.UUID) (*Match, error)

	// ListMatches returns matches ordered by confidence descending.
	ListMatches(ctx context.Context, filters MatchFilters) ([]*Match, error)

	// MarkMatchConfirmed transitions proposed -> confirmed, recording who and
	// when. A non-proposed existing row is an invalid-state error.
	MarkMatchConfirmed(ctx context.Context, id uuid.UUID, confirmedBy string, at time.Time) error

	// MarkMatchRejected transitions proposed|confirmed -> rejected.
	MarkMatchRejected(ctx context.Context, id uuid.UUID) error

	// CountByStatus aggregates receipt/match counts for one owner.
	CountByStatus(ctx context.Context, owner string) (*StatusCounts, error)
}
