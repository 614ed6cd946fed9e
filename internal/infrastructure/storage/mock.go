package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It mirrors the SQLite guard semantics (conflict on stale status, not-found
// on missing rows) so lifecycle tests can exercise every error path without
// touching a database file.
type MockRepository struct {
	receipts     map[uuid.UUID]*Receipt
	transactions map[uuid.UUID]*Transaction
	groups       map[uuid.UUID]*TransactionGroup
	matches      map[uuid.UUID]*Match

	// Hooks for test assertions
	CreateMatchCalled   bool
	LastCreatedMatch    *Match
	WithinTxCalled      bool
	WithinTxInvocations int

	// Error injection for testing error paths
	CreateMatchErr      error
	FindTransactionsErr error
	FindGroupsErr       error
	ListReceiptsErr     error
	WithinTxErr         error

	// ConflictOnReceiptUpdate makes the next receipt status update fail with
	// a conflict, then clears itself; used to drive the retry path.
	ConflictOnReceiptUpdate bool

	// ListOwnersBarrier, when set, blocks ListOwnersWithUnmatchedReceipts
	// until the channel is closed or the context is cancelled; used to hold
	// an all-owner run open while concurrency behavior is exercised.
	ListOwnersBarrier chan struct{}
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		receipts:     make(map[uuid.UUID]*Receipt),
		transactions: make(map[uuid.UUID]*Transaction),
		groups:       make(map[uuid.UUID]*TransactionGroup),
		matches:      make(map[uuid.UUID]*Match),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// WithinTx runs fn directly against the mock; the mock has no transactional
// isolation, which is fine for the sequential tests that use it.
func (m *MockRepository) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.WithinTxCalled = true
	m.WithinTxInvocations++
	if m.WithinTxErr != nil {
		return m.WithinTxErr
	}
	return fn(m)
}

// --- receipts ---

func (m *MockRepository) CreateReceipt(_ context.Context, receipt *Receipt) error {
	if receipt.MatchStatus == "" {
		receipt.MatchStatus = StatusUnmatched
	}
	clone := *receipt
	m.receipts[receipt.ID] = &clone
	return nil
}

func (m *MockRepository) GetReceipt(_ context.Context, id uuid.UUID) (*Receipt, error) {
	receipt, ok := m.receipts[id]
	if !ok {
		return nil, apperrors.NewNotFound(apperrors.CodeReceiptNotFound,
			fmt.Sprintf("receipt %s not found", id))
	}
	clone := *receipt
	return &clone, nil
}

func (m *MockRepository) ListUnmatchedReceipts(_ context.Context, owner string) ([]*Receipt, error) {
	if m.ListReceiptsErr != nil {
		return nil, m.ListReceiptsErr
	}
	var receipts []*Receipt
	for _, r := range m.receipts {
		if r.Owner == owner && r.MatchStatus == StatusUnmatched {
			clone := *r
			receipts = append(receipts, &clone)
		}
	}
	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].UploadedAt.Before(receipts[j].UploadedAt)
	})
	return receipts, nil
}

func (m *MockRepository) ListOwnersWithUnmatchedReceipts(ctx context.Context) ([]string, error) {
	if m.ListOwnersBarrier != nil {
		select {
		case <-m.ListOwnersBarrier:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	seen := make(map[string]bool)
	for _, r := range m.receipts {
		if r.MatchStatus == StatusUnmatched {
			seen[r.Owner] = true
		}
	}
	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

func (m *MockRepository) UpdateReceiptStatus(_ context.Context, id uuid.UUID, from, to MatchStatus) error {
	receipt, ok := m.receipts[id]
	if !ok {
		return apperrors.NewNotFound(apperrors.CodeReceiptNotFound,
			fmt.Sprintf("receipt %s not found", id))
	}
	if m.ConflictOnReceiptUpdate {
		m.ConflictOnReceiptUpdate = false
		return apperrors.NewConflict(apperrors.CodeStaleStatus,
			fmt.Sprintf("receipts row %s changed status concurrently", id))
	}
	if receipt.MatchStatus != from {
		return apperrors.NewConflict(apperrors.CodeStaleStatus,
			fmt.Sprintf("receipts row %s changed status concurrently", id))
	}
	receipt.MatchStatus = to
	return nil
}

// --- transactions ---

func (m *MockRepository) CreateTransaction(_ context.Context, tx *Transaction) error {
	if tx.MatchStatus == "" {
		tx.MatchStatus = StatusUnmatched
	}
	clone := *tx
	m.transactions[tx.ID] = &clone
	return nil
}

func (m *MockRepository) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	tx, ok := m.transactions[id]
	if !ok {
		return nil, apperrors.NewNotFound(apperrors.CodeTransactionNotFound,
			fmt.Sprintf("transaction %s not found", id))
	}
	clone := *tx
	return &clone, nil
}

func (m *MockRepository) FindCandidateTransactions(_ context.Context, owner string, window CandidateWindow) ([]*Transaction, error) {
	if m.FindTransactionsErr != nil {
		return nil, m.FindTransactionsErr
	}
	var txs []*Transaction
	for _, tx := range m.transactions {
		if tx.Owner != owner || tx.MatchStatus != StatusUnmatched || tx.GroupID != nil {
			continue
		}
		if tx.Amount < window.AmountMin || tx.Amount > window.AmountMax {
			continue
		}
		if tx.TransactionDate.Before(window.DateFrom) || tx.TransactionDate.After(window.DateTo) {
			continue
		}
		clone := *tx
		txs = append(txs, &clone)
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].TransactionDate.Before(txs[j].TransactionDate)
	})
	return txs, nil
}

func (m *MockRepository) UpdateTransactionStatus(_ context.Context, id uuid.UUID, from, to MatchStatus) error {
	tx, ok := m.transactions[id]
	if !ok {
		return apperrors.NewNotFound(apperrors.CodeTransactionNotFound,
			fmt.Sprintf("transaction %s not found", id))
	}
	if tx.MatchStatus != from {
		return apperrors.NewConflict(apperrors.CodeStaleStatus,
			fmt.Sprintf("transactions row %s changed status concurrently", id))
	}
	tx.MatchStatus = to
	return nil
}

// --- groups ---

func (m *MockRepository) CreateGroup(_ context.Context, group *TransactionGroup) error {
	if group.MatchStatus == "" {
		group.MatchStatus = StatusUnmatched
	}
	clone := *group
	m.groups[group.ID] = &clone
	return nil
}

func (m *MockRepository) GetGroup(_ context.Context, id uuid.UUID) (*TransactionGroup, error) {
	group, ok := m.groups[id]
	if !ok {
		return nil, apperrors.NewNotFound(apperrors.CodeGroupNotFound,
			fmt.Sprintf("transaction group %s not found", id))
	}
	clone := *group
	return &clone, nil
}

func (m *MockRepository) FindCandidateGroups(_ context.Context, owner string, window CandidateWindow) ([]*TransactionGroup, error) {
	if m.FindGroupsErr != nil {
		return nil, m.FindGroupsErr
	}
	var groups []*TransactionGroup
	for _, g := range m.groups {
		if g.Owner != owner || g.MatchStatus != StatusUnmatched {
			continue
		}
		if g.CombinedAmount < window.AmountMin || g.CombinedAmount > window.AmountMax {
			continue
		}
		if g.DisplayDate.Before(window.DateFrom) || g.DisplayDate.After(window.DateTo) {
			continue
		}
		clone := *g
		groups = append(groups, &clone)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].DisplayDate.Before(groups[j].DisplayDate)
	})
	return groups, nil
}

func (m *MockRepository) UpdateGroupStatus(_ context.Context, id uuid.UUID, from, to MatchStatus, matchedReceiptID *uuid.UUID) error {
	group, ok := m.groups[id]
	if !ok {
		return apperrors.NewNotFound(apperrors.CodeGroupNotFound,
			fmt.Sprintf("transaction group %s not found", id))
	}
	if group.MatchStatus != from {
		return apperrors.NewConflict(apperrors.CodeStaleStatus,
			fmt.Sprintf("transaction_groups row %s changed status concurrently", id))
	}
	group.MatchStatus = to
	group.MatchedReceiptID = matchedReceiptID
	return nil
}

// --- matches ---

func (m *MockRepository) CreateMatch(_ context.Context, match *Match) error {
	m.CreateMatchCalled = true
	if m.CreateMatchErr != nil {
		return m.CreateMatchErr
	}
	if err := match.Validate(); err != nil {
		return err
	}
	clone := *match
	m.matches[match.ID] = &clone
	m.LastCreatedMatch = &clone
	return nil
}

func (m *MockRepository) GetMatch(_ context.Context, id uuid.UUID) (*Match, error) {
	match, ok := m.matches[id]
	if !ok {
		return nil, apperrors.NewNotFound(apperrors.CodeMatchNotFound,
			fmt.Sprintf("match %s not found", id))
	}
	clone := *match
	return &clone, nil
}

func (m *MockRepository) ListMatches(_ context.Context, filters MatchFilters) ([]*Match, error) {
	var matches []*Match
	for _, match := range m.matches {
		if filters.Owner != "" && match.Owner != filters.Owner {
			continue
		}
		if filters.Status != "" && match.Status != filters.Status {
			continue
		}
		if filters.MinConfidence > 0 && match.ConfidenceScore < filters.MinConfidence {
			continue
		}
		clone := *match
		matches = append(matches, &clone)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ConfidenceScore != matches[j].ConfidenceScore {
			return matches[i].ConfidenceScore > matches[j].ConfidenceScore
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if filters.Limit > 0 && len(matches) > filters.Limit {
		matches = matches[:filters.Limit]
	}
	return matches, nil
}

func (m *MockRepository) MarkMatchConfirmed(_ context.Context, id uuid.UUID, confirmedBy string, at time.Time) error {
	match, ok := m.matches[id]
	if !ok {
		return apperrors.NewNotFound(apperrors.CodeMatchNotFound,
			fmt.Sprintf("match %s not found", id))
	}
	if match.Status != MatchProposed {
		return apperrors.NewInvalidState(apperrors.CodeMatchNotProposed,
			fmt.Sprintf("match %s is not in proposed state", id))
	}
	match.Status = MatchConfirmed
	match.ConfirmedAt = &at
	match.ConfirmedBy = &confirmedBy
	return nil
}

func (m *MockRepository) MarkMatchRejected(_ context.Context, id uuid.UUID) error {
	match, ok := m.matches[id]
	if !ok {
		return apperrors.NewNotFound(apperrors.CodeMatchNotFound,
			fmt.Sprintf("match %s not found", id))
	}
	if match.Status == MatchRejected {
		return apperrors.NewInvalidState(apperrors.CodeMatchNotRevocable,
			fmt.Sprintf("match %s is already rejected", id))
	}
	match.Status = MatchRejected
	return nil
}

func (m *MockRepository) CountByStatus(_ context.Context, owner string) (*StatusCounts, error) {
	counts := &StatusCounts{
		Receipts:     make(map[MatchStatus]int),
		Transactions: make(map[MatchStatus]int),
		Groups:       make(map[MatchStatus]int),
		Matches:      make(map[MatchState]int),
	}
	for _, r := range m.receipts {
		if r.Owner == owner {
			counts.Receipts[r.MatchStatus]++
		}
	}
	for _, tx := range m.transactions {
		if tx.Owner == owner && tx.GroupID == nil {
			counts.Transactions[tx.MatchStatus]++
		}
	}
	for _, g := range m.groups {
		if g.Owner == owner {
			counts.Groups[g.MatchStatus]++
		}
	}
	for _, match := range m.matches {
		if match.Owner == owner {
			counts.Matches[match.Status]++
		}
	}
	return counts, nil
}
