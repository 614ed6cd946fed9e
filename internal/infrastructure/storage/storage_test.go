package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedReceipt(t *testing.T, s Store, owner string, amount float64, date time.Time, vendor string) *Receipt {
	t.Helper()
	receipt := &Receipt{
		ID:              uuid.New(),
		Owner:           owner,
		AmountExtracted: &amount,
		DateExtracted:   &date,
		VendorExtracted: vendor,
		MatchStatus:     StatusUnmatched,
		UploadedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreateReceipt(context.Background(), receipt))
	return receipt
}

func seedTransaction(t *testing.T, s Store, owner string, amount float64, date time.Time, desc string, groupID *uuid.UUID) *Transaction {
	t.Helper()
	tx := &Transaction{
		ID:              uuid.New(),
		Owner:           owner,
		Amount:          amount,
		TransactionDate: date,
		Description:     desc,
		GroupID:         groupID,
		MatchStatus:     StatusUnmatched,
		ImportedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransaction(context.Background(), tx))
	return tx
}

func seedGroup(t *testing.T, s Store, owner string, amount float64, date time.Time, name string, count int) *TransactionGroup {
	t.Helper()
	group := &TransactionGroup{
		ID:               uuid.New(),
		Owner:            owner,
		DisplayName:      name,
		CombinedAmount:   amount,
		DisplayDate:      date,
		TransactionCount: count,
		MatchStatus:      StatusUnmatched,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.CreateGroup(context.Background(), group))
	return group
}

var testDay = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

func TestReceiptRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50.00, testDay, "TWILIO")

	loaded, err := s.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt.Owner, loaded.Owner)
	require.NotNil(t, loaded.AmountExtracted)
	assert.Equal(t, 50.00, *loaded.AmountExtracted)
	require.NotNil(t, loaded.DateExtracted)
	assert.True(t, loaded.DateExtracted.Equal(testDay))
	assert.Equal(t, StatusUnmatched, loaded.MatchStatus)
}

func TestGetReceipt_NotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetReceipt(context.Background(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestReceiptWithMissingExtraction(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := &Receipt{
		ID:         uuid.New(),
		Owner:      "user-1",
		UploadedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateReceipt(ctx, receipt))

	loaded, err := s.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.AmountExtracted)
	assert.Nil(t, loaded.DateExtracted)
}

func TestListUnmatchedReceipts_FiltersOwnerAndStatus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	mine := seedReceipt(t, s, "user-1", 10, testDay, "A")
	seedReceipt(t, s, "user-2", 10, testDay, "B")
	proposed := seedReceipt(t, s, "user-1", 10, testDay, "C")
	require.NoError(t, s.UpdateReceiptStatus(ctx, proposed.ID, StatusUnmatched, StatusProposed))

	receipts, err := s.ListUnmatchedReceipts(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, mine.ID, receipts[0].ID)
}

func TestListOwnersWithUnmatchedReceipts(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	seedReceipt(t, s, "beta", 10, testDay, "A")
	seedReceipt(t, s, "alpha", 10, testDay, "B")
	seedReceipt(t, s, "alpha", 10, testDay, "C")

	owners, err := s.ListOwnersWithUnmatchedReceipts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, owners)
}

func TestUpdateReceiptStatus_GuardMissIsConflict(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 10, testDay, "A")
	require.NoError(t, s.UpdateReceiptStatus(ctx, receipt.ID, StatusUnmatched, StatusProposed))

	err := s.UpdateReceiptStatus(ctx, receipt.ID, StatusUnmatched, StatusProposed)
	assert.True(t, apperrors.IsConflict(err))

	err = s.UpdateReceiptStatus(ctx, uuid.New(), StatusUnmatched, StatusProposed)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestFindCandidateTransactions_WindowAndExclusions(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	inside := seedTransaction(t, s, "user-1", 50.00, testDay, "TWILIO", nil)
	seedTransaction(t, s, "user-1", 500.00, testDay, "too expensive", nil)
	seedTransaction(t, s, "user-1", 50.00, testDay.AddDate(0, 0, 60), "too late", nil)
	seedTransaction(t, s, "user-2", 50.00, testDay, "other owner", nil)

	group := seedGroup(t, s, "user-1", 50.00, testDay, "GROUPED", 2)
	seedTransaction(t, s, "user-1", 50.00, testDay, "grouped member", &group.ID)

	matched := seedTransaction(t, s, "user-1", 50.00, testDay, "already proposed", nil)
	require.NoError(t, s.UpdateTransactionStatus(ctx, matched.ID, StatusUnmatched, StatusProposed))

	window := CandidateWindow{
		AmountMin: 45, AmountMax: 55,
		DateFrom: testDay.AddDate(0, 0, -14), DateTo: testDay.AddDate(0, 0, 14),
	}
	candidates, err := s.FindCandidateTransactions(ctx, "user-1", window)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, inside.ID, candidates[0].ID)
}

func TestFindCandidateTransactions_EmptyIsNotError(t *testing.T) {
	s := newTestStorage(t)

	candidates, err := s.FindCandidateTransactions(context.Background(), "nobody", CandidateWindow{
		AmountMin: 0, AmountMax: 100,
		DateFrom: testDay, DateTo: testDay,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidateGroups(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	inside := seedGroup(t, s, "user-1", 50.00, testDay, "TWILIO JAN", 3)
	seedGroup(t, s, "user-1", 900.00, testDay, "too big", 2)

	consumed := seedGroup(t, s, "user-1", 50.00, testDay, "consumed", 2)
	require.NoError(t, s.UpdateGroupStatus(ctx, consumed.ID, StatusUnmatched, StatusProposed, nil))

	window := CandidateWindow{
		AmountMin: 45, AmountMax: 55,
		DateFrom: testDay.AddDate(0, 0, -14), DateTo: testDay.AddDate(0, 0, 14),
	}
	groups, err := s.FindCandidateGroups(ctx, "user-1", window)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, inside.ID, groups[0].ID)
}

func TestUpdateGroupStatus_SetsAndClearsMatchedReceipt(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")
	group := seedGroup(t, s, "user-1", 50, testDay, "TWILIO JAN", 3)

	require.NoError(t, s.UpdateGroupStatus(ctx, group.ID, StatusUnmatched, StatusMatched, &receipt.ID))
	loaded, err := s.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, loaded.MatchStatus)
	require.NotNil(t, loaded.MatchedReceiptID)
	assert.Equal(t, receipt.ID, *loaded.MatchedReceiptID)

	require.NoError(t, s.UpdateGroupStatus(ctx, group.ID, StatusMatched, StatusUnmatched, nil))
	loaded, err = s.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, loaded.MatchStatus)
	assert.Nil(t, loaded.MatchedReceiptID)
}

func TestCreateMatch_EnforcesSingleTarget(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")
	tx := seedTransaction(t, s, "user-1", 50, testDay, "TWILIO", nil)
	group := seedGroup(t, s, "user-1", 50, testDay, "TWILIO JAN", 3)

	both := &Match{
		ID:                 uuid.New(),
		Owner:              "user-1",
		ReceiptID:          receipt.ID,
		TransactionID:      &tx.ID,
		TransactionGroupID: &group.ID,
		Status:             MatchProposed,
		CreatedAt:          time.Now().UTC(),
	}
	assert.True(t, apperrors.IsValidation(s.CreateMatch(ctx, both)))

	neither := &Match{
		ID:        uuid.New(),
		Owner:     "user-1",
		ReceiptID: receipt.ID,
		Status:    MatchProposed,
		CreatedAt: time.Now().UTC(),
	}
	assert.True(t, apperrors.IsValidation(s.CreateMatch(ctx, neither)))
}

func TestMatchLifecycleTransitions(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")
	tx := seedTransaction(t, s, "user-1", 50, testDay, "TWILIO", nil)

	match := NewMatch("user-1", receipt.ID, matching.TransactionTarget(tx.ID),
		matching.Score{Amount: 50, Date: 30, Vendor: 20, Confidence: 100, Reason: "exact"}, false)
	require.NoError(t, s.CreateMatch(ctx, match))

	confirmedAt := time.Now().UTC()
	require.NoError(t, s.MarkMatchConfirmed(ctx, match.ID, "reviewer@example.com", confirmedAt))

	loaded, err := s.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, MatchConfirmed, loaded.Status)
	require.NotNil(t, loaded.ConfirmedBy)
	assert.Equal(t, "reviewer@example.com", *loaded.ConfirmedBy)
	require.NotNil(t, loaded.ConfirmedAt)

	// Confirming twice is invalid-state, not conflict.
	err = s.MarkMatchConfirmed(ctx, match.ID, "again", time.Now().UTC())
	assert.True(t, apperrors.IsInvalidState(err))

	// Confirmed matches can still be rejected (unmatch-via-reject).
	require.NoError(t, s.MarkMatchRejected(ctx, match.ID))
	loaded, err = s.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, MatchRejected, loaded.Status)

	// Rejected is terminal.
	assert.True(t, apperrors.IsInvalidState(s.MarkMatchRejected(ctx, match.ID)))
	assert.True(t, apperrors.IsNotFound(s.MarkMatchRejected(ctx, uuid.New())))
}

func TestListMatches_OrderAndFilters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")
	low := seedTransaction(t, s, "user-1", 48, testDay, "LOW", nil)
	high := seedTransaction(t, s, "user-1", 50, testDay, "HIGH", nil)

	lowMatch := NewMatch("user-1", receipt.ID, matching.TransactionTarget(low.ID),
		matching.Score{Amount: 25, Confidence: 25}, false)
	highMatch := NewMatch("user-1", receipt.ID, matching.TransactionTarget(high.ID),
		matching.Score{Amount: 50, Date: 30, Confidence: 80}, false)
	require.NoError(t, s.CreateMatch(ctx, lowMatch))
	require.NoError(t, s.CreateMatch(ctx, highMatch))

	matches, err := s.ListMatches(ctx, MatchFilters{Owner: "user-1"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, highMatch.ID, matches[0].ID)

	strong, err := s.ListMatches(ctx, MatchFilters{Owner: "user-1", MinConfidence: 50})
	require.NoError(t, err)
	require.Len(t, strong, 1)
	assert.Equal(t, highMatch.ID, strong[0].ID)

	none, err := s.ListMatches(ctx, MatchFilters{Owner: "user-2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")

	err := s.WithinTx(ctx, func(store Store) error {
		if err := store.UpdateReceiptStatus(ctx, receipt.ID, StatusUnmatched, StatusProposed); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	loaded, err := s.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, loaded.MatchStatus, "rollback must undo the status flip")
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")
	tx := seedTransaction(t, s, "user-1", 50, testDay, "TWILIO", nil)

	err := s.WithinTx(ctx, func(store Store) error {
		if err := store.UpdateReceiptStatus(ctx, receipt.ID, StatusUnmatched, StatusProposed); err != nil {
			return err
		}
		return store.UpdateTransactionStatus(ctx, tx.ID, StatusUnmatched, StatusProposed)
	})
	require.NoError(t, err)

	loadedReceipt, err := s.GetReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	loadedTx, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProposed, loadedReceipt.MatchStatus)
	assert.Equal(t, StatusProposed, loadedTx.MatchStatus)
}

func TestCountByStatus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	receipt := seedReceipt(t, s, "user-1", 50, testDay, "TWILIO")
	seedReceipt(t, s, "user-1", 20, testDay, "UBER")
	tx := seedTransaction(t, s, "user-1", 50, testDay, "TWILIO", nil)

	match := NewMatch("user-1", receipt.ID, matching.TransactionTarget(tx.ID),
		matching.Score{Confidence: 80}, false)
	require.NoError(t, s.CreateMatch(ctx, match))
	require.NoError(t, s.UpdateReceiptStatus(ctx, receipt.ID, StatusUnmatched, StatusProposed))

	counts, err := s.CountByStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Receipts[StatusUnmatched])
	assert.Equal(t, 1, counts.Receipts[StatusProposed])
	assert.Equal(t, 1, counts.Transactions[StatusUnmatched])
	assert.Equal(t, 1, counts.Matches[MatchProposed])
}
