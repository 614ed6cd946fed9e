package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

var testDay = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

func newManager(repo storage.Repository) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(repo, matching.DefaultConfig(), logger)
}

type fixture struct {
	repo    *storage.MockRepository
	receipt *storage.Receipt
	tx      *storage.Transaction
	group   *storage.TransactionGroup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := storage.NewMockRepository()

	amount := 42.50
	date := testDay
	f := &fixture{
		repo: repo,
		receipt: &storage.Receipt{
			ID:              uuid.New(),
			Owner:           "user-1",
			AmountExtracted: &amount,
			DateExtracted:   &date,
			VendorExtracted: "TWILIO",
			MatchStatus:     storage.StatusUnmatched,
			UploadedAt:      time.Now().UTC(),
		},
		tx: &storage.Transaction{
			ID:              uuid.New(),
			Owner:           "user-1",
			Amount:          42.50,
			TransactionDate: testDay,
			Description:     "TWILIO",
			MatchStatus:     storage.StatusUnmatched,
			ImportedAt:      time.Now().UTC(),
		},
		group: &storage.TransactionGroup{
			ID:               uuid.New(),
			Owner:            "user-1",
			DisplayName:      "TWILIO",
			CombinedAmount:   42.50,
			DisplayDate:      testDay,
			TransactionCount: 2,
			MatchStatus:      storage.StatusUnmatched,
			CreatedAt:        time.Now().UTC(),
		},
	}
	require.NoError(t, repo.CreateReceipt(ctx, f.receipt))
	require.NoError(t, repo.CreateTransaction(ctx, f.tx))
	require.NoError(t, repo.CreateGroup(ctx, f.group))
	return f
}

// proposeTransaction puts the fixture into the post-proposal state.
func (f *fixture) proposeTransaction(t *testing.T) *storage.Match {
	t.Helper()
	ctx := context.Background()
	match := storage.NewMatch("user-1", f.receipt.ID, matching.TransactionTarget(f.tx.ID),
		matching.Score{Amount: 50, Date: 30, Vendor: 20, Confidence: 100, Reason: "exact match"}, false)
	require.NoError(t, f.repo.CreateMatch(ctx, match))
	require.NoError(t, f.repo.UpdateReceiptStatus(ctx, f.receipt.ID, storage.StatusUnmatched, storage.StatusProposed))
	require.NoError(t, f.repo.UpdateTransactionStatus(ctx, f.tx.ID, storage.StatusUnmatched, storage.StatusProposed))
	return match
}

func (f *fixture) proposeGroup(t *testing.T) *storage.Match {
	t.Helper()
	ctx := context.Background()
	match := storage.NewMatch("user-1", f.receipt.ID, matching.GroupTarget(f.group.ID),
		matching.Score{Amount: 50, Date: 30, Confidence: 80, Reason: "group match"}, false)
	require.NoError(t, f.repo.CreateMatch(ctx, match))
	require.NoError(t, f.repo.UpdateReceiptStatus(ctx, f.receipt.ID, storage.StatusUnmatched, storage.StatusProposed))
	require.NoError(t, f.repo.UpdateGroupStatus(ctx, f.group.ID, storage.StatusUnmatched, storage.StatusProposed, nil))
	return match
}

func TestConfirmMatch(t *testing.T) {
	f := newFixture(t)
	match := f.proposeTransaction(t)
	ctx := context.Background()

	confirmed, err := newManager(f.repo).ConfirmMatch(ctx, match.ID, "reviewer@example.com")
	require.NoError(t, err)

	assert.Equal(t, storage.MatchConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedBy)
	assert.Equal(t, "reviewer@example.com", *confirmed.ConfirmedBy)
	require.NotNil(t, confirmed.ConfirmedAt)

	receipt, err := f.repo.GetReceipt(ctx, f.receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusMatched, receipt.MatchStatus)

	tx, err := f.repo.GetTransaction(ctx, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusMatched, tx.MatchStatus)
}

func TestConfirmMatch_GroupRecordsReceipt(t *testing.T) {
	f := newFixture(t)
	match := f.proposeGroup(t)
	ctx := context.Background()

	_, err := newManager(f.repo).ConfirmMatch(ctx, match.ID, "reviewer@example.com")
	require.NoError(t, err)

	group, err := f.repo.GetGroup(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusMatched, group.MatchStatus)
	require.NotNil(t, group.MatchedReceiptID)
	assert.Equal(t, f.receipt.ID, *group.MatchedReceiptID)
}

func TestConfirmMatch_AlreadyConfirmed(t *testing.T) {
	f := newFixture(t)
	match := f.proposeTransaction(t)
	ctx := context.Background()
	manager := newManager(f.repo)

	_, err := manager.ConfirmMatch(ctx, match.ID, "first")
	require.NoError(t, err)

	_, err = manager.ConfirmMatch(ctx, match.ID, "second")
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestConfirmMatch_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := newManager(f.repo).ConfirmMatch(context.Background(), uuid.New(), "reviewer")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRejectMatch_Proposed(t *testing.T) {
	f := newFixture(t)
	match := f.proposeTransaction(t)
	ctx := context.Background()

	rejected, err := newManager(f.repo).RejectMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.MatchRejected, rejected.Status)

	receipt, err := f.repo.GetReceipt(ctx, f.receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusUnmatched, receipt.MatchStatus)

	tx, err := f.repo.GetTransaction(ctx, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusUnmatched, tx.MatchStatus)
}

func TestRejectMatch_ConfirmedGroupReleasesReceipt(t *testing.T) {
	f := newFixture(t)
	match := f.proposeGroup(t)
	ctx := context.Background()
	manager := newManager(f.repo)

	_, err := manager.ConfirmMatch(ctx, match.ID, "reviewer")
	require.NoError(t, err)

	_, err = manager.RejectMatch(ctx, match.ID)
	require.NoError(t, err)

	group, err := f.repo.GetGroup(ctx, f.group.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusUnmatched, group.MatchStatus)
	assert.Nil(t, group.MatchedReceiptID)

	receipt, err := f.repo.GetReceipt(ctx, f.receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusUnmatched, receipt.MatchStatus)
}

func TestRejectMatch_RejectedIsTerminal(t *testing.T) {
	f := newFixture(t)
	match := f.proposeTransaction(t)
	ctx := context.Background()
	manager := newManager(f.repo)

	_, err := manager.RejectMatch(ctx, match.ID)
	require.NoError(t, err)

	_, err = manager.RejectMatch(ctx, match.ID)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestCreateManualMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := newManager(f.repo).CreateManualMatch(ctx, f.receipt.ID,
		matching.TransactionTarget(f.tx.ID), "reviewer@example.com")
	require.NoError(t, err)

	assert.True(t, created.IsManualMatch)
	assert.Equal(t, storage.MatchConfirmed, created.Status)
	require.NotNil(t, created.ConfirmedBy)
	assert.Equal(t, "reviewer@example.com", *created.ConfirmedBy)
	// Exact amount, same day, identical vendor: the scorer should agree.
	assert.Equal(t, 100.0, created.ConfidenceScore)

	receipt, err := f.repo.GetReceipt(ctx, f.receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusMatched, receipt.MatchStatus)

	tx, err := f.repo.GetTransaction(ctx, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusMatched, tx.MatchStatus)
}

func TestCreateManualMatch_ScoresHonestly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// An unmatched transaction that looks nothing like the receipt.
	stranger := &storage.Transaction{
		ID:              uuid.New(),
		Owner:           "user-1",
		Amount:          999.99,
		TransactionDate: testDay.AddDate(0, 0, 45),
		Description:     "ACME LUMBER",
		MatchStatus:     storage.StatusUnmatched,
		ImportedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.repo.CreateTransaction(ctx, stranger))

	created, err := newManager(f.repo).CreateManualMatch(ctx, f.receipt.ID,
		matching.TransactionTarget(stranger.ID), "reviewer")
	require.NoError(t, err)
	assert.Equal(t, 0.0, created.ConfidenceScore)
	assert.Equal(t, storage.MatchConfirmed, created.Status)
}

func TestCreateManualMatch_ReceiptAlreadyTaken(t *testing.T) {
	f := newFixture(t)
	f.proposeTransaction(t)

	_, err := newManager(f.repo).CreateManualMatch(context.Background(), f.receipt.ID,
		matching.GroupTarget(f.group.ID), "reviewer")
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, apperrors.CodeReceiptNotUnmatched, apperrors.CodeOf(err))
}

func TestCreateManualMatch_GroupedTransactionRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := &storage.Transaction{
		ID:              uuid.New(),
		Owner:           "user-1",
		Amount:          42.50,
		TransactionDate: testDay,
		Description:     "TWILIO",
		GroupID:         &f.group.ID,
		MatchStatus:     storage.StatusUnmatched,
		ImportedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.repo.CreateTransaction(ctx, member))

	_, err := newManager(f.repo).CreateManualMatch(ctx, f.receipt.ID,
		matching.TransactionTarget(member.ID), "reviewer")
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateManualMatch_ForeignOwnerTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := &storage.Transaction{
		ID:              uuid.New(),
		Owner:           "someone-else",
		Amount:          42.50,
		TransactionDate: testDay,
		Description:     "TWILIO",
		MatchStatus:     storage.StatusUnmatched,
		ImportedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.repo.CreateTransaction(ctx, foreign))

	_, err := newManager(f.repo).CreateManualMatch(ctx, f.receipt.ID,
		matching.TransactionTarget(foreign.ID), "reviewer")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBatchApprove(t *testing.T) {
	f := newFixture(t)
	first := f.proposeTransaction(t)
	ctx := context.Background()

	// Second receipt with a proposed group match at confidence 80.
	amount := 80.0
	date := testDay
	second := &storage.Receipt{
		ID:              uuid.New(),
		Owner:           "user-1",
		AmountExtracted: &amount,
		DateExtracted:   &date,
		MatchStatus:     storage.StatusUnmatched,
		UploadedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.repo.CreateReceipt(ctx, second))
	groupMatch := storage.NewMatch("user-1", second.ID, matching.GroupTarget(f.group.ID),
		matching.Score{Amount: 50, Date: 30, Confidence: 80}, false)
	require.NoError(t, f.repo.CreateMatch(ctx, groupMatch))
	require.NoError(t, f.repo.UpdateReceiptStatus(ctx, second.ID, storage.StatusUnmatched, storage.StatusProposed))
	require.NoError(t, f.repo.UpdateGroupStatus(ctx, f.group.ID, storage.StatusUnmatched, storage.StatusProposed, nil))

	mgr := newManager(f.repo)

	// A high floor only sweeps the confidence-100 proposal.
	result, err := mgr.BatchApprove(ctx, "user-1", 90, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Approved)
	assert.Equal(t, 0, result.Skipped)

	confirmed, err := f.repo.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.MatchConfirmed, confirmed.Status)

	stillProposed, err := f.repo.GetMatch(ctx, groupMatch.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.MatchProposed, stillProposed.Status)

	// Dropping the floor picks up the remaining proposal.
	result, err = mgr.BatchApprove(ctx, "user-1", 0, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Approved)
}

func TestBatchApprove_SkipsBrokenProposal(t *testing.T) {
	f := newFixture(t)
	match := f.proposeTransaction(t)
	ctx := context.Background()

	// Force the receipt out from under the proposal so confirming it
	// loses the guarded status update.
	require.NoError(t, f.repo.UpdateReceiptStatus(ctx, f.receipt.ID, storage.StatusProposed, storage.StatusUnmatched))

	result, err := newManager(f.repo).BatchApprove(ctx, "user-1", 0, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Approved)
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, result.Errors, match.ID)
}

func TestBatchApprove_RequiresOwner(t *testing.T) {
	f := newFixture(t)
	_, err := newManager(f.repo).BatchApprove(context.Background(), "", 0, "reviewer")
	assert.True(t, apperrors.IsValidation(err))
}
