package service

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

func newTestService(repo storage.Repository) *MatchService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMatchService(repo, matching.DefaultConfig(), logger)
}

func seedPair(t *testing.T, repo *storage.MockRepository, owner string, amount float64) (*storage.Receipt, *storage.Transaction) {
	t.Helper()
	ctx := context.Background()
	date := testDay
	receipt := &storage.Receipt{
		ID:              uuid.New(),
		Owner:           owner,
		AmountExtracted: &amount,
		DateExtracted:   &date,
		VendorExtracted: "TWILIO",
		MatchStatus:     storage.StatusUnmatched,
		UploadedAt:      time.Now().UTC(),
	}
	tx := &storage.Transaction{
		ID:              uuid.New(),
		Owner:           owner,
		Amount:          amount,
		TransactionDate: testDay,
		Description:     "TWILIO",
		MatchStatus:     storage.StatusUnmatched,
		ImportedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.CreateReceipt(ctx, receipt))
	require.NoError(t, repo.CreateTransaction(ctx, tx))
	return receipt, tx
}

func waitForFinish(t *testing.T, svc *MatchService, jobID string) *AutoMatchJob {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := svc.GetJob(jobID)
		if err != nil {
			return false
		}
		return job.Status != StatusPending && job.Status != StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	job, err := svc.GetJob(jobID)
	require.NoError(t, err)
	return job
}

func TestStartAutoMatch_MissingOwner(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	_, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestStartAutoMatch_RunsToCompletion(t *testing.T) {
	repo := storage.NewMockRepository()
	seedPair(t, repo, "user-1", 42.50)
	svc := newTestService(repo)

	jobID, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	require.NoError(t, err)

	job := waitForFinish(t, svc, jobID)
	assert.Equal(t, StatusCompleted, job.Status)
	require.Len(t, job.Results, 1)
	assert.Equal(t, 1, job.Results[0].Proposed)
	assert.Equal(t, "completed", job.Progress.CurrentPhase)
	assert.NotNil(t, job.CompletedAt)
}

func TestStartAutoMatch_AllOwners(t *testing.T) {
	repo := storage.NewMockRepository()
	seedPair(t, repo, "alice", 10)
	seedPair(t, repo, "bob", 20)
	svc := newTestService(repo)

	jobID, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{AllOwners: true})
	require.NoError(t, err)

	job := waitForFinish(t, svc, jobID)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Len(t, job.Results, 2)
}

func TestStartAutoMatch_OwnerSerialization(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)

	// Hold the owner lock as a concurrent run would.
	require.True(t, svc.tryLockOwner("user-1"))
	defer svc.unlockOwner("user-1")

	_, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	assert.True(t, apperrors.IsConflict(err))
}

func TestStartAutoMatch_LockReleasedAfterRun(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)

	jobID, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	require.NoError(t, err)
	waitForFinish(t, svc, jobID)

	// A second run for the same owner must be possible once the first
	// finished.
	second, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	require.NoError(t, err)
	waitForFinish(t, svc, second)
}

func TestGetJob_NotFound(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	_, err := svc.GetJob("non-existent")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCancelJob_NotFound(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	err := svc.CancelJob("non-existent")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCancelJob_FinishedJob(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)

	jobID, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	require.NoError(t, err)
	waitForFinish(t, svc, jobID)

	err = svc.CancelJob(jobID)
	assert.True(t, apperrors.IsInvalidState(err))
}

func TestListJobs(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)

	assert.Empty(t, svc.ListActiveJobs())
	assert.Empty(t, svc.ListAllJobs())

	jobID, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	require.NoError(t, err)
	waitForFinish(t, svc, jobID)

	assert.Empty(t, svc.ListActiveJobs())
	assert.Len(t, svc.ListAllJobs(), 1)
}

func TestGetCandidates(t *testing.T) {
	repo := storage.NewMockRepository()
	receipt, tx := seedPair(t, repo, "user-1", 42.50)
	svc := newTestService(repo)

	candidates, err := svc.GetCandidates(context.Background(), receipt.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, tx.ID, candidates[0].Candidate.ID)
	assert.Equal(t, 100.0, candidates[0].Score.Confidence)
}

func TestGetCandidates_ReceiptNotFound(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	_, err := svc.GetCandidates(context.Background(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkStaleJobsAsFailed(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	stale := &AutoMatchJob{
		ID:        "stale-1",
		Owner:     "user-1",
		Status:    StatusRunning,
		StartedAt: time.Now().Add(-2 * time.Hour),
		Progress:  JobProgress{LastUpdate: time.Now().Add(-2 * time.Hour)},
	}
	healthy := &AutoMatchJob{
		ID:        "healthy-1",
		Owner:     "user-2",
		Status:    StatusRunning,
		StartedAt: time.Now(),
		Progress:  JobProgress{LastUpdate: time.Now()},
	}
	svc.jobs[stale.ID] = stale
	svc.jobs[healthy.ID] = healthy

	marked := svc.MarkStaleJobsAsFailed(15*time.Minute, time.Hour)
	assert.Equal(t, 1, marked)
	assert.Equal(t, StatusFailed, stale.Status)
	assert.Equal(t, StatusRunning, healthy.Status)
}

func TestMarkStaleJobsAsFailed_LockStaysWithJobGoroutine(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	// Stand in for a wedged job goroutine that still holds its owner lock.
	require.True(t, svc.tryLockOwner("user-1"))
	ctx, cancel := context.WithCancel(context.Background())
	past := time.Now().Add(-2 * time.Hour)
	svc.jobs["stuck-1"] = &AutoMatchJob{
		ID:         "stuck-1",
		Owner:      "user-1",
		Status:     StatusRunning,
		StartedAt:  past,
		Progress:   JobProgress{LastUpdate: past},
		cancelFunc: cancel,
	}

	marked := svc.MarkStaleJobsAsFailed(15*time.Minute, time.Hour)
	require.Equal(t, 1, marked)

	// Cleanup cancelled the run but left the lock with its goroutine, so
	// a new run for this owner is refused rather than started alongside
	// the old one.
	assert.Error(t, ctx.Err())
	_, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	assert.True(t, apperrors.IsConflict(err))

	// The goroutine's own deferred release frees the owner again, with no
	// double-unlock panic from the cleanup pass.
	svc.unlockOwner("user-1")
	jobID, err := svc.StartAutoMatch(context.Background(), AutoMatchRequest{Owner: "user-1"})
	require.NoError(t, err)
	waitForFinish(t, svc, jobID)
}

func TestCleanupOldJobs(t *testing.T) {
	svc := newTestService(storage.NewMockRepository())

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()
	svc.jobs["old"] = &AutoMatchJob{ID: "old", Status: StatusCompleted, CompletedAt: &old}
	svc.jobs["recent"] = &AutoMatchJob{ID: "recent", Status: StatusCompleted, CompletedAt: &recent}
	svc.jobs["running"] = &AutoMatchJob{ID: "running", Status: StatusRunning}

	removed := svc.CleanupOldJobs(24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.Len(t, svc.jobs, 2)
}

func TestJobStatusValues(t *testing.T) {
	assert.Equal(t, "pending", string(StatusPending))
	assert.Equal(t, "running", string(StatusRunning))
	assert.Equal(t, "completed", string(StatusCompleted))
	assert.Equal(t, "failed", string(StatusFailed))
	assert.Equal(t, "cancelled", string(StatusCancelled))
}
