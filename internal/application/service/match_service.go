package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/receiptmatch-backend/internal/application/automatch"
	"github.com/receiptwise/receiptmatch-backend/internal/application/lifecycle"
	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// JobStatus represents the current state of an auto-match job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress
	// updates before being considered hung.
	DefaultJobStaleThreshold = 15 * time.Minute

	// DefaultJobMaxDuration caps a single job's runtime.
	DefaultJobMaxDuration = 1 * time.Hour
)

// allOwnersKey serializes all-owner runs against each other. Individual
// per-owner runs can still interleave with an all-owner run; the guarded
// updates keep that safe, just not efficient.
const allOwnersKey = "__all__"

// AutoMatchRequest holds parameters for starting an auto-match job.
type AutoMatchRequest struct {
	Owner       string     // ignored when AllOwners is set
	AllOwners   bool
	MaxReceipts int
	ReceiptID   *uuid.UUID
}

// JobProgress holds real-time progress information.
type JobProgress struct {
	CurrentPhase      string    `json:"current_phase"`
	TotalReceipts     int       `json:"total_receipts"`
	ProcessedReceipts int       `json:"processed_receipts"`
	ProposedCount     int       `json:"proposed_count"`
	FailedCount       int       `json:"failed_count"`
	LastUpdate        time.Time `json:"last_update"`
}

// AutoMatchJob represents a running or completed auto-match job.
type AutoMatchJob struct {
	ID          string
	Owner       string
	Status      JobStatus
	Request     AutoMatchRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    JobProgress
	Results     []*automatch.Result
	Error       error
	cancelFunc  context.CancelFunc
}

// MatchService fronts the matching engine: asynchronous auto-match jobs
// plus the synchronous candidate and lifecycle operations.
type MatchService struct {
	repo         storage.Repository
	orchestrator *automatch.Orchestrator
	lifecycle    *lifecycle.Manager
	finder       *automatch.CandidateFinder
	selector     *automatch.ProposalSelector
	logger       *slog.Logger

	// Job management
	jobs      map[string]*AutoMatchJob
	jobsMutex sync.RWMutex

	// Owner-level locking (only one auto-match per owner at a time)
	ownerLocks map[string]*sync.Mutex
	locksMutex sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewMatchService creates a new match service.
func NewMatchService(repo storage.Repository, config matching.Config, logger *slog.Logger) *MatchService {
	return &MatchService{
		repo:         repo,
		orchestrator: automatch.NewOrchestrator(repo, config, logger),
		lifecycle:    lifecycle.NewManager(repo, config, logger),
		finder:       automatch.NewCandidateFinder(repo, config, logger),
		selector:     automatch.NewProposalSelector(config, logger),
		logger:       logger,
		jobs:         make(map[string]*AutoMatchJob),
		ownerLocks:   make(map[string]*sync.Mutex),
	}
}

// StartAutoMatch starts a new auto-match job asynchronously.
// Note: The passed context is NOT used as the parent for the background job.
// Jobs run under context.Background() so they survive the HTTP request that
// started them. Use CancelJob() to cancel a running job.
func (s *MatchService) StartAutoMatch(_ context.Context, req AutoMatchRequest) (string, error) {
	lockKey := req.Owner
	if req.AllOwners {
		lockKey = allOwnersKey
	} else if req.Owner == "" {
		return "", apperrors.NewValidation(apperrors.CodeMissingField, "owner is required")
	}

	if !s.tryLockOwner(lockKey) {
		return "", apperrors.NewConflict(apperrors.CodeStaleStatus,
			fmt.Sprintf("auto-match already running for %s", lockKey))
	}

	jobID := s.generateJobID(lockKey)
	jobCtx, cancel := context.WithCancel(context.Background())

	job := &AutoMatchJob{
		ID:         jobID,
		Owner:      lockKey,
		Status:     StatusPending,
		Request:    req,
		StartedAt:  time.Now(),
		cancelFunc: cancel,
		Progress:   JobProgress{CurrentPhase: "pending", LastUpdate: time.Now()},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job, lockKey)

	s.logger.Info("auto-match job started",
		"job_id", jobID,
		"owner", lockKey,
		"all_owners", req.AllOwners,
	)
	return jobID, nil
}

// GetJob retrieves a job by ID.
func (s *MatchService) GetJob(jobID string) (*AutoMatchJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, apperrors.NewNotFound(apperrors.CodeJobNotFound,
			fmt.Sprintf("job not found: %s", jobID))
	}
	return job, nil
}

// ListActiveJobs returns all running or pending jobs.
func (s *MatchService) ListActiveJobs() []*AutoMatchJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	var active []*AutoMatchJob
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			active = append(active, job)
		}
	}
	return active
}

// ListAllJobs returns every known job, including finished ones.
func (s *MatchService) ListAllJobs() []*AutoMatchJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*AutoMatchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// CancelJob cancels a running auto-match job. The orchestrator notices
// between receipts; whatever receipt is mid-write finishes atomically.
func (s *MatchService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return apperrors.NewNotFound(apperrors.CodeJobNotFound,
			fmt.Sprintf("job not found: %s", jobID))
	}
	if job.Status != StatusPending && job.Status != StatusRunning {
		return apperrors.NewInvalidState(apperrors.CodeMatchNotRevocable,
			fmt.Sprintf("job cannot be cancelled: status=%s", job.Status))
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("auto-match job cancelled", "job_id", jobID)
	return nil
}

// runJob executes the auto-match job in a background goroutine. The
// goroutine is the sole owner of the lock it runs under: nothing else
// may release it, and the deferred unlock runs even when the run panics.
func (s *MatchService) runJob(ctx context.Context, job *AutoMatchJob, lockKey string) {
	defer s.unlockOwner(lockKey)
	defer func() {
		if r := recover(); r != nil {
			s.failJob(job.ID, fmt.Errorf("auto-match run panicked: %v", r))
		}
	}()

	s.updateJobStatus(job.ID, StatusRunning, JobProgress{
		CurrentPhase: "discovering_receipts",
		LastUpdate:   time.Now(),
	})

	opts := automatch.Options{
		MaxReceipts: job.Request.MaxReceipts,
		ReceiptID:   job.Request.ReceiptID,
		ProgressCallback: func(update automatch.ProgressUpdate) {
			s.updateJobProgress(job.ID, update)
		},
	}

	var results []*automatch.Result
	var err error
	if job.Request.AllOwners {
		results, err = s.orchestrator.RunAll(ctx, opts)
	} else {
		var result *automatch.Result
		result, err = s.orchestrator.Run(ctx, job.Request.Owner, opts)
		if result != nil {
			results = []*automatch.Result{result}
		}
	}

	if err != nil {
		if ctx.Err() == context.Canceled {
			// Already marked as cancelled in CancelJob; keep the
			// partial results for inspection.
			s.attachResults(job.ID, results)
			return
		}
		s.failJob(job.ID, err)
		return
	}

	s.completeJob(job.ID, results)
}

// GetCandidates scores every discoverable candidate for a receipt and
// returns them ranked by confidence.
func (s *MatchService) GetCandidates(ctx context.Context, receiptID uuid.UUID) ([]matching.ScoredCandidate, error) {
	receipt, err := s.repo.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	set, err := s.finder.Find(ctx, receipt)
	if err != nil {
		return nil, err
	}
	return s.selector.Rank(receipt.Fields(), set), nil
}

// ConfirmMatch promotes a proposed match.
func (s *MatchService) ConfirmMatch(ctx context.Context, matchID uuid.UUID, confirmedBy string) (*storage.Match, error) {
	return s.lifecycle.ConfirmMatch(ctx, matchID, confirmedBy)
}

// RejectMatch revokes a proposed or confirmed match.
func (s *MatchService) RejectMatch(ctx context.Context, matchID uuid.UUID) (*storage.Match, error) {
	return s.lifecycle.RejectMatch(ctx, matchID)
}

// CreateManualMatch links a receipt to a caller-chosen target.
func (s *MatchService) CreateManualMatch(ctx context.Context, receiptID uuid.UUID, target matching.MatchTarget, confirmedBy string) (*storage.Match, error) {
	return s.lifecycle.CreateManualMatch(ctx, receiptID, target, confirmedBy)
}

// BatchApprove confirms the owner's proposed matches at or above
// minConfidence.
func (s *MatchService) BatchApprove(ctx context.Context, owner string, minConfidence float64, confirmedBy string) (*lifecycle.BatchResult, error) {
	return s.lifecycle.BatchApprove(ctx, owner, minConfidence, confirmedBy)
}

// ListMatches returns matches for review, ordered by confidence.
func (s *MatchService) ListMatches(ctx context.Context, filters storage.MatchFilters) ([]*storage.Match, error) {
	return s.repo.ListMatches(ctx, filters)
}

// Stats returns per-status counts for an owner's dashboard.
func (s *MatchService) Stats(ctx context.Context, owner string) (*storage.StatusCounts, error) {
	return s.repo.CountByStatus(ctx, owner)
}

// updateJobStatus updates a job's status and progress.
func (s *MatchService) updateJobStatus(jobID string, status JobStatus, progress JobProgress) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.Status = status
		job.Progress = progress
	}
}

// updateJobProgress updates job progress from the orchestrator callback.
func (s *MatchService) updateJobProgress(jobID string, update automatch.ProgressUpdate) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.Progress.CurrentPhase = update.Phase
		job.Progress.TotalReceipts = update.TotalReceipts
		job.Progress.ProcessedReceipts = update.ProcessedReceipts
		job.Progress.ProposedCount = update.ProposedCount
		job.Progress.FailedCount = update.FailedCount
		job.Progress.LastUpdate = time.Now()
	}
}

// attachResults records partial results without changing job status.
func (s *MatchService) attachResults(jobID string, results []*automatch.Result) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		job.Results = results
	}
}

// completeJob marks a job as completed with results.
func (s *MatchService) completeJob(jobID string, results []*automatch.Result) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.Results = results

		processed, proposed, failed := 0, 0, 0
		for _, r := range results {
			processed += r.Processed
			proposed += r.Proposed
			failed += r.Failed
		}
		job.Progress.CurrentPhase = "completed"
		job.Progress.ProcessedReceipts = processed
		job.Progress.ProposedCount = proposed
		job.Progress.FailedCount = failed
		job.Progress.LastUpdate = now

		s.logger.Info("auto-match job completed",
			"job_id", jobID,
			"owners", len(results),
			"processed", processed,
			"proposed", proposed,
			"failed", failed,
		)
	}
}

// failJob marks a job as failed with an error.
func (s *MatchService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		now := time.Now()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.logger.Error("auto-match job failed", "job_id", jobID, "error", err)
	}
}

// tryLockOwner attempts to acquire the lock for an owner.
func (s *MatchService) tryLockOwner(owner string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.ownerLocks[owner]; !exists {
		s.ownerLocks[owner] = &sync.Mutex{}
	}
	return s.ownerLocks[owner].TryLock()
}

// unlockOwner releases the lock for an owner.
func (s *MatchService) unlockOwner(owner string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.ownerLocks[owner]; exists {
		lock.Unlock()
	}
}

// generateJobID creates a unique job ID.
func (s *MatchService) generateJobID(owner string) string {
	return fmt.Sprintf("%s-%d", owner, time.Now().UnixNano())
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (s *MatchService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old auto-match jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck, records them
// as failed and cancels their context. It never touches the owner lock:
// the job goroutine owns that and releases it on exit, so the owner stays
// busy until the cancelled run actually winds down. A StartAutoMatch in
// that window gets a Conflict rather than a second concurrent run.
func (s *MatchService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		var reason string
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v", maxDuration)
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for over %v", staleThreshold)
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"owner", job.Owner,
			"reason", reason,
		)
		marked++
	}
	return marked
}

// StartBackgroundCleanup starts a goroutine that periodically fails
// stale jobs and drops old finished ones. Call StopBackgroundCleanup
// during shutdown.
func (s *MatchService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started", "check_interval", checkInterval)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale jobs as failed", "count", marked)
				}
				if cleaned := s.CleanupOldJobs(24 * time.Hour); cleaned > 0 {
					s.logger.Debug("cleaned up old jobs", "count", cleaned)
				}
			}
		}
	}()
}

// StopBackgroundCleanup stops the cleanup goroutine and waits for it.
func (s *MatchService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}
