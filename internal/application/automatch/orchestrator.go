package automatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// DefaultReceiptTimeout bounds one receipt's candidate lookup, scoring
// and proposal write.
const DefaultReceiptTimeout = 5 * time.Second

// Options holds auto-match run configuration
type Options struct {
	MaxReceipts      int           // 0 means no cap
	ReceiptID        *uuid.UUID    // if set, only process this receipt
	ReceiptTimeout   time.Duration // 0 means DefaultReceiptTimeout
	ProgressCallback func(ProgressUpdate)
}

// ProgressUpdate is pushed to the callback after each receipt.
type ProgressUpdate struct {
	Phase             string
	TotalReceipts     int
	ProcessedReceipts int
	ProposedCount     int
	FailedCount       int
}

// Result holds auto-match run results
type Result struct {
	Owner              string
	Processed          int
	Proposed           int
	TransactionMatches int
	GroupMatches       int
	Ambiguous          int
	NoCandidates       int
	BelowThreshold     int
	Failed             int
	Duration           time.Duration
	Errors             []error
}

// Orchestrator runs the auto-match process for one owner at a time.
type Orchestrator struct {
	repo     storage.Repository
	finder   *CandidateFinder
	selector *ProposalSelector
	logger   *slog.Logger
}

// NewOrchestrator creates a new auto-match orchestrator
func NewOrchestrator(repo storage.Repository, config matching.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		finder:   NewCandidateFinder(repo, config, logger),
		selector: NewProposalSelector(config, logger),
		logger:   logger,
	}
}

// Run processes an owner's unmatched receipts sequentially. Cancellation
// is honored between receipts; a receipt already being written is
// finished or rolled back by its transaction, never left half-done.
// Per-receipt failures are recorded and the run continues.
func (o *Orchestrator) Run(ctx context.Context, owner string, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{Owner: owner}

	receipts, err := o.loadReceipts(ctx, owner, opts)
	if err != nil {
		return nil, err
	}

	o.logger.Info("auto-match run started", "owner", owner, "receipts", len(receipts))

	timeout := opts.ReceiptTimeout
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}

	for i, receipt := range receipts {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			o.logger.Info("auto-match run cancelled",
				"owner", owner,
				"processed", result.Processed,
				"remaining", len(receipts)-i,
			)
			return result, err
		}

		// A slow receipt fails on its own deadline without taking the
		// rest of the run down with it.
		receiptCtx, cancel := context.WithTimeout(ctx, timeout)
		o.processReceipt(receiptCtx, receipt, result)
		cancel()
		result.Processed++

		if opts.ProgressCallback != nil {
			opts.ProgressCallback(ProgressUpdate{
				Phase:             "processing_receipts",
				TotalReceipts:     len(receipts),
				ProcessedReceipts: result.Processed,
				ProposedCount:     result.Proposed,
				FailedCount:       result.Failed,
			})
		}
	}

	result.Duration = time.Since(start)
	o.logger.Info("auto-match run completed",
		"owner", owner,
		"processed", result.Processed,
		"proposed", result.Proposed,
		"ambiguous", result.Ambiguous,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}

// RunAll runs auto-match for every owner that has unmatched receipts.
func (o *Orchestrator) RunAll(ctx context.Context, opts Options) ([]*Result, error) {
	owners, err := o.repo.ListOwnersWithUnmatchedReceipts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(owners))
	for _, owner := range owners {
		result, err := o.Run(ctx, owner, opts)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (o *Orchestrator) loadReceipts(ctx context.Context, owner string, opts Options) ([]*storage.Receipt, error) {
	if opts.ReceiptID != nil {
		receipt, err := o.repo.GetReceipt(ctx, *opts.ReceiptID)
		if err != nil {
			return nil, err
		}
		if receipt.MatchStatus != storage.StatusUnmatched {
			return nil, nil
		}
		return []*storage.Receipt{receipt}, nil
	}

	receipts, err := o.repo.ListUnmatchedReceipts(ctx, owner)
	if err != nil {
		return nil, err
	}
	if opts.MaxReceipts > 0 && len(receipts) > opts.MaxReceipts {
		receipts = receipts[:opts.MaxReceipts]
	}
	return receipts, nil
}

// processReceipt attempts one proposal. A conflict means another writer
// consumed the receipt or the chosen target mid-flight; the attempt is
// retried once against fresh state before counting as failed.
func (o *Orchestrator) processReceipt(ctx context.Context, receipt *storage.Receipt, result *Result) {
	attempt := func() error {
		fresh, err := o.repo.GetReceipt(ctx, receipt.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if fresh.MatchStatus != storage.StatusUnmatched {
			// Consumed since listing, nothing to do.
			return nil
		}

		set, err := o.finder.Find(ctx, fresh)
		if err != nil {
			return backoff.Permanent(err)
		}
		if set.Total() == 0 {
			result.NoCandidates++
			return nil
		}

		sel, ok := o.selector.Select(fresh.Fields(), set)
		if !ok {
			result.BelowThreshold++
			return nil
		}

		match, err := o.selector.Propose(ctx, o.repo, fresh, sel)
		if err != nil {
			if apperrors.IsConflict(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		result.Proposed++
		if match.TransactionGroupID != nil {
			result.GroupMatches++
		} else {
			result.TransactionMatches++
		}
		if sel.Ambiguous {
			result.Ambiguous++
		}

		o.logger.Debug("proposal created",
			"receipt_id", fresh.ID,
			"match_id", match.ID,
			"target_kind", string(sel.Best.Candidate.Kind),
			"confidence", match.ConfidenceScore,
			"ambiguous", sel.Ambiguous,
		)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, err)
		o.logger.Warn("receipt failed to match", "receipt_id", receipt.ID, "error", err)
	}
}
