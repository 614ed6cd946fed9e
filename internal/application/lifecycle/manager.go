// Package lifecycle owns match state transitions: confirm, reject,
// manual creation, and batch approval. Every transition moves the match
// row, the receipt, and the target together in one transaction.
package lifecycle

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

// Manager executes match lifecycle transitions against the repository.
type Manager struct {
	repo   storage.Repository
	scorer *matching.Scorer
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(repo storage.Repository, config matching.Config, logger *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		scorer: matching.NewScorer(config),
		logger: logger,
		now:    time.Now,
	}
}

// ConfirmMatch promotes a proposed match. The receipt and the target
// both move from proposed to matched; groups additionally record which
// receipt consumed them.
func (m *Manager) ConfirmMatch(ctx context.Context, matchID uuid.UUID, confirmedBy string) (*storage.Match, error) {
	var confirmed *storage.Match

	err := m.withConflictRetry(ctx, func() error {
		return m.repo.WithinTx(ctx, func(store storage.Store) error {
			match, err := store.GetMatch(ctx, matchID)
			if err != nil {
				return err
			}
			if err := store.MarkMatchConfirmed(ctx, matchID, confirmedBy, m.now().UTC()); err != nil {
				return err
			}
			if err := store.UpdateReceiptStatus(ctx, match.ReceiptID, storage.StatusProposed, storage.StatusMatched); err != nil {
				return err
			}
			if err := m.moveTarget(ctx, store, match, storage.StatusProposed, storage.StatusMatched, &match.ReceiptID); err != nil {
				return err
			}
			confirmed, err = store.GetMatch(ctx, matchID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("match confirmed",
		"match_id", matchID,
		"receipt_id", confirmed.ReceiptID,
		"confirmed_by", confirmedBy,
	)
	return confirmed, nil
}

// RejectMatch revokes a proposed or confirmed match and releases the
// receipt and target back to the unmatched pool.
func (m *Manager) RejectMatch(ctx context.Context, matchID uuid.UUID) (*storage.Match, error) {
	var rejected *storage.Match

	err := m.withConflictRetry(ctx, func() error {
		return m.repo.WithinTx(ctx, func(store storage.Store) error {
			match, err := store.GetMatch(ctx, matchID)
			if err != nil {
				return err
			}

			// A proposed match holds its parties in "proposed";
			// a confirmed one holds them in "matched".
			from := storage.StatusProposed
			if match.Status == storage.MatchConfirmed {
				from = storage.StatusMatched
			}

			if err := store.MarkMatchRejected(ctx, matchID); err != nil {
				return err
			}
			if err := store.UpdateReceiptStatus(ctx, match.ReceiptID, from, storage.StatusUnmatched); err != nil {
				return err
			}
			if err := m.moveTarget(ctx, store, match, from, storage.StatusUnmatched, nil); err != nil {
				return err
			}
			rejected, err = store.GetMatch(ctx, matchID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("match rejected", "match_id", matchID, "receipt_id", rejected.ReceiptID)
	return rejected, nil
}

// CreateManualMatch links a receipt to a caller-chosen target. Manual
// matches skip the proposal stage and come out confirmed; the scorer
// still runs so the record carries an honest confidence.
func (m *Manager) CreateManualMatch(ctx context.Context, receiptID uuid.UUID, target matching.MatchTarget, confirmedBy string) (*storage.Match, error) {
	var created *storage.Match

	err := m.withConflictRetry(ctx, func() error {
		return m.repo.WithinTx(ctx, func(store storage.Store) error {
			receipt, err := store.GetReceipt(ctx, receiptID)
			if err != nil {
				return err
			}
			if receipt.MatchStatus != storage.StatusUnmatched {
				return apperrors.NewValidation(apperrors.CodeReceiptNotUnmatched,
					"receipt already has a proposed or confirmed match")
			}

			candidate, err := m.loadCandidate(ctx, store, receipt.Owner, target)
			if err != nil {
				return err
			}

			score := m.scorer.Score(receipt.Fields(), candidate)

			match := storage.NewMatch(receipt.Owner, receiptID, target, score, true)
			if err := store.CreateMatch(ctx, match); err != nil {
				return err
			}
			if err := store.MarkMatchConfirmed(ctx, match.ID, confirmedBy, m.now().UTC()); err != nil {
				return err
			}
			if err := store.UpdateReceiptStatus(ctx, receiptID, storage.StatusUnmatched, storage.StatusMatched); err != nil {
				return err
			}
			if err := m.moveTarget(ctx, store, match, storage.StatusUnmatched, storage.StatusMatched, &receiptID); err != nil {
				return err
			}
			created, err = store.GetMatch(ctx, match.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("manual match created",
		"match_id", created.ID,
		"receipt_id", receiptID,
		"confidence", created.ConfidenceScore,
		"confirmed_by", confirmedBy,
	)
	return created, nil
}

// BatchResult summarizes a batch approval.
type BatchResult struct {
	Approved int                  `json:"approved"`
	Skipped  int                  `json:"skipped"`
	Errors   map[uuid.UUID]string `json:"errors,omitempty"`
}

// BatchApprove confirms every proposed match for the owner at or above
// minConfidence. Each match is its own transaction; a match whose
// target was consumed in the meantime is skipped, not fatal.
func (m *Manager) BatchApprove(ctx context.Context, owner string, minConfidence float64, confirmedBy string) (*BatchResult, error) {
	if owner == "" {
		return nil, apperrors.NewValidation(apperrors.CodeMissingField, "owner is required")
	}

	proposed, err := m.repo.ListMatches(ctx, storage.MatchFilters{
		Owner:         owner,
		Status:        storage.MatchProposed,
		MinConfidence: minConfidence,
	})
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Errors: make(map[uuid.UUID]string)}
	for _, match := range proposed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := m.ConfirmMatch(ctx, match.ID, confirmedBy); err != nil {
			result.Skipped++
			result.Errors[match.ID] = err.Error()
			continue
		}
		result.Approved++
	}

	m.logger.Info("batch approval finished",
		"owner", owner,
		"min_confidence", minConfidence,
		"eligible", len(proposed),
		"approved", result.Approved,
		"skipped", result.Skipped,
	)
	return result, nil
}

// moveTarget applies a status transition to whichever side the match
// points at. matchedReceiptID is only meaningful for groups.
func (m *Manager) moveTarget(ctx context.Context, store storage.Store, match *storage.Match, from, to storage.MatchStatus, matchedReceiptID *uuid.UUID) error {
	if match.TransactionID != nil {
		return store.UpdateTransactionStatus(ctx, *match.TransactionID, from, to)
	}
	if match.TransactionGroupID != nil {
		return store.UpdateGroupStatus(ctx, *match.TransactionGroupID, from, to, matchedReceiptID)
	}
	return apperrors.New(apperrors.CategoryInternal, apperrors.CodeUnexpectedError,
		"stored match has no target")
}

// loadCandidate fetches the manual-match target, checking ownership and
// availability before any writes happen.
func (m *Manager) loadCandidate(ctx context.Context, store storage.Store, owner string, target matching.MatchTarget) (matching.Candidate, error) {
	if id, ok := target.TransactionID(); ok {
		tx, err := store.GetTransaction(ctx, id)
		if err != nil {
			return matching.Candidate{}, err
		}
		if tx.Owner != owner {
			return matching.Candidate{}, apperrors.NewNotFound(apperrors.CodeTransactionNotFound,
				"transaction not found for this owner")
		}
		if tx.GroupID != nil {
			return matching.Candidate{}, apperrors.NewValidation(apperrors.CodeTargetNotUnmatched,
				"transaction belongs to a group; match the group instead")
		}
		if tx.MatchStatus != storage.StatusUnmatched {
			return matching.Candidate{}, apperrors.NewValidation(apperrors.CodeTargetNotUnmatched,
				"transaction is already proposed or matched")
		}
		return tx.Candidate(), nil
	}

	groupID, _ := target.GroupID()
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return matching.Candidate{}, err
	}
	if group.Owner != owner {
		return matching.Candidate{}, apperrors.NewNotFound(apperrors.CodeGroupNotFound,
			"group not found for this owner")
	}
	if group.MatchStatus != storage.StatusUnmatched {
		return matching.Candidate{}, apperrors.NewValidation(apperrors.CodeTargetNotUnmatched,
			"group is already proposed or matched")
	}
	return group.Candidate(), nil
}

// withConflictRetry retries once when a guarded update lost a race.
// Anything else is permanent.
func (m *Manager) withConflictRetry(ctx context.Context, op func() error) error {
	attempt := func() error {
		err := op()
		if err != nil && !apperrors.IsConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	return backoff.Retry(attempt, policy)
}
