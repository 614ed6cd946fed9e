package automatch

import (
	"context"
	"log/slog"
	"sort"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// ProposalSelector scores discovered candidates and picks at most one
// proposal per receipt.
type ProposalSelector struct {
	scorer *matching.Scorer
	config matching.Config
	logger *slog.Logger
}

// NewProposalSelector creates a selector using the given scoring config.
func NewProposalSelector(config matching.Config, logger *slog.Logger) *ProposalSelector {
	return &ProposalSelector{
		scorer: matching.NewScorer(config),
		config: config,
		logger: logger,
	}
}

// Selection is the outcome of scoring one receipt's candidate set.
type Selection struct {
	Best matching.ScoredCandidate
	// Ambiguous is set when the runner-up scored within the ambiguity
	// delta of the winner. The proposal still goes through but is
	// surfaced for manual review.
	Ambiguous bool
}

// Rank scores every candidate and returns them ordered by confidence
// descending. Zero-confidence candidates are dropped. Groups sort
// before individual transactions at equal confidence.
func (s *ProposalSelector) Rank(receipt matching.ReceiptFields, set CandidateSet) []matching.ScoredCandidate {
	scored := make([]matching.ScoredCandidate, 0, set.Total())

	for _, tx := range set.Transactions {
		c := tx.Candidate()
		result := s.scorer.Score(receipt, c)
		if result.Confidence > 0 {
			scored = append(scored, matching.ScoredCandidate{Candidate: c, Score: result})
		}
	}
	for _, g := range set.Groups {
		c := g.Candidate()
		result := s.scorer.Score(receipt, c)
		if result.Confidence > 0 {
			scored = append(scored, matching.ScoredCandidate{Candidate: c, Score: result})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score.Confidence != scored[j].Score.Confidence {
			return scored[i].Score.Confidence > scored[j].Score.Confidence
		}
		// A group subsumes its member transactions, so prefer it when
		// the evidence is otherwise equal.
		return scored[i].Candidate.Kind == matching.KindGroup &&
			scored[j].Candidate.Kind == matching.KindIndividual
	})
	return scored
}

// Select picks the proposal candidate for a receipt, if any qualifies.
// A candidate qualifies when its amount contributed to the score and
// the total confidence clears the proposal threshold.
func (s *ProposalSelector) Select(receipt matching.ReceiptFields, set CandidateSet) (*Selection, bool) {
	ranked := s.Rank(receipt, set)
	if len(ranked) == 0 {
		return nil, false
	}

	best := ranked[0]
	if best.Score.Amount <= 0 || best.Score.Confidence < s.config.MinProposalScore {
		return nil, false
	}

	sel := &Selection{Best: best}
	if len(ranked) > 1 {
		runnerUp := ranked[1]
		if best.Score.Confidence-runnerUp.Score.Confidence < s.config.AmbiguityDelta {
			sel.Ambiguous = true
			s.logger.Debug("ambiguous selection",
				"best_id", best.Candidate.ID,
				"best_confidence", best.Score.Confidence,
				"runner_up_id", runnerUp.Candidate.ID,
				"runner_up_confidence", runnerUp.Score.Confidence,
			)
		}
	}
	return sel, true
}

// Propose persists the selection as a proposed match. The match row,
// the receipt status, and the target status all change in one
// transaction; a guarded-update miss rolls the whole thing back.
func (s *ProposalSelector) Propose(ctx context.Context, repo storage.Repository, receipt *storage.Receipt, sel *Selection) (*storage.Match, error) {
	var target matching.MatchTarget
	switch sel.Best.Candidate.Kind {
	case matching.KindGroup:
		target = matching.GroupTarget(sel.Best.Candidate.ID)
	default:
		target = matching.TransactionTarget(sel.Best.Candidate.ID)
	}

	match := storage.NewMatch(receipt.Owner, receipt.ID, target, sel.Best.Score, false)

	err := repo.WithinTx(ctx, func(store storage.Store) error {
		if err := store.CreateMatch(ctx, match); err != nil {
			return err
		}
		if err := store.UpdateReceiptStatus(ctx, receipt.ID, storage.StatusUnmatched, storage.StatusProposed); err != nil {
			return err
		}
		if id, ok := target.TransactionID(); ok {
			return store.UpdateTransactionStatus(ctx, id, storage.StatusUnmatched, storage.StatusProposed)
		}
		groupID, _ := target.GroupID()
		return store.UpdateGroupStatus(ctx, groupID, storage.StatusUnmatched, storage.StatusProposed, nil)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}
