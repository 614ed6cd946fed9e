// Package automatch discovers transaction and group candidates for
// receipts, scores them, and writes match proposals.
package automatch

import (
	"context"
	"log/slog"

	"github.com/receiptwise/receiptmatch-backend/internal/domain/matching"
	"github.com/receiptwise/receiptmatch-backend/internal/infrastructure/storage"
)

// CandidateFinder narrows the candidate pool with a coarse storage-level
// window before the scorer sees anything. The window is deliberately
// wider than the scoring tolerances so the scorer makes the final call.
type CandidateFinder struct {
	store  storage.Store
	config matching.Config
	logger *slog.Logger
}

// NewCandidateFinder creates a finder backed by the given store.
func NewCandidateFinder(store storage.Store, config matching.Config, logger *slog.Logger) *CandidateFinder {
	return &CandidateFinder{store: store, config: config, logger: logger}
}

// CandidateSet holds the raw candidates discovered for one receipt.
type CandidateSet struct {
	Transactions []*storage.Transaction
	Groups       []*storage.TransactionGroup
}

// Total returns the combined candidate count.
func (c CandidateSet) Total() int {
	return len(c.Transactions) + len(c.Groups)
}

// Find returns candidates for the receipt. A receipt without an
// extracted amount or date cannot be windowed and yields no candidates.
func (f *CandidateFinder) Find(ctx context.Context, receipt *storage.Receipt) (CandidateSet, error) {
	if receipt.AmountExtracted == nil || receipt.DateExtracted == nil {
		f.logger.Debug("receipt missing extracted fields, skipping discovery",
			"receipt_id", receipt.ID,
			"has_amount", receipt.AmountExtracted != nil,
			"has_date", receipt.DateExtracted != nil,
		)
		return CandidateSet{}, nil
	}

	window := f.windowFor(*receipt.AmountExtracted, receipt)

	transactions, err := f.store.FindCandidateTransactions(ctx, receipt.Owner, window)
	if err != nil {
		return CandidateSet{}, err
	}
	groups, err := f.store.FindCandidateGroups(ctx, receipt.Owner, window)
	if err != nil {
		return CandidateSet{}, err
	}

	return CandidateSet{Transactions: transactions, Groups: groups}, nil
}

// windowFor derives the amount and date bounds from the scoring config.
// The amount slack is the tolerance percentage, floored at a fixed
// minimum so small receipts still get a usable window. The date span
// uses the widest window any vendor class allows.
func (f *CandidateFinder) windowFor(amount float64, receipt *storage.Receipt) storage.CandidateWindow {
	slack := amount * f.config.AmountTolerancePercent / 100
	if slack < f.config.MinAmountWindow {
		slack = f.config.MinAmountWindow
	}

	days := f.config.MaxDateWindow()
	date := receipt.DateExtracted.UTC()

	return storage.CandidateWindow{
		AmountMin: amount - slack,
		AmountMax: amount + slack,
		DateFrom:  date.AddDate(0, 0, -days),
		DateTo:    date.AddDate(0, 0, days),
	}
}
