package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/receiptwise/receiptmatch-backend/pkg/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same statement
// methods serve the root repository and transactional views.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Storage provides SQLite database access for matching records.
// It implements the Repository interface.
type Storage struct {
	db   *sql.DB
	q    querier
	inTx bool
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection, so the pool must not
	// grow past one or later connections see an empty schema.
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Wait instead of failing when the single writer is busy
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Storage{db: db, q: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// WithinTx runs fn against a transaction-bound view. A view that is already
// transactional just reuses its transaction.
func (s *Storage) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeTxFailed, "beginning transaction")
	}

	view := &Storage{db: s.db, q: tx, inTx: true}
	if err := fn(view); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeTxFailed, "committing transaction")
	}
	return nil
}

// --- receipts ---

func (s *Storage) CreateReceipt(ctx context.Context, receipt *Receipt) error {
	if receipt.MatchStatus == "" {
		receipt.MatchStatus = StatusUnmatched
	}
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO receipts
	(id, owner, amount_extracted, date_extracted, vendor_extracted, match_status, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID.String(),
		receipt.Owner,
		nullableFloat(receipt.AmountExtracted),
		nullableTime(receipt.DateExtracted),
		receipt.VendorExtracted,
		string(receipt.MatchStatus),
		receipt.UploadedAt,
	)
	return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "inserting receipt")
}

func (s *Storage) GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	row := s.q.QueryRowContext(ctx, `
	SELECT id, owner, amount_extracted, date_extracted, vendor_extracted, match_status, uploaded_at
	FROM receipts WHERE id = ?`, id.String())

	receipt, err := scanReceipt(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(apperrors.CodeReceiptNotFound,
			fmt.Sprintf("receipt %s not found", id))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "loading receipt")
	}
	return receipt, nil
}

func (s *Storage) ListUnmatchedReceipts(ctx context.Context, owner string) ([]*Receipt, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT id, owner, amount_extracted, date_extracted, vendor_extracted, match_status, uploaded_at
	FROM receipts
	WHERE owner = ? AND match_status = ?
	ORDER BY uploaded_at ASC`, owner, string(StatusUnmatched))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing unmatched receipts")
	}
	defer rows.Close()

	var receipts []*Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning receipt")
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

func (s *Storage) ListOwnersWithUnmatchedReceipts(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT DISTINCT owner FROM receipts WHERE match_status = ? ORDER BY owner`,
		string(StatusUnmatched))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing owners")
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning owner")
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (s *Storage) UpdateReceiptStatus(ctx context.Context, id uuid.UUID, from, to MatchStatus) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE receipts SET match_status = ? WHERE id = ? AND match_status = ?`,
		string(to), id.String(), string(from))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "updating receipt status")
	}
	return s.checkGuard(ctx, result, "receipts", id,
		apperrors.NewNotFound(apperrors.CodeReceiptNotFound, fmt.Sprintf("receipt %s not found", id)))
}

// --- transactions ---

func (s *Storage) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if tx.MatchStatus == "" {
		tx.MatchStatus = StatusUnmatched
	}
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO transactions
	(id, owner, amount, transaction_date, description, group_id, match_status, imported_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(),
		tx.Owner,
		tx.Amount,
		tx.TransactionDate,
		tx.Description,
		nullableUUID(tx.GroupID),
		string(tx.MatchStatus),
		tx.ImportedAt,
	)
	return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "inserting transaction")
}

func (s *Storage) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	row := s.q.QueryRowContext(ctx, `
	SELECT id, owner, amount, transaction_date, description, group_id, match_status, imported_at
	FROM transactions WHERE id = ?`, id.String())

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(apperrors.CodeTransactionNotFound,
			fmt.Sprintf("transaction %s not found", id))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "loading transaction")
	}
	return tx, nil
}

func (s *Storage) FindCandidateTransactions(ctx context.Context, owner string, window CandidateWindow) ([]*Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT id, owner, amount, transaction_date, description, group_id, match_status, imported_at
	FROM transactions
	WHERE owner = ?
	  AND match_status = ?
	  AND group_id IS NULL
	  AND amount BETWEEN ? AND ?
	  AND transaction_date BETWEEN ? AND ?
	ORDER BY transaction_date ASC`,
		owner, string(StatusUnmatched),
		window.AmountMin, window.AmountMax,
		window.DateFrom, window.DateTo,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "finding candidate transactions")
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning transaction")
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *Storage) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, from, to MatchStatus) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE transactions SET match_status = ? WHERE id = ? AND match_status = ?`,
		string(to), id.String(), string(from))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "updating transaction status")
	}
	return s.checkGuard(ctx, result, "transactions", id,
		apperrors.NewNotFound(apperrors.CodeTransactionNotFound, fmt.Sprintf("transaction %s not found", id)))
}

// --- groups ---

func (s *Storage) CreateGroup(ctx context.Context, group *TransactionGroup) error {
	if group.MatchStatus == "" {
		group.MatchStatus = StatusUnmatched
	}
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO transaction_groups
	(id, owner, display_name, combined_amount, display_date, transaction_count,
	 match_status, matched_receipt_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID.String(),
		group.Owner,
		group.DisplayName,
		group.CombinedAmount,
		group.DisplayDate,
		group.TransactionCount,
		string(group.MatchStatus),
		nullableUUID(group.MatchedReceiptID),
		group.CreatedAt,
	)
	return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "inserting group")
}

func (s *Storage) GetGroup(ctx context.Context, id uuid.UUID) (*TransactionGroup, error) {
	row := s.q.QueryRowContext(ctx, `
	SELECT id, owner, display_name, combined_amount, display_date, transaction_count,
	       match_status, matched_receipt_id, created_at
	FROM transaction_groups WHERE id = ?`, id.String())

	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(apperrors.CodeGroupNotFound,
			fmt.Sprintf("transaction group %s not found", id))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "loading group")
	}
	return group, nil
}

func (s *Storage) FindCandidateGroups(ctx context.Context, owner string, window CandidateWindow) ([]*TransactionGroup, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT id, owner, display_name, combined_amount, display_date, transaction_count,
	       match_status, matched_receipt_id, created_at
	FROM transaction_groups
	WHERE owner = ?
	  AND match_status = ?
	  AND combined_amount BETWEEN ? AND ?
	  AND display_date BETWEEN ? AND ?
	ORDER BY display_date ASC`,
		owner, string(StatusUnmatched),
		window.AmountMin, window.AmountMax,
		window.DateFrom, window.DateTo,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "finding candidate groups")
	}
	defer rows.Close()

	var groups []*TransactionGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning group")
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

func (s *Storage) UpdateGroupStatus(ctx context.Context, id uuid.UUID, from, to MatchStatus, matchedReceiptID *uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `
	UPDATE transaction_groups
	SET match_status = ?, matched_receipt_id = ?
	WHERE id = ? AND match_status = ?`,
		string(to), nullableUUID(matchedReceiptID), id.String(), string(from))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "updating group status")
	}
	return s.checkGuard(ctx, result, "transaction_groups", id,
		apperrors.NewNotFound(apperrors.CodeGroupNotFound, fmt.Sprintf("transaction group %s not found", id)))
}

// --- matches ---

func (s *Storage) CreateMatch(ctx context.Context, match *Match) error {
	if err := match.Validate(); err != nil {
		return err
	}
	_, err := s.q.ExecContext(ctx, `
	INSERT INTO matches
	(id, owner, receipt_id, transaction_id, transaction_group_id, status,
	 amount_score, date_score, vendor_score, confidence_score, match_reason,
	 is_manual_match, confirmed_at, confirmed_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.ID.String(),
		match.Owner,
		match.ReceiptID.String(),
		nullableUUID(match.TransactionID),
		nullableUUID(match.TransactionGroupID),
		string(match.Status),
		match.AmountScore,
		match.DateScore,
		match.VendorScore,
		match.ConfidenceScore,
		match.MatchReason,
		match.IsManualMatch,
		nullableTime(match.ConfirmedAt),
		nullableString(match.ConfirmedBy),
		match.CreatedAt,
	)
	return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "inserting match")
}

func (s *Storage) GetMatch(ctx context.Context, id uuid.UUID) (*Match, error) {
	row := s.q.QueryRowContext(ctx, matchSelect+` WHERE id = ?`, id.String())

	match, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(apperrors.CodeMatchNotFound,
			fmt.Sprintf("match %s not found", id))
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "loading match")
	}
	return match, nil
}

const matchSelect = `
	SELECT id, owner, receipt_id, transaction_id, transaction_group_id, status,
	       amount_score, date_score, vendor_score, confidence_score, match_reason,
	       is_manual_match, confirmed_at, confirmed_by, created_at
	FROM matches`

func (s *Storage) ListMatches(ctx context.Context, filters MatchFilters) ([]*Match, error) {
	query := matchSelect + ` WHERE 1=1`
	var args []interface{}

	if filters.Owner != "" {
		query += ` AND owner = ?`
		args = append(args, filters.Owner)
	}
	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filters.Status))
	}
	if filters.MinConfidence > 0 {
		query += ` AND confidence_score >= ?`
		args = append(args, filters.MinConfidence)
	}
	query += ` ORDER BY confidence_score DESC, created_at DESC`
	if filters.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filters.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing matches")
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning match")
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (s *Storage) MarkMatchConfirmed(ctx context.Context, id uuid.UUID, confirmedBy string, at time.Time) error {
	result, err := s.q.ExecContext(ctx, `
	UPDATE matches SET status = ?, confirmed_at = ?, confirmed_by = ?
	WHERE id = ? AND status = ?`,
		string(MatchConfirmed), at, confirmedBy, id.String(), string(MatchProposed))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "confirming match")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "confirming match")
	}
	if affected > 0 {
		return nil
	}

	if !s.rowExists(ctx, "matches", id) {
		return apperrors.NewNotFound(apperrors.CodeMatchNotFound, fmt.Sprintf("match %s not found", id))
	}
	return apperrors.NewInvalidState(apperrors.CodeMatchNotProposed,
		fmt.Sprintf("match %s is not in proposed state", id))
}

func (s *Storage) MarkMatchRejected(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `
	UPDATE matches SET status = ?
	WHERE id = ? AND status IN (?, ?)`,
		string(MatchRejected), id.String(), string(MatchProposed), string(MatchConfirmed))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "rejecting match")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "rejecting match")
	}
	if affected > 0 {
		return nil
	}

	if !s.rowExists(ctx, "matches", id) {
		return apperrors.NewNotFound(apperrors.CodeMatchNotFound, fmt.Sprintf("match %s not found", id))
	}
	return apperrors.NewInvalidState(apperrors.CodeMatchNotRevocable,
		fmt.Sprintf("match %s is already rejected", id))
}

func (s *Storage) CountByStatus(ctx context.Context, owner string) (*StatusCounts, error) {
	counts := &StatusCounts{
		Receipts:     make(map[MatchStatus]int),
		Transactions: make(map[MatchStatus]int),
		Groups:       make(map[MatchStatus]int),
		Matches:      make(map[MatchState]int),
	}

	statusTables := []struct {
		query string
		dest  map[MatchStatus]int
	}{
		{`SELECT match_status, COUNT(*) FROM receipts WHERE owner = ? GROUP BY match_status`, counts.Receipts},
		{`SELECT match_status, COUNT(*) FROM transactions WHERE owner = ? AND group_id IS NULL GROUP BY match_status`, counts.Transactions},
		{`SELECT match_status, COUNT(*) FROM transaction_groups WHERE owner = ? GROUP BY match_status`, counts.Groups},
	}
	for _, st := range statusTables {
		if err := s.countInto(ctx, st.query, owner, st.dest); err != nil {
			return nil, err
		}
	}

	matchRows, err := s.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM matches WHERE owner = ? GROUP BY status`, owner)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "counting matches")
	}
	defer matchRows.Close()
	for matchRows.Next() {
		var status string
		var count int
		if err := matchRows.Scan(&status, &count); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning match counts")
		}
		counts.Matches[MatchState(status)] = count
	}
	return counts, matchRows.Err()
}

func (s *Storage) countInto(ctx context.Context, query, owner string, dest map[MatchStatus]int) error {
	rows, err := s.q.QueryContext(ctx, query, owner)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "counting rows by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "scanning status counts")
		}
		dest[MatchStatus(status)] = count
	}
	return rows.Err()
}

// --- helpers ---

// checkGuard turns a zero-row guarded update into not-found (row missing) or
// conflict (row present but in an unexpected status, i.e. a lost race).
func (s *Storage) checkGuard(ctx context.Context, result sql.Result, table string, id uuid.UUID, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "checking update result")
	}
	if affected > 0 {
		return nil
	}
	if !s.rowExists(ctx, table, id) {
		return notFound
	}
	return apperrors.NewConflict(apperrors.CodeStaleStatus,
		fmt.Sprintf("%s row %s changed status concurrently", table, id))
}

func (s *Storage) rowExists(ctx context.Context, table string, id uuid.UUID) bool {
	var one int
	err := s.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id.String()).Scan(&one)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReceipt(row rowScanner) (*Receipt, error) {
	var r Receipt
	var id string
	var amount sql.NullFloat64
	var date sql.NullTime
	var status string

	if err := row.Scan(&id, &r.Owner, &amount, &date, &r.VendorExtracted, &status, &r.UploadedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	r.ID = parsed
	r.MatchStatus = MatchStatus(status)
	if amount.Valid {
		r.AmountExtracted = &amount.Float64
	}
	if date.Valid {
		d := date.Time
		r.DateExtracted = &d
	}
	return &r, nil
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	var id string
	var groupID sql.NullString
	var status string

	if err := row.Scan(&id, &t.Owner, &t.Amount, &t.TransactionDate, &t.Description,
		&groupID, &status, &t.ImportedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	t.ID = parsed
	t.MatchStatus = MatchStatus(status)
	if groupID.Valid {
		gid, err := uuid.Parse(groupID.String)
		if err != nil {
			return nil, err
		}
		t.GroupID = &gid
	}
	return &t, nil
}

func scanGroup(row rowScanner) (*TransactionGroup, error) {
	var g TransactionGroup
	var id string
	var matchedReceiptID sql.NullString
	var status string

	if err := row.Scan(&id, &g.Owner, &g.DisplayName, &g.CombinedAmount, &g.DisplayDate,
		&g.TransactionCount, &status, &matchedReceiptID, &g.CreatedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	g.ID = parsed
	g.MatchStatus = MatchStatus(status)
	if matchedReceiptID.Valid {
		rid, err := uuid.Parse(matchedReceiptID.String)
		if err != nil {
			return nil, err
		}
		g.MatchedReceiptID = &rid
	}
	return &g, nil
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	var id, receiptID string
	var txID, groupID, confirmedBy sql.NullString
	var confirmedAt sql.NullTime
	var status string

	if err := row.Scan(&id, &m.Owner, &receiptID, &txID, &groupID, &status,
		&m.AmountScore, &m.DateScore, &m.VendorScore, &m.ConfidenceScore, &m.MatchReason,
		&m.IsManualMatch, &confirmedAt, &confirmedBy, &m.CreatedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	m.ID = parsed
	m.Status = MatchState(status)

	rid, err := uuid.Parse(receiptID)
	if err != nil {
		return nil, err
	}
	m.ReceiptID = rid

	if txID.Valid {
		tid, err := uuid.Parse(txID.String)
		if err != nil {
			return nil, err
		}
		m.TransactionID = &tid
	}
	if groupID.Valid {
		gid, err := uuid.Parse(groupID.String)
		if err != nil {
			return nil, err
		}
		m.TransactionGroupID = &gid
	}
	if confirmedAt.Valid {
		at := confirmedAt.Time
		m.ConfirmedAt = &at
	}
	if confirmedBy.Valid {
		by := confirmedBy.String
		m.ConfirmedBy = &by
	}
	return &m, nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}
