package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_matches_table",
		Up:      migration002AddMatchesTable,
	},
	{
		Version: 3,
		Name:    "add_candidate_indexes",
		Up:      migration003AddCandidateIndexes,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE receipts (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			amount_extracted REAL,
			date_extracted TIMESTAMP,
			vendor_extracted TEXT NOT NULL DEFAULT '',
			match_status TEXT NOT NULL DEFAULT 'unmatched',
			uploaded_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE transaction_groups (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			combined_amount REAL NOT NULL,
			display_date TIMESTAMP NOT NULL,
			transaction_count INTEGER NOT NULL,
			match_status TEXT NOT NULL DEFAULT 'unmatched',
			matched_receipt_id TEXT REFERENCES receipts(id),
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			amount REAL NOT NULL,
			transaction_date TIMESTAMP NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			group_id TEXT REFERENCES transaction_groups(id),
			match_status TEXT NOT NULL DEFAULT 'unmatched',
			imported_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddMatchesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE matches (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		receipt_id TEXT NOT NULL REFERENCES receipts(id),
		transaction_id TEXT REFERENCES transactions(id),
		transaction_group_id TEXT REFERENCES transaction_groups(id),
		status TEXT NOT NULL DEFAULT 'proposed',
		amount_score REAL NOT NULL DEFAULT 0,
		date_score REAL NOT NULL DEFAULT 0,
		vendor_score REAL NOT NULL DEFAULT 0,
		confidence_score REAL NOT NULL DEFAULT 0,
		match_reason TEXT NOT NULL DEFAULT '',
		is_manual_match INTEGER NOT NULL DEFAULT 0,
		confirmed_at TIMESTAMP,
		confirmed_by TEXT,
		created_at TIMESTAMP NOT NULL,
		CHECK ((transaction_id IS NULL) != (transaction_group_id IS NULL))
	)`)
	return err
}

func migration003AddCandidateIndexes(tx *sql.Tx) error {
	statements := []string{
		`CREATE INDEX idx_receipts_owner_status ON receipts(owner, match_status)`,
		`CREATE INDEX idx_transactions_candidates ON transactions(owner, match_status, amount, transaction_date)`,
		`CREATE INDEX idx_groups_candidates ON transaction_groups(owner, match_status, combined_amount, display_date)`,
		`CREATE INDEX idx_matches_owner_status ON matches(owner, status, confidence_score)`,
		`CREATE INDEX idx_matches_receipt ON matches(receipt_id, status)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
