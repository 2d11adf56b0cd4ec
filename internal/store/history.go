package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/frd21313123123/auto-reg/pkg/types"
)

// Schema contains SQL schema definitions for the check history
const Schema = `
-- One row per batch run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    checked INTEGER NOT NULL,
    banned INTEGER NOT NULL,
    invalid_password INTEGER NOT NULL,
    skipped INTEGER NOT NULL,
    errors INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL
);

-- Per-account verdicts of each run
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    email TEXT NOT NULL,
    verdict TEXT NOT NULL,
    reason TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_email ON results(email);
`

// History is the SQLite-backed record of past batch runs.
type History struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewHistory opens (or creates) the history database.
func NewHistory(dbPath string, logger *logrus.Logger) (*History, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.WithField("path", dbPath).Info("Check history initialized")
	return &History{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// RecordRun persists a finished report with its per-account results.
func (h *History) RecordRun(report *types.Report) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		`INSERT INTO runs (id, checked, banned, invalid_password, skipped, errors, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Checked, report.Banned, report.InvalidPassword,
		report.Skipped, report.Errors, report.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO results (run_id, email, verdict, reason) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, res := range report.Results {
		if _, err := stmt.Exec(report.RunID, res.Email, string(res.Verdict), res.Reason); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", res.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"results": len(report.Results),
	}).Debug("Recorded batch run")
	return nil
}

// LastVerdicts returns the most recent verdict per email across all runs.
func (h *History) LastVerdicts() (map[string]types.Verdict, error) {
	rows, err := h.db.Query(`
		SELECT r.email, r.verdict
		FROM results r
		JOIN runs ON runs.id = r.run_id
		WHERE r.id IN (
			SELECT MAX(r2.id) FROM results r2 GROUP BY r2.email
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	verdicts := make(map[string]types.Verdict)
	for rows.Next() {
		var email, verdict string
		if err := rows.Scan(&email, &verdict); err != nil {
			return nil, fmt.Errorf("failed to scan verdict row: %w", err)
		}
		verdicts[email] = types.Verdict(verdict)
	}
	return verdicts, rows.Err()
}
