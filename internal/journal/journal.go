// Package journal provides a SQLite-backed record of ingest decisions.
// It is write-only from the engine's point of view: nothing is ever read
// back into engine state, so the in-memory store stays the single source
// of truth.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dealerpulse/pulse/internal/engine"
	"github.com/dealerpulse/pulse/internal/logger"
	"github.com/dealerpulse/pulse/internal/models"
)

// Journal wraps a SQLite database recording admitted cards and drops.
type Journal struct {
	db      *sql.DB
	maxRows int
}

// Open opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/pulse/journal.db.
func Open(dbPath string, maxRows int) (*Journal, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "pulse", "journal.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	j := &Journal{db: db, maxRows: maxRows}
	if err := j.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ingests (
			row_id      TEXT PRIMARY KEY,
			card_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			level       TEXT,
			title       TEXT,
			dedupe_key  TEXT,
			thread_type TEXT,
			thread_id   TEXT,
			outcome     TEXT NOT NULL,
			card_ts     INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingests_recorded_at ON ingests(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ingests_outcome ON ingests(outcome)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// The admitted outcome; drops use the engine's reason strings.
const outcomeAdmitted = "admitted"

// CardAdmitted implements engine.Journal.
func (j *Journal) CardAdmitted(card models.PulseCard) {
	if err := j.record(card, outcomeAdmitted); err != nil {
		logger.Warn("Failed to journal admitted card %s: %v", card.ID, err)
	}
}

// CardDropped implements engine.Journal.
func (j *Journal) CardDropped(card models.PulseCard, reason engine.DropReason) {
	if err := j.record(card, string(reason)); err != nil {
		logger.Warn("Failed to journal dropped card %s: %v", card.ID, err)
	}
}

func (j *Journal) record(card models.PulseCard, outcome string) error {
	var threadType, threadID string
	if card.Thread != nil {
		threadType = card.Thread.Type
		threadID = card.Thread.ID
	}
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO ingests
			(row_id, card_id, kind, level, title, dedupe_key,
			 thread_type, thread_id, outcome, card_ts, recorded_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), card.ID, card.Kind, card.Level, card.Title, card.DedupeKey,
		threadType, threadID, outcome,
		card.TS.UnixNano(), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest row: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM ingests WHERE row_id NOT IN (
			SELECT row_id FROM ingests ORDER BY recorded_at DESC LIMIT ?
		)`, j.maxRows); err != nil {
		return fmt.Errorf("failed to enforce row cap: %w", err)
	}

	return tx.Commit()
}

// Entry is one journaled ingest decision.
type Entry struct {
	CardID     string
	Kind       string
	Level      string
	Title      string
	DedupeKey  string
	Outcome    string
	CardTS     time.Time
	RecordedAt time.Time
}

// Recent returns the latest n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT card_id, kind, level, title, dedupe_key, outcome, card_ts, recorded_at
		FROM ingests ORDER BY recorded_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingests: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var cardTSNano, recordedAtNano int64
		if err := rows.Scan(
			&e.CardID, &e.Kind, &e.Level, &e.Title, &e.DedupeKey, &e.Outcome,
			&cardTSNano, &recordedAtNano,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingest row: %w", err)
		}
		e.CardTS = time.Unix(0, cardTSNano)
		e.RecordedAt = time.Unix(0, recordedAtNano)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByOutcome returns how many journaled rows carry each outcome.
func (j *Journal) CountByOutcome() (map[string]int, error) {
	rows, err := j.db.Query(`SELECT outcome, COUNT(*) FROM ingests GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

var _ engine.Journal = (*Journal)(nil)
