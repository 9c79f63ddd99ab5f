// Package store persists a processing audit log of webhook deliveries.
// It records what the relay did with each activity, not conversation state:
// there is one append-only row per processed delivery.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Delivery outcome values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeIgnored = "ignored"
)

// Delivery is one processed webhook delivery.
type Delivery struct {
	ID             string    `json:"id"` // relay-assigned request ID
	ActivityID     string    `json:"activity_id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Intent         string    `json:"intent,omitempty"`
	City           string    `json:"city,omitempty"`
	Outcome        string    `json:"outcome"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Stats summarizes recorded deliveries.
type Stats struct {
	Total     int64            `json:"total"`
	ByOutcome map[string]int64 `json:"by_outcome"`
	ByIntent  map[string]int64 `json:"by_intent"`
}

// SQLiteStore is the SQLite-backed delivery log.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id              TEXT PRIMARY KEY,
		activity_id     TEXT,
		user_id         TEXT,
		conversation_id TEXT,
		intent          TEXT,
		city            TEXT,
		outcome         TEXT NOT NULL,
		latency_ms      INTEGER DEFAULT 0,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_time ON deliveries(created_at);
	CREATE INDEX IF NOT EXISTS idx_deliveries_outcome ON deliveries(outcome);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends one delivery row.
func (s *SQLiteStore) Record(ctx context.Context, d Delivery) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO deliveries (id, activity_id, user_id, conversation_id, intent, city, outcome, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ActivityID, d.UserID, d.ConversationID, d.Intent, d.City, d.Outcome, d.LatencyMs, d.CreatedAt,
	)
	return err
}

// Recent returns the newest deliveries, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, activity_id, user_id, conversation_id, intent, city, outcome, latency_ms, created_at
		 FROM deliveries ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.ActivityID, &d.UserID, &d.ConversationID,
			&d.Intent, &d.City, &d.Outcome, &d.LatencyMs, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats aggregates delivery counts by outcome and intent.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		ByOutcome: make(map[string]int64),
		ByIntent:  make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM deliveries GROUP BY outcome`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return stats, err
		}
		stats.ByOutcome[outcome] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	intentRows, err := s.db.QueryContext(ctx,
		`SELECT intent, COUNT(*) FROM deliveries WHERE intent != '' GROUP BY intent`)
	if err != nil {
		return stats, err
	}
	defer intentRows.Close()
	for intentRows.Next() {
		var intent string
		var n int64
		if err := intentRows.Scan(&intent, &n); err != nil {
			return stats, err
		}
		stats.ByIntent[intent] = n
	}
	return stats, intentRows.Err()
}

// Prune deletes deliveries older than the retention window.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("pruned old deliveries", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
