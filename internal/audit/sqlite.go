package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/billing"
	"github.com/tollgate/tollgate/internal/pricing"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed decision store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Initialize creates the decisions table and its indexes.
func (s *SQLiteStore) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id            TEXT PRIMARY KEY,
		timestamp     DATETIME NOT NULL,
		phase         TEXT NOT NULL,
		principal     TEXT NOT NULL,
		category      TEXT NOT NULL,
		cost          TEXT NOT NULL,
		cost_source   TEXT,
		outcome       TEXT NOT NULL,
		allowed       INTEGER NOT NULL,
		message_key   TEXT,
		placeholders  TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_principal ON decisions(principal);
	CREATE INDEX IF NOT EXISTS idx_decisions_category ON decisions(category);
	CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close shuts down the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Insert appends a decision.
func (s *SQLiteStore) Insert(d billing.Decision) error {
	var placeholders []byte
	if d.Placeholders != nil {
		var err error
		placeholders, err = json.Marshal(d.Placeholders)
		if err != nil {
			return fmt.Errorf("marshal placeholders: %w", err)
		}
	}

	allowed := 0
	if d.Allowed {
		allowed = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO decisions
			(id, timestamp, phase, principal, category, cost, cost_source,
			 outcome, allowed, message_key, placeholders)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Timestamp, string(d.Phase), d.Principal, string(d.Category),
		d.Cost.String(), d.CostSource, string(d.Outcome), allowed,
		d.MessageKey, string(placeholders),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// List returns matching decisions, newest first.
func (s *SQLiteStore) List(filter Filter) ([]billing.Decision, error) {
	query := `SELECT id, timestamp, phase, principal, category, cost, cost_source,
	                 outcome, allowed, message_key, placeholders
	          FROM decisions`

	var conds []string
	var args []any
	if filter.Principal != "" {
		conds = append(conds, "principal = ?")
		args = append(args, filter.Principal)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []billing.Decision
	for rows.Next() {
		var d billing.Decision
		var phase, category, cost, outcome, placeholders string
		var allowed int
		if err := rows.Scan(&d.ID, &d.Timestamp, &phase, &d.Principal, &category,
			&cost, &d.CostSource, &outcome, &allowed, &d.MessageKey, &placeholders); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Phase = billing.Phase(phase)
		d.Category = pricing.Category(category)
		d.Outcome = billing.Outcome(outcome)
		d.Allowed = allowed == 1
		if d.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("corrupt cost in decision %s: %w", d.ID, err)
		}
		if placeholders != "" {
			if err := json.Unmarshal([]byte(placeholders), &d.Placeholders); err != nil {
				return nil, fmt.Errorf("corrupt placeholders in decision %s: %w", d.ID, err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of stored decisions.
func (s *SQLiteStore) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return n, nil
}
