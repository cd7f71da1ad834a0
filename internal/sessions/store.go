// Package sessions persists analysis history in SQLite. The analysis core
// never depends on it.
package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dejo1307/pydiag/internal/diagnostic"

	_ "modernc.org/sqlite"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 5

var (
	ErrNotFound    = errors.New("session not found")
	ErrMissingUser = errors.New("session has no anon_user_id")
)

// Session is one saved analysis.
type Session struct {
	ID           string               `json:"id"`
	AnonUserID   string               `json:"anon_user_id"`
	UserType     string               `json:"user_type"`
	Code         string               `json:"code"`
	Results      []diagnostic.Finding `json:"results"`
	RulesApplied int                  `json:"rules_applied"`
	ElapsedMs    float64              `json:"elapsed_ms"`
	Timestamp    time.Time            `json:"timestamp"`
}

// FromOutcome builds an unsaved session for an analysis of code.
func FromOutcome(user, userType, code string, o *diagnostic.Outcome) Session {
	return Session{
		AnonUserID:   user,
		UserType:     userType,
		Code:         code,
		Results:      o.Findings,
		RulesApplied: o.RulesFired,
		ElapsedMs:    o.ElapsedMs,
	}
}

// Store is a SQLite-backed session store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating session dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database and creates the schema.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrating session db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		anon_user_id TEXT NOT NULL,
		user_type TEXT NOT NULL DEFAULT 'anonymous',
		code TEXT NOT NULL,
		results JSON NOT NULL,
		rules_applied INTEGER NOT NULL DEFAULT 0,
		elapsed_ms REAL NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_ts ON sessions (anon_user_id, timestamp);
	CREATE TABLE IF NOT EXISTS session_categories (
		session_id TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
		category TEXT NOT NULL,
		PRIMARY KEY (session_id, category)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores sess and returns its id. A missing id is generated, a zero
// timestamp is set to now and an empty user type defaults to "anonymous".
func (s *Store) Save(ctx context.Context, sess Session) (string, error) {
	if sess.AnonUserID == "" {
		return "", ErrMissingUser
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Timestamp.IsZero() {
		sess.Timestamp = s.now()
	}
	if sess.UserType == "" {
		sess.UserType = "anonymous"
	}
	if sess.Results == nil {
		sess.Results = []diagnostic.Finding{}
	}

	results, err := json.Marshal(sess.Results)
	if err != nil {
		return "", fmt.Errorf("encoding results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (
		id, anon_user_id, user_type, code, results, rules_applied, elapsed_ms, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.AnonUserID, sess.UserType, sess.Code, string(results),
		sess.RulesApplied, sess.ElapsedMs, sess.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	for _, f := range sess.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO session_categories (session_id, category) VALUES (?, ?)`,
			sess.ID, string(f.Category))
		if err != nil {
			return "", fmt.Errorf("inserting category: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing session: %w", err)
	}
	return sess.ID, nil
}

const selectSession = `
	SELECT id, anon_user_id, user_type, code, results, rules_applied, elapsed_ms, timestamp
	FROM sessions`

// Get returns the session with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Recent returns up to limit sessions for user, newest first.
func (s *Store) Recent(ctx context.Context, user string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		selectSession+` WHERE anon_user_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		user, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess    Session
		results string
		ts      int64
	)
	err := row.Scan(&sess.ID, &sess.AnonUserID, &sess.UserType, &sess.Code,
		&results, &sess.RulesApplied, &sess.ElapsedMs, &ts)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(results), &sess.Results); err != nil {
		return nil, fmt.Errorf("decoding results of session %s: %w", sess.ID, err)
	}
	sess.Timestamp = time.Unix(0, ts).UTC()
	return &sess, nil
}

// Dashboard summarizes a user's history next to the size of the knowledge
// base.
type Dashboard struct {
	TotalRules      int `json:"total_rules"`
	TotalFacts      int `json:"total_facts"`
	ErrorCategories int `json:"error_categories"`
	TotalSessions   int `json:"total_sessions"`
}

// Dashboard counts user's sessions and the distinct finding categories
// across them. rules and facts are passed through from the catalog.
func (s *Store) Dashboard(ctx context.Context, user string, rules, facts int) (Dashboard, error) {
	d := Dashboard{TotalRules: rules, TotalFacts: facts}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE anon_user_id = ?`, user,
	).Scan(&d.TotalSessions)
	if err != nil {
		return Dashboard{}, fmt.Errorf("counting sessions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT c.category)
		FROM session_categories c
		JOIN sessions s ON s.id = c.session_id
		WHERE s.anon_user_id = ?`, user,
	).Scan(&d.ErrorCategories)
	if err != nil {
		return Dashboard{}, fmt.Errorf("counting categories: %w", err)
	}
	return d, nil
}
