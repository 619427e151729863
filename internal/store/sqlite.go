package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the journal database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		utterance TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		band TEXT NOT NULL,
		message TEXT NOT NULL,
		tone TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		escalated INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RecordTurn stores a turn, replacing any earlier row with the same key.
func (s *SQLiteStore) RecordTurn(ctx context.Context, turn Turn) error {
	if turn.SessionID == "" {
		return errors.New("turn has no session id")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO turns (session_id, seq, utterance, intent, confidence, band, message, tone,
		from_state, to_state, escalated, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, seq) DO UPDATE SET
		utterance = excluded.utterance,
		intent = excluded.intent,
		confidence = excluded.confidence,
		band = excluded.band,
		message = excluded.message,
		tone = excluded.tone,
		from_state = excluded.from_state,
		to_state = excluded.to_state,
		escalated = excluded.escalated,
		created_at = excluded.created_at`

	_, err := s.db.ExecContext(ctx, query,
		turn.SessionID, int64(turn.Seq), turn.Utterance, turn.Intent, turn.Confidence,
		turn.Band, turn.Message, turn.Tone, turn.FromState, turn.ToState,
		boolToInt(turn.Escalated), turn.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// ListTurns returns every turn of a session, oldest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	query := `
		SELECT session_id, seq, utterance, intent, confidence, band, message, tone,
		       from_state, to_state, escalated, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var seq, escalated, createdAt int64
		if err := rows.Scan(
			&t.SessionID, &seq, &t.Utterance, &t.Intent, &t.Confidence, &t.Band,
			&t.Message, &t.Tone, &t.FromState, &t.ToState, &escalated, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Seq = uint64(seq)
		t.Escalated = escalated != 0
		t.CreatedAt = time.UnixMilli(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	if len(turns) == 0 {
		return nil, ErrNotFound
	}
	return turns, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
