// Package store keeps a journal of dialogue turns per therapy session.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session has no recorded turns.
var ErrNotFound = errors.New("not found")

// Turn is one handled recognition and the outcome it produced.
type Turn struct {
	SessionID  string    `json:"session_id"`
	Seq        uint64    `json:"seq"`
	Utterance  string    `json:"utterance"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Band       string    `json:"band"`
	Message    string    `json:"message"`
	Tone       string    `json:"tone"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Escalated  bool      `json:"escalated"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists the turn journal.
type Repository interface {
	// RecordTurn appends a turn. Recording the same (session, seq) twice
	// overwrites the earlier row.
	RecordTurn(ctx context.Context, turn Turn) error

	// ListTurns returns the turns of a session ordered by Seq.
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
