package service

import (
	"context"
	"errors"
	"time"

	"forwardtest/internal/models"
)

var (
	// ErrConflict: an active session already exists for the same
	// (user, strategy, account) tuple.
	ErrConflict = errors.New("sessions: active session exists for tuple")
	ErrNotFound = errors.New("sessions: not found")
)

type Filter struct {
	UserID     string
	ActiveOnly bool
}

// Store is the source of truth for which sessions are armed, plus the shared
// append-only execution log both execution contexts write to.
type Store interface {
	// Create admits a new active session. Transactional against the
	// one-active-per-tuple invariant: of two near-simultaneous calls for the
	// same tuple exactly one succeeds, the other gets ErrConflict.
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, f Filter) ([]*models.Session, error)
	// Deactivate marks the session inactive and records why. Idempotent.
	Deactivate(ctx context.Context, id, reason string) error
	// Touch bumps lastExecutionAt after a cycle.
	Touch(ctx context.Context, id string, ts time.Time) error

	// AppendLog appends one audit entry; entries are never mutated.
	AppendLog(ctx context.Context, e *models.ExecutionLogEntry) error
	// RecentLog returns up to limit entries, newest first.
	RecentLog(ctx context.Context, sessionID string, limit int) ([]*models.ExecutionLogEntry, error)
	// HasExecuted reports whether an EXECUTED entry with the idempotency key
	// exists at or after since.
	HasExecuted(ctx context.Context, sessionID, key string, since time.Time) (bool, error)
}
