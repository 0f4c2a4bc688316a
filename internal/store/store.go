// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
)

// Repository defines the interface for persisting generation sessions and
// the records they produce.
type Repository interface {
	// UpsertClient creates a client or refreshes its last_seen_at.
	UpsertClient(ctx context.Context, client *domain.Client) error

	// GetClient retrieves a client by ID. Returns nil, nil if it does not exist.
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)

	// CreateSession stores a new session in the generating state.
	CreateSession(ctx context.Context, session *domain.Session) error

	// AppendExample stores one record under the session at position seq
	// and bumps the session's generated counter.
	AppendExample(ctx context.Context, sessionID string, seq int, ex domain.GeneratedExample) error

	// RecordSkip stores a skipped attempt and bumps the skipped counter.
	RecordSkip(ctx context.Context, sessionID string, index int, message string) error

	// FinishSession moves a session to a terminal status.
	FinishSession(ctx context.Context, sessionID string, status domain.Status, errMsg string) error

	// GetSession retrieves a session by ID. Returns nil, nil if it does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// ListSessions returns a client's sessions, newest first.
	ListSessions(ctx context.Context, clientID string, limit int) ([]*domain.Session, error)

	// ListExamples returns a session's records in stream order.
	ListExamples(ctx context.Context, sessionID string) ([]domain.GeneratedExample, error)

	// DeleteSessionsBefore removes sessions created before the cutoff
	// together with their records.
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
