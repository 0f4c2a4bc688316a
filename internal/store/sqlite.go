package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned when a write targets an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS clients (
		client_id TEXT PRIMARY KEY,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		config_json TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		generated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_client ON sessions(client_id, created_at);

	CREATE TABLE IF NOT EXISTS examples (
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		example_id TEXT NOT NULL,
		category TEXT NOT NULL,
		subcategory TEXT NOT NULL,
		attack_technique TEXT NOT NULL,
		attack_prompt TEXT NOT NULL,
		target_response TEXT NOT NULL,
		defended_response TEXT NOT NULL,
		attack_success INTEGER NOT NULL,
		severity TEXT NOT NULL,
		notes TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	);

	CREATE TABLE IF NOT EXISTS skipped_attempts (
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		attempt_index INTEGER NOT NULL,
		message TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// UpsertClient creates a client or refreshes its last_seen_at.
func (s *SQLiteStore) UpsertClient(ctx context.Context, client *domain.Client) error {
	query := `
	INSERT INTO clients (client_id, last_seen_at, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(client_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at`

	return withRetry(ctx, "upsert client", func() error {
		_, err := s.db.ExecContext(ctx, query, client.ID, client.LastSeenAt.UnixMilli(), client.CreatedAt.UnixMilli())
		return err
	})
}

// GetClient retrieves a client by ID.
func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT client_id, last_seen_at, created_at FROM clients WHERE client_id = ?`, clientID)

	var client domain.Client
	var lastSeen, createdAt int64
	err := row.Scan(&client.ID, &lastSeen, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan client row: %w", err)
	}
	client.LastSeenAt = time.UnixMilli(lastSeen)
	client.CreatedAt = time.UnixMilli(createdAt)
	return &client, nil
}

// CreateSession stores a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	cfg, err := json.Marshal(session.Config)
	if err != nil {
		return fmt.Errorf("encode session config: %w", err)
	}

	query := `
	INSERT INTO sessions (session_id, client_id, config_json, status, error, provider, model, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return withRetry(ctx, "create session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			session.ID, session.ClientID, string(cfg), string(session.Status), session.Error,
			session.Provider, session.Model,
			session.CreatedAt.UnixMilli(), session.UpdatedAt.UnixMilli(),
		)
		return err
	})
}

// AppendExample stores one record and bumps the generated counter.
func (s *SQLiteStore) AppendExample(ctx context.Context, sessionID string, seq int, ex domain.GeneratedExample) error {
	return withRetry(ctx, "append example", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO examples (
				session_id, seq, example_id, category, subcategory, attack_technique,
				attack_prompt, target_response, defended_response, attack_success, severity, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sessionID, seq, ex.ID, string(ex.Category), ex.Subcategory, ex.AttackTechnique,
				ex.AttackPrompt, ex.TargetResponse, ex.DefendedResponse, ex.AttackSuccess,
				string(ex.Severity), ex.Notes,
			)
			if err != nil {
				return err
			}
			return s.bump(ctx, tx, sessionID, "generated")
		})
	})
}

// RecordSkip stores a skipped attempt and bumps the skipped counter.
func (s *SQLiteStore) RecordSkip(ctx context.Context, sessionID string, index int, message string) error {
	return withRetry(ctx, "record skip", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO skipped_attempts (session_id, attempt_index, message, created_at) VALUES (?, ?, ?, ?)`,
				sessionID, index, message, time.Now().UnixMilli(),
			)
			if err != nil {
				return err
			}
			return s.bump(ctx, tx, sessionID, "skipped")
		})
	})
}

// bump increments a counter column. column is never user input.
func (s *SQLiteStore) bump(ctx context.Context, tx *sql.Tx, sessionID, column string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE sessions SET `+column+` = `+column+` + 1, updated_at = ? WHERE session_id = ?`,
		time.Now().UnixMilli(), sessionID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// FinishSession moves a session to a terminal status.
func (s *SQLiteStore) FinishSession(ctx context.Context, sessionID string, status domain.Status, errMsg string) error {
	now := time.Now().UnixMilli()
	return withRetry(ctx, "finish session", func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET status = ?, error = ?, updated_at = ?, finished_at = ? WHERE session_id = ?`,
			string(status), errMsg, now, now, sessionID,
		)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("FinishSession affected 0 rows", "session_id", sessionID)
			return ErrSessionNotFound
		}
		return nil
	})
}

const sessionColumns = `session_id, client_id, config_json, status, error, generated, skipped,
	provider, model, created_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var cfg, status string
	var createdAt, updatedAt int64
	var finishedAt sql.NullInt64

	if err := row.Scan(
		&session.ID, &session.ClientID, &cfg, &status, &session.Error,
		&session.Generated, &session.Skipped, &session.Provider, &session.Model,
		&createdAt, &updatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(cfg), &session.Config); err != nil {
		return nil, fmt.Errorf("decode session config: %w", err)
	}
	session.Status = domain.Status(status)
	session.CreatedAt = time.UnixMilli(createdAt)
	session.UpdatedAt = time.UnixMilli(updatedAt)
	if finishedAt.Valid {
		ts := time.UnixMilli(finishedAt.Int64)
		session.FinishedAt = &ts
	}
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// ListSessions returns a client's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, clientID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE client_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close sessions rows", "error", closeErr)
		}
	}()

	sessions := []*domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ListExamples returns a session's records in stream order.
func (s *SQLiteStore) ListExamples(ctx context.Context, sessionID string) ([]domain.GeneratedExample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT example_id, category, subcategory, attack_technique, attack_prompt,
		       target_response, defended_response, attack_success, severity, notes
		FROM examples WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close examples rows", "error", closeErr)
		}
	}()

	examples := []domain.GeneratedExample{}
	for rows.Next() {
		var ex domain.GeneratedExample
		var category, severity string
		if err := rows.Scan(
			&ex.ID, &category, &ex.Subcategory, &ex.AttackTechnique, &ex.AttackPrompt,
			&ex.TargetResponse, &ex.DefendedResponse, &ex.AttackSuccess, &severity, &ex.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan example row: %w", err)
		}
		ex.Category = domain.Category(category)
		ex.Severity = domain.Severity(severity)
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}
	return examples, nil
}

// DeleteSessionsBefore removes sessions created before cutoff.
func (s *SQLiteStore) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withRetry(ctx, "delete old sessions", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Debug("Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
