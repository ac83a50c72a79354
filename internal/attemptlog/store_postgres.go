package attemptlog

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore writes attempts to the registration_attempts table. The
// table is append-only; rows are never updated.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, attempt Attempt) error {
	query := `
		INSERT INTO registration_attempts (id, session_id, race_id, status, error_code, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.SessionID,
		attempt.RaceID,
		string(attempt.Status),
		attempt.ErrorCode,
		attempt.LatencyMs,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]Attempt, error) {
	query := `
		SELECT id, session_id, race_id, status, error_code, latency_ms, created_at
		FROM registration_attempts
		WHERE session_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.SessionID, &a.RaceID, &a.Status, &a.ErrorCode, &a.LatencyMs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
