package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gameverify/internal/models"
)

type SessionRepository interface {
	EnsureSchema(ctx context.Context) error
	// StartIssued сбрасывает сессию пользователя в issued с новым тикетом.
	StartIssued(ctx context.Context, userID, ticketID string, ttl time.Duration) (*models.VerificationSession, error)
	// SetPhase переводит сессию в фазу; если строки нет — создаёт её
	// (вебхук может прийти после рестарта процесса, когда issued не записан).
	SetPhase(ctx context.Context, userID string, phase models.SessionPhase) (*models.VerificationSession, error)
	Get(ctx context.Context, userID string) (*models.VerificationSession, error)
}

type sessionRepository struct{ db *sql.DB }

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS verification_sessions (
			user_id TEXT PRIMARY KEY,
			phase TEXT NOT NULL,
			ticket_id TEXT NOT NULL DEFAULT '',
			issued_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("verification_sessions ensure schema: %w", err)
	}
	return nil
}

func (r *sessionRepository) StartIssued(ctx context.Context, userID, ticketID string, ttl time.Duration) (*models.VerificationSession, error) {
	const q = `
		INSERT INTO verification_sessions (user_id, phase, ticket_id, issued_at, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW(), $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
			SET phase = EXCLUDED.phase,
			    ticket_id = EXCLUDED.ticket_id,
			    issued_at = NOW(),
			    expires_at = EXCLUDED.expires_at,
			    updated_at = NOW()
		RETURNING user_id, phase, ticket_id, issued_at, expires_at, updated_at
	`
	return r.scanRow(r.db.QueryRowContext(ctx, q, userID, models.PhaseIssued, ticketID, time.Now().Add(ttl)))
}

func (r *sessionRepository) SetPhase(ctx context.Context, userID string, phase models.SessionPhase) (*models.VerificationSession, error) {
	const q = `
		INSERT INTO verification_sessions (user_id, phase)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
			SET phase = EXCLUDED.phase, updated_at = NOW()
		RETURNING user_id, phase, ticket_id, issued_at, expires_at, updated_at
	`
	return r.scanRow(r.db.QueryRowContext(ctx, q, userID, phase))
}

func (r *sessionRepository) Get(ctx context.Context, userID string) (*models.VerificationSession, error) {
	const q = `
		SELECT user_id, phase, ticket_id, issued_at, expires_at, updated_at
		FROM verification_sessions
		WHERE user_id = $1
	`
	s, err := r.scanRow(r.db.QueryRowContext(ctx, q, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *sessionRepository) scanRow(row *sql.Row) (*models.VerificationSession, error) {
	var s models.VerificationSession
	if err := row.Scan(&s.UserID, &s.Phase, &s.TicketID, &s.IssuedAt, &s.ExpiresAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("verification_sessions scan: %w", err)
	}
	return &s, nil
}
