package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"gameverify/internal/models"
)

type VerifiedUserRepository interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, userID string) (*models.VerifiedUser, error)
	GetByUserID(ctx context.Context, userID string) (*models.VerifiedUser, error)
}

type verifiedUserRepository struct{ db *sql.DB }

func NewVerifiedUserRepository(db *sql.DB) VerifiedUserRepository {
	return &verifiedUserRepository{db: db}
}

// EnsureSchema — идемпотентное создание таблицы на старте.
func (r *verifiedUserRepository) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS verified_users (
			user_id TEXT PRIMARY KEY,
			verified_status BOOLEAN DEFAULT FALSE,
			timestamp TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("verified_users ensure schema: %w", err)
	}
	return nil
}

// Upsert ставит verified_status=TRUE и обновляет timestamp. Повторный вызов
// безопасен: строка всегда одна на user_id.
func (r *verifiedUserRepository) Upsert(ctx context.Context, userID string) (*models.VerifiedUser, error) {
	const q = `
		INSERT INTO verified_users (user_id, verified_status)
		VALUES ($1, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET verified_status = TRUE, timestamp = NOW()
		RETURNING user_id, verified_status, timestamp
	`
	var u models.VerifiedUser
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&u.UserID, &u.Verified, &u.Timestamp); err != nil {
		return nil, fmt.Errorf("verified_users upsert: %w", err)
	}
	return &u, nil
}

func (r *verifiedUserRepository) GetByUserID(ctx context.Context, userID string) (*models.VerifiedUser, error) {
	const q = `
		SELECT user_id, verified_status, timestamp
		FROM verified_users
		WHERE user_id = $1
	`
	var u models.VerifiedUser
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&u.UserID, &u.Verified, &u.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("verified_users get: %w", err)
	}
	return &u, nil
}
