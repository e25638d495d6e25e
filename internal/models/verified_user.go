package models

import "time"

// VerifiedUser — одна строка на пользователя (upsert по user_id, строки не удаляем).
type VerifiedUser struct {
	UserID    string    `json:"user_id"`
	Verified  bool      `json:"verified_status"`
	Timestamp time.Time `json:"timestamp"`
}
