package models

import "time"

// SessionPhase is the user's position in the verification handshake.
// The flow is linear: issued → confirmed → completed. There is no failed
// phase; a stuck session is simply restarted by running the command again.
type SessionPhase string

const (
	PhaseIssued    SessionPhase = "issued"
	PhaseConfirmed SessionPhase = "confirmed"
	PhaseCompleted SessionPhase = "completed"
)

// VerificationSession — явное состояние сессии вместо "угадывания фазы по
// побочным эффектам". TicketID связывает выданную ссылку с вебхуком.
type VerificationSession struct {
	UserID    string       `json:"user_id"`
	Phase     SessionPhase `json:"phase"`
	TicketID  string       `json:"ticket_id"`
	IssuedAt  time.Time    `json:"issued_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
