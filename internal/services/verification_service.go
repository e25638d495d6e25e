package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gameverify/internal/models"
	"gameverify/internal/repositories"
)

var (
	ErrDMUnavailable = errors.New("direct messages unavailable")
	ErrNotInGuild    = errors.New("user not found in guild")
)

const (
	sessionTTL = 24 * time.Hour

	// KickReason lands in the guild audit log.
	KickReason = "Automated verification step: rejoin the server and reply DONE to the bot."

	dmInstructions = "Hello! To verify your account, please complete the task at the following link:\n\n%s\n\n" +
		"After you are kicked from the game, come back to this DM and reply with the word `DONE`."
)

// VerificationService — линейная машина состояний issued → confirmed → completed.
// Каждая фаза имеет ровно одну точку входа: Begin (команда), ConfirmInGame
// (вебхук), Complete (ответ DONE). Провалившаяся фаза не откатывается —
// пользователь просто повторяет свой шаг.
type VerificationService interface {
	Begin(ctx context.Context, userID, username string) error
	ConfirmInGame(ctx context.Context, userID, ticket string) error
	Complete(ctx context.Context, userID string) error
}

type verificationService struct {
	chat     ChatClient
	encoder  LinkEncoder
	tickets  *TicketIssuer
	sessions repositories.SessionRepository
	users    repositories.VerifiedUserRepository
}

func NewVerificationService(
	chat ChatClient,
	encoder LinkEncoder,
	tickets *TicketIssuer,
	sessions repositories.SessionRepository,
	users repositories.VerifiedUserRepository,
) VerificationService {
	return &verificationService{
		chat:     chat,
		encoder:  encoder,
		tickets:  tickets,
		sessions: sessions,
		users:    users,
	}
}

// Begin выдаёт ссылку в личку. Повторный вызов без ограничений — сессия
// каждый раз сбрасывается в issued со свежим тикетом.
func (s *verificationService) Begin(ctx context.Context, userID, username string) error {
	ticket, ticketID, err := s.tickets.Issue(userID)
	if err != nil {
		return err
	}
	link, err := s.encoder.Encode(userID, username, ticket)
	if err != nil {
		return err
	}

	if err := s.chat.SendDM(userID, fmt.Sprintf(dmInstructions, link)); err != nil {
		return ErrDMUnavailable
	}

	// Сессия — бухгалтерия поверх уже отправленной ссылки; её сбой не
	// должен ломать команду, вебхук создаст строку сам.
	if _, err := s.sessions.StartIssued(ctx, userID, ticketID, sessionTTL); err != nil {
		log.Printf("[VERIFY][warn] session issue write failed userID=%s: %v", userID, err)
	}
	log.Printf("[VERIFY] issued link userID=%s ticketID=%s", userID, ticketID)
	return nil
}

// ConfirmInGame проверяет тикет (если включён) и выкидывает пользователя из
// сервера. Никаких записей в verified_users здесь нет.
func (s *verificationService) ConfirmInGame(ctx context.Context, userID, ticket string) error {
	ticketID, err := s.tickets.Verify(ticket, userID)
	if err != nil {
		return err
	}
	if ticketID != "" {
		sess, err := s.sessions.Get(ctx, userID)
		if err != nil {
			log.Printf("[VERIFY][warn] session read failed userID=%s: %v", userID, err)
		} else if sess != nil && sess.TicketID != "" && sess.TicketID != ticketID {
			return ErrTicketInvalid
		}
	}

	if err := s.chat.KickFromGuild(userID, KickReason); err != nil {
		return err
	}

	if _, err := s.sessions.SetPhase(ctx, userID, models.PhaseConfirmed); err != nil {
		log.Printf("[VERIFY][warn] session confirm write failed userID=%s: %v", userID, err)
	}
	log.Printf("[VERIFY] confirmed in game userID=%s", userID)
	return nil
}

// Complete — финальный шаг: пользователь должен был вернуться на сервер.
// Идемпотентен: повторный DONE повторяет проверку и upsert.
func (s *verificationService) Complete(ctx context.Context, userID string) error {
	member, err := s.chat.IsGuildMember(userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotInGuild
	}

	if err := s.chat.AddVerifiedRole(userID); err != nil {
		return err
	}
	if _, err := s.users.Upsert(ctx, userID); err != nil {
		return err
	}
	if _, err := s.sessions.SetPhase(ctx, userID, models.PhaseCompleted); err != nil {
		log.Printf("[VERIFY][warn] session complete write failed userID=%s: %v", userID, err)
	}
	log.Printf("[VERIFY] completed userID=%s", userID)
	return nil
}
