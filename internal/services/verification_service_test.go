package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gameverify/internal/models"
)

// --- mocks ---

type mockChat struct{ mock.Mock }

func (m *mockChat) SendDM(userID, text string) error {
	return m.Called(userID, text).Error(0)
}
func (m *mockChat) KickFromGuild(userID, reason string) error {
	return m.Called(userID, reason).Error(0)
}
func (m *mockChat) AddVerifiedRole(userID string) error {
	return m.Called(userID).Error(0)
}
func (m *mockChat) IsGuildMember(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockSessions) StartIssued(ctx context.Context, userID, ticketID string, ttl time.Duration) (*models.VerificationSession, error) {
	args := m.Called(ctx, userID, ticketID, ttl)
	if s, _ := args.Get(0).(*models.VerificationSession); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessions) SetPhase(ctx context.Context, userID string, phase models.SessionPhase) (*models.VerificationSession, error) {
	args := m.Called(ctx, userID, phase)
	if s, _ := args.Get(0).(*models.VerificationSession); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessions) Get(ctx context.Context, userID string) (*models.VerificationSession, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*models.VerificationSession); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) EnsureSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockUsers) Upsert(ctx context.Context, userID string) (*models.VerifiedUser, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*models.VerifiedUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUsers) GetByUserID(ctx context.Context, userID string) (*models.VerifiedUser, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*models.VerifiedUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	chat     *mockChat
	sessions *mockSessions
	users    *mockUsers
	svc      VerificationService
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	f := &fixture{
		chat:     &mockChat{},
		sessions: &mockSessions{},
		users:    &mockUsers{},
	}
	enc := &QueryLinkEncoder{BaseURL: "https://game.example/play"}
	f.svc = NewVerificationService(f.chat, enc, NewTicketIssuer(secret), f.sessions, f.users)
	return f
}

// --- Begin ---

func TestBegin_SendsLinkAndIssuesSession(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("SendDM", "u1", mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "userId=u1") && strings.Contains(text, "DONE")
	})).Return(nil)
	f.sessions.On("StartIssued", ctx, "u1", "", sessionTTL).Return(&models.VerificationSession{
		UserID: "u1", Phase: models.PhaseIssued,
	}, nil)

	require.NoError(t, f.svc.Begin(ctx, "u1", "user one"))
	f.chat.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestBegin_DMClosed(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("SendDM", "u1", mock.Anything).Return(errors.New("cannot send messages to this user"))

	assert.ErrorIs(t, f.svc.Begin(ctx, "u1", ""), ErrDMUnavailable)
	f.sessions.AssertNotCalled(t, "StartIssued", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBegin_SessionWriteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("SendDM", "u1", mock.Anything).Return(nil)
	f.sessions.On("StartIssued", ctx, "u1", "", sessionTTL).Return(nil, errors.New("db down"))

	// ссылка уже ушла пользователю; команда не должна падать
	assert.NoError(t, f.svc.Begin(ctx, "u1", ""))
}

func TestBegin_RepeatedInvocationsRestartSession(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("SendDM", "u1", mock.Anything).Return(nil).Times(2)
	f.sessions.On("StartIssued", ctx, "u1", "", sessionTTL).
		Return(&models.VerificationSession{UserID: "u1", Phase: models.PhaseIssued}, nil).Times(2)

	require.NoError(t, f.svc.Begin(ctx, "u1", ""))
	require.NoError(t, f.svc.Begin(ctx, "u1", ""))
	f.sessions.AssertExpectations(t)
}

// --- ConfirmInGame ---

func TestConfirmInGame_KicksAndMarksConfirmed(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("KickFromGuild", "u1", KickReason).Return(nil)
	f.sessions.On("SetPhase", ctx, "u1", models.PhaseConfirmed).
		Return(&models.VerificationSession{UserID: "u1", Phase: models.PhaseConfirmed}, nil)

	require.NoError(t, f.svc.ConfirmInGame(ctx, "u1", ""))
	f.chat.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestConfirmInGame_KickFailure(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("KickFromGuild", "u1", KickReason).Return(errors.New("unknown member"))

	assert.Error(t, f.svc.ConfirmInGame(ctx, "u1", ""))
	f.sessions.AssertNotCalled(t, "SetPhase", mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestConfirmInGame_TicketRequiredWhenSecretSet(t *testing.T) {
	f := newFixture(t, "topsecret")
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ConfirmInGame(ctx, "u1", ""), ErrTicketRequired)
	f.chat.AssertNotCalled(t, "KickFromGuild", mock.Anything, mock.Anything)
}

func TestConfirmInGame_TicketSessionMismatch(t *testing.T) {
	f := newFixture(t, "topsecret")
	ctx := context.Background()

	ticket, _, err := NewTicketIssuer("topsecret").Issue("u1")
	require.NoError(t, err)

	f.sessions.On("Get", ctx, "u1").Return(&models.VerificationSession{
		UserID: "u1", Phase: models.PhaseIssued, TicketID: "another-ticket-id",
	}, nil)

	assert.ErrorIs(t, f.svc.ConfirmInGame(ctx, "u1", ticket), ErrTicketInvalid)
	f.chat.AssertNotCalled(t, "KickFromGuild", mock.Anything, mock.Anything)
}

func TestConfirmInGame_ValidTicketWithoutSessionRowStillKicks(t *testing.T) {
	f := newFixture(t, "topsecret")
	ctx := context.Background()

	ticket, _, err := NewTicketIssuer("topsecret").Issue("u1")
	require.NoError(t, err)

	f.sessions.On("Get", ctx, "u1").Return(nil, nil)
	f.chat.On("KickFromGuild", "u1", KickReason).Return(nil)
	f.sessions.On("SetPhase", ctx, "u1", models.PhaseConfirmed).
		Return(&models.VerificationSession{UserID: "u1", Phase: models.PhaseConfirmed}, nil)

	require.NoError(t, f.svc.ConfirmInGame(ctx, "u1", ticket))
	f.chat.AssertExpectations(t)
}

// --- Complete ---

func TestComplete_GrantsRoleAndUpserts(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("IsGuildMember", "u1").Return(true, nil)
	f.chat.On("AddVerifiedRole", "u1").Return(nil)
	f.users.On("Upsert", ctx, "u1").Return(&models.VerifiedUser{
		UserID: "u1", Verified: true, Timestamp: time.Now(),
	}, nil)
	f.sessions.On("SetPhase", ctx, "u1", models.PhaseCompleted).
		Return(&models.VerificationSession{UserID: "u1", Phase: models.PhaseCompleted}, nil)

	require.NoError(t, f.svc.Complete(ctx, "u1"))
	f.chat.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestComplete_NotInGuild(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("IsGuildMember", "u1").Return(false, nil)

	assert.ErrorIs(t, f.svc.Complete(ctx, "u1"), ErrNotInGuild)
	f.chat.AssertNotCalled(t, "AddVerifiedRole", mock.Anything)
	f.users.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestComplete_RoleGrantFailureSkipsUpsert(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("IsGuildMember", "u1").Return(true, nil)
	f.chat.On("AddVerifiedRole", "u1").Return(errors.New("missing permissions"))

	assert.Error(t, f.svc.Complete(ctx, "u1"))
	f.users.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestComplete_IsIdempotent(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	f.chat.On("IsGuildMember", "u1").Return(true, nil).Times(2)
	f.chat.On("AddVerifiedRole", "u1").Return(nil).Times(2)
	f.users.On("Upsert", ctx, "u1").Return(&models.VerifiedUser{
		UserID: "u1", Verified: true, Timestamp: time.Now(),
	}, nil).Times(2)
	f.sessions.On("SetPhase", ctx, "u1", models.PhaseCompleted).
		Return(&models.VerificationSession{UserID: "u1", Phase: models.PhaseCompleted}, nil).Times(2)

	require.NoError(t, f.svc.Complete(ctx, "u1"))
	require.NoError(t, f.svc.Complete(ctx, "u1"))
	f.users.AssertExpectations(t)
}
