package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

var (
	ErrTicketRequired = errors.New("verification ticket required")
	ErrTicketInvalid  = errors.New("verification ticket invalid")
)

const ticketTTL = 24 * time.Hour

// GameLink — собранная ссылка для пользователя плюс идентификатор тикета,
// который мы записываем в сессию.
type GameLink struct {
	URL      string
	TicketID string
}

// LinkEncoder builds the outbound link that carries the user identifier to
// the game. The two implementations are not interchangeable: the game must
// be deployed against the matching variant.
type LinkEncoder interface {
	Encode(userID, username, ticket string) (string, error)
}

// QueryLinkEncoder — вариант с "голым" идентификатором: GAME_URL?userId=<id>.
type QueryLinkEncoder struct {
	BaseURL string
}

func (e *QueryLinkEncoder) Encode(userID, _, ticket string) (string, error) {
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return "", fmt.Errorf("game link: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	if ticket != "" {
		q.Set("ticket", ticket)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type launchData struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Ticket   string `json:"ticket,omitempty"`
}

// LaunchDataLinkEncoder — вариант для платформы с place id: структурный
// payload (JSON) уходит одним percent-encoded параметром launchData.
type LaunchDataLinkEncoder struct {
	PlaceID string
}

func (e *LaunchDataLinkEncoder) Encode(userID, username, ticket string) (string, error) {
	payload, err := json.Marshal(launchData{UserID: userID, Username: username, Ticket: ticket})
	if err != nil {
		return "", fmt.Errorf("game link: marshal launch data: %w", err)
	}
	return fmt.Sprintf(
		"https://www.roblox.com/games/start?placeId=%s&launchData=%s",
		url.QueryEscape(e.PlaceID),
		url.QueryEscape(string(payload)),
	), nil
}

// TicketIssuer подписывает и проверяет тикеты (HS256). Пустой secret
// выключает проверку целиком — остаётся исходное поведение "верим вызывающему".
type TicketIssuer struct {
	secret []byte
}

func NewTicketIssuer(secret string) *TicketIssuer {
	if secret == "" {
		return &TicketIssuer{}
	}
	return &TicketIssuer{secret: []byte(secret)}
}

func (t *TicketIssuer) Enabled() bool { return len(t.secret) > 0 }

// Issue returns the signed ticket and its id (jti). Disabled issuer returns
// empty strings; links then carry no ticket at all.
func (t *TicketIssuer) Issue(userID string) (ticket, ticketID string, err error) {
	if !t.Enabled() {
		return "", "", nil
	}
	ticketID = ulid.Make().String()
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        ticketID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ticketTTL)),
	}
	ticket, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("ticket sign: %w", err)
	}
	return ticket, ticketID, nil
}

// Verify validates signature and subject and returns the ticket id.
func (t *TicketIssuer) Verify(ticket, userID string) (string, error) {
	if !t.Enabled() {
		return "", nil
	}
	if ticket == "" {
		return "", ErrTicketRequired
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(ticket, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrTicketInvalid
	}
	if claims.Subject != userID {
		return "", ErrTicketInvalid
	}
	return claims.ID, nil
}
