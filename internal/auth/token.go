// Package auth issues and verifies appointment tokens. A token binds one
// participant to one appointment room.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/gorilla/securecookie"
)

const tokenName = "consult-token"

var (
	ErrNoSecret     = errors.New("token secret is empty")
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongRoom    = errors.New("token is for another appointment")
)

type Claims struct {
	User   domain.UserID          `json:"user"`
	Name   string                 `json:"name,omitempty"`
	Kind   domain.ParticipantKind `json:"kind"`
	Room   domain.AppointmentID   `json:"room"`
	Issued int64                  `json:"issued"`
}

// Participant rebuilds the user the token was issued to.
func (c Claims) Participant() (*domain.User, error) {
	return domain.UserFromToken(c.User, c.Name, c.Kind)
}

type Issuer struct {
	sc  *securecookie.SecureCookie
	ttl time.Duration
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	sc := securecookie.New([]byte(secret), nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(ttl / time.Second))
	return &Issuer{sc: sc, ttl: ttl}, nil
}

func (i *Issuer) Issue(c Claims) (string, error) {
	if _, err := domain.ParseAppointmentID(string(c.Room)); err != nil {
		return "", err
	}
	if _, err := c.Participant(); err != nil {
		return "", err
	}
	c.Issued = time.Now().Unix()
	token, err := i.sc.Encode(tokenName, c)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and age of token. A non-empty room must
// match the room the token was issued for.
func (i *Issuer) Verify(token string, room domain.AppointmentID) (Claims, error) {
	var c Claims
	if err := i.sc.Decode(tokenName, token, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if room != "" && c.Room != room {
		return Claims{}, ErrWrongRoom
	}
	return c, nil
}

func (i *Issuer) TTL() time.Duration { return i.ttl }
