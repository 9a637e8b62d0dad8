// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 36
	MaxUsernameLen = 36
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDInvalid   = errors.New("user id invalid")
)

type UserID string

// ParticipantKind is the side of the consultation a user is on.
type ParticipantKind string

const (
	Patient    ParticipantKind = "patient"
	Specialist ParticipantKind = "specialist"
)

type User struct {
	ID       UserID          `json:"id"`
	Username string          `json:"username"`
	Kind     ParticipantKind `json:"kind,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(username string, kind ParticipantKind) (*User, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	id := UserID(uuid.NewString())
	return &User{ID: id, Username: username, Kind: kind}, nil
}

// UserFromToken rebuilds a user from verified token claims.
func UserFromToken(id UserID, username string, kind ParticipantKind) (*User, error) {
	if len(id) == 0 || len(id) > MaxUserIDLen {
		return nil, ErrUserIDInvalid
	}
	if username == "" {
		username = string(id)
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &User{ID: id, Username: username, Kind: kind}, nil
}
