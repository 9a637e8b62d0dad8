package domain

import "errors"

const MaxAppointmentIDLen = 64

var ErrAppointmentIDInvalid = errors.New("appointment id invalid")

// AppointmentID identifies a scheduled consultation. It doubles as the
// signaling room name: every message for one call carries it in "room".
type AppointmentID string

func ParseAppointmentID(raw string) (AppointmentID, error) {
	if raw == "" || len(raw) > MaxAppointmentIDLen {
		return "", ErrAppointmentIDInvalid
	}
	return AppointmentID(raw), nil
}

func (id AppointmentID) String() string { return string(id) }

// Room is the signaling scope of one appointment. At most two members.
type Room struct {
	ID      AppointmentID
	Creator UserID
}

const MaxRoomMembers = 2
