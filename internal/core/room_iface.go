package core

import (
	"errors"

	"github.com/dkeye/Consult/internal/domain"
)

var (
	ErrRoomFull      = errors.New("room full")
	ErrAlreadyMember = errors.New("already a member")
	ErrNoPeer        = errors.New("no peer in room")
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID          `json:"id"`
	Username string                 `json:"username"`
	Kind     domain.ParticipantKind `json:"kind,omitempty"`
	Ready    bool                   `json:"ready"`
}

// RoomService is the core-facing API of an appointment room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	// AddMember fails with ErrRoomFull once two members are in.
	AddMember(sid SessionID, ms MemberSession) error
	RemoveMember(sid SessionID)
	Peer(sid SessionID) (SessionID, MemberSession, bool)

	// MarkReady flags sid as ready. When the other member was already
	// waiting, it returns that member: it is the one that should offer.
	MarkReady(sid SessionID) (SessionID, MemberSession, bool)
	ClearReady(sids ...SessionID)
	IsReady(sid SessionID) bool

	// Relay sends data to every member except from.
	Relay(from SessionID, data Frame) PublishResult
	SendTo(sid SessionID, data Frame) error
}

type RoomInfo struct {
	ID          domain.AppointmentID `json:"id"`
	MemberCount int                  `json:"member_count"`
	Members     []MemberDTO          `json:"members,omitempty"`
}

type RoomManager interface {
	GetOrCreate(id domain.AppointmentID) RoomService
	Get(id domain.AppointmentID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.AppointmentID)
}
