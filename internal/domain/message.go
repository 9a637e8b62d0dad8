package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags a signaling message.
type Kind string

const (
	KindOffer       Kind = "offer"
	KindAnswer      Kind = "answer"
	KindCandidate   Kind = "candidate"
	KindReady       Kind = "ready"
	KindRoomCreated Kind = "room-created"
	KindRoomJoined  Kind = "room-joined"
	KindBye         Kind = "bye"

	// Server housekeeping, never produced by the call engine.
	KindError Kind = "error"
	KindPing  Kind = "ping"
	KindPong  Kind = "pong"
)

var ErrMissingKind = errors.New("signaling message without type")

// Message is one signaling message. Which fields are meaningful depends on
// Kind: SDP for offer/answer, the three candidate fields for candidate,
// Error for error. Token and Room ride on every message.
type Message struct {
	Kind  Kind
	Token string
	Room  AppointmentID

	SDP string

	Candidate     *string
	SDPMid        *string
	SDPMLineIndex *uint16

	Error string
}

func NewReady(token string, room AppointmentID) Message {
	return Message{Kind: KindReady, Token: token, Room: room}
}

func NewBye(token string, room AppointmentID) Message {
	return Message{Kind: KindBye, Token: token, Room: room}
}

func NewOffer(token string, room AppointmentID, sdp string) Message {
	return Message{Kind: KindOffer, Token: token, Room: room, SDP: sdp}
}

func NewAnswer(token string, room AppointmentID, sdp string) Message {
	return Message{Kind: KindAnswer, Token: token, Room: room, SDP: sdp}
}

// NewCandidate builds a candidate message. A nil candidate is the
// end-of-candidates marker.
func NewCandidate(token string, room AppointmentID, candidate, sdpMid *string, sdpMLineIndex *uint16) Message {
	return Message{
		Kind:          KindCandidate,
		Token:         token,
		Room:          room,
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	}
}

func NewRoomEvent(kind Kind, room AppointmentID) Message {
	return Message{Kind: kind, Room: room}
}

func NewError(room AppointmentID, reason string) Message {
	return Message{Kind: KindError, Room: room, Error: reason}
}

// IsRoomEvent reports whether m tells this side to start offering.
func (m Message) IsRoomEvent() bool {
	return m.Kind == KindRoomCreated || m.Kind == KindRoomJoined
}

// EndOfCandidates reports whether a candidate message carries no candidate.
func (m Message) EndOfCandidates() bool {
	return m.Kind == KindCandidate && (m.Candidate == nil || *m.Candidate == "")
}

type wireMessage struct {
	Type          Kind          `json:"type"`
	SDP           string        `json:"sdp,omitempty"`
	Candidate     *string       `json:"candidate,omitempty"`
	SDPMid        *string       `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16       `json:"sdpMLineIndex,omitempty"`
	Error         string        `json:"error,omitempty"`
	Token         string        `json:"token,omitempty"`
	Room          AppointmentID `json:"room,omitempty"`
}

// candidate fields are always present on the wire so null can say
// "no more candidates".
type wireCandidate struct {
	Type          Kind          `json:"type"`
	Candidate     *string       `json:"candidate"`
	SDPMid        *string       `json:"sdpMid"`
	SDPMLineIndex *uint16       `json:"sdpMLineIndex"`
	Token         string        `json:"token,omitempty"`
	Room          AppointmentID `json:"room,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.Kind == KindCandidate {
		return json.Marshal(wireCandidate{
			Type:          m.Kind,
			Candidate:     m.Candidate,
			SDPMid:        m.SDPMid,
			SDPMLineIndex: m.SDPMLineIndex,
			Token:         m.Token,
			Room:          m.Room,
		})
	}
	return json.Marshal(wireMessage{
		Type:  m.Kind,
		SDP:   m.SDP,
		Error: m.Error,
		Token: m.Token,
		Room:  m.Room,
	})
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		Kind:          w.Type,
		Token:         w.Token,
		Room:          w.Room,
		SDP:           w.SDP,
		Candidate:     w.Candidate,
		SDPMid:        w.SDPMid,
		SDPMLineIndex: w.SDPMLineIndex,
		Error:         w.Error,
	}
	return nil
}

// Encode renders m as one JSON frame.
func Encode(m Message) ([]byte, error) {
	if m.Kind == "" {
		return nil, ErrMissingKind
	}
	return json.Marshal(m)
}

// Decode parses one JSON frame. Unknown kinds decode fine; it is up to the
// consumer to ignore them.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode signaling message: %w", err)
	}
	if m.Kind == "" {
		return Message{}, ErrMissingKind
	}
	return m, nil
}
