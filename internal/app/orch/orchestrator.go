// Package orch runs appointment rooms on the signaling server: membership,
// ready pairing and relaying between the two participants.
package orch

import (
	"errors"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNotInRoom = errors.New("not in a room")

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Policy: policy}
}

// Relay forwards msg from sid to the other member of its room.
func (o *Orchestrator) Relay(sid core.SessionID, msg domain.Message) error {
	roomID, ok := o.Registry.AppointmentOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return ErrNotInRoom
	}
	data, err := domain.Encode(msg)
	if err != nil {
		return err
	}
	res := room.Relay(sid, data)
	if res.SendTo == 0 && len(res.Dropped) == 0 {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("type", string(msg.Kind)).Msg("relay: peer not connected")
	}
	o.handleDropped(room, res.Dropped)
	return nil
}

// Send delivers msg to one member.
func (o *Orchestrator) Send(sid core.SessionID, msg domain.Message) error {
	sess, ok := o.Registry.Lookup(sid)
	if !ok {
		return ErrNotInRoom
	}
	data, err := domain.Encode(msg)
	if err != nil {
		return err
	}
	return sess.Signal().TrySend(data)
}

func (o *Orchestrator) handleDropped(room core.RoomService, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			if sid, ok := o.Registry.SIDOf(slow); ok {
				log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow member")
				o.Registry.Cancel(sid)
				o.KickBySID(sid)
			}
		case app.DropFrame, app.NoAction:
		}
	}
}
