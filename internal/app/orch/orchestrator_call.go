package orch

import (
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// Ready marks sid as ready. Once both members are ready, the one that was
// waiting gets a room event and starts offering: room-created if it opened
// the room, room-joined otherwise.
func (o *Orchestrator) Ready(sid core.SessionID) error {
	roomID, ok := o.Registry.AppointmentOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return ErrNotInRoom
	}
	offerSID, offerer, paired := room.MarkReady(sid)
	if !paired {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("waiting for peer")
		return nil
	}

	kind := domain.KindRoomJoined
	if offerer.Meta().User.ID == room.Room().Creator {
		kind = domain.KindRoomCreated
	}
	data, err := domain.Encode(domain.NewRoomEvent(kind, roomID))
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("offerer", string(offerSID)).Str("event", string(kind)).Msg("pair ready")
	if err := room.SendTo(offerSID, data); err != nil {
		o.handleDropped(room, []core.MemberSession{offerer})
		return err
	}
	return nil
}

// Bye relays a hang-up and resets readiness on both sides so the next
// start pairs from scratch.
func (o *Orchestrator) Bye(sid core.SessionID, msg domain.Message) error {
	roomID, ok := o.Registry.AppointmentOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return ErrNotInRoom
	}
	peerSID, _, hasPeer := room.Peer(sid)
	room.ClearReady(sid, peerSID)
	if !hasPeer {
		return nil
	}
	return o.Relay(sid, msg)
}
