package orch

import (
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join puts sid into the appointment room. A connection is in at most one
// room; joining another one leaves the first.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.AppointmentID) error {
	if current, ok := o.Registry.AppointmentOf(sid); ok {
		if current == roomID {
			return nil
		}
		o.KickBySID(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("left previous room")
	}
	session, ok := o.Registry.Lookup(sid)
	if !ok {
		return ErrNotInRoom
	}
	room := o.Rooms.GetOrCreate(roomID)
	if err := room.AddMember(sid, session); err != nil {
		if room.MemberCount() == 0 {
			o.Rooms.StopRoom(roomID)
		}
		return err
	}
	o.Registry.Seat(sid, roomID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("added to room")
	return nil
}

// KickBySID removes sid from its room. If it had announced readiness, the
// peer is told the call is over.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	roomID, ok := o.Registry.AppointmentOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if ok {
		if peerSID, _, ok := room.Peer(sid); ok && room.IsReady(sid) && room.IsReady(peerSID) {
			o.notifyBye(room, roomID, peerSID)
		}
		room.RemoveMember(sid)
		if room.MemberCount() == 0 {
			o.Rooms.StopRoom(roomID)
			log.Info().Str("module", "orch").Str("room", string(roomID)).Msg("room closed")
		}
	}
	o.Registry.Unseat(sid)
}

func (o *Orchestrator) notifyBye(room core.RoomService, roomID domain.AppointmentID, to core.SessionID) {
	room.ClearReady(to)
	data, err := domain.Encode(domain.NewBye("", roomID))
	if err != nil {
		return
	}
	if err := room.SendTo(to, data); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(to)).Msg("bye on leave not delivered")
	}
}

// EvictRoom drops every member of the room and forgets it.
func (o *Orchestrator) EvictRoom(id domain.AppointmentID) {
	for _, snap := range o.Registry.Occupants(id) {
		o.Registry.Cancel(snap.SID)
		o.KickBySID(snap.SID)
	}
	o.Rooms.StopRoom(id)
}

// Disconnect forgets a closed connection.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.KickBySID(sid)
	o.Registry.Unbind(sid)
}
