package signal

import (
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// authorize checks that msg is for the connection's room and carries a
// token of the connected participant.
func (ctl *SignalWSController) authorize(sid core.SessionID, conn *WsSignalConn, msg domain.Message) bool {
	if msg.Room != conn.room {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("room", string(msg.Room)).Msg("message for another room")
		ctl.sendMessage(conn, domain.NewError(conn.room, "wrong_room"))
		return false
	}
	claims, err := ctl.Auth.Verify(msg.Token, conn.room)
	if err != nil || claims.User != conn.user {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("message token rejected")
		ctl.sendMessage(conn, domain.NewError(conn.room, "unauthorized"))
		return false
	}
	return true
}

func (ctl *SignalWSController) handleReady(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(conn.user) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("user", string(conn.user)).Msg("ready rate limited")
		ctl.sendMessage(conn, domain.NewError(conn.room, "rate_limited"))
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(conn.room)).Msg("ready")
	if err := ctl.Orch.Ready(sid); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ready")
		ctl.sendMessage(conn, domain.NewError(conn.room, "not_in_room"))
	}
}

// handleBye relays a hang-up; the connection stays open for the next call.
func (ctl *SignalWSController) handleBye(
	sid core.SessionID,
	conn *WsSignalConn,
	msg domain.Message,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("bye")
	if err := ctl.Orch.Bye(sid, msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bye")
	}
}

func (ctl *SignalWSController) handleRelay(
	sid core.SessionID,
	conn *WsSignalConn,
	msg domain.Message,
) {
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("type", string(msg.Kind)).Msg("relay")
	if err := ctl.Orch.Relay(sid, msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("relay")
		ctl.sendMessage(conn, domain.NewError(conn.room, "not_in_room"))
	}
}
