package signal

import "github.com/dkeye/Consult/internal/domain"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	ctl.sendMessage(conn, domain.Message{Kind: domain.KindPong, Room: conn.room})
}
