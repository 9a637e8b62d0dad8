// Package signal carries signaling messages: the server side WebSocket
// controller for appointment rooms and the participant side channels
// (WebSocket, MQTT, in-process).
package signal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/auth"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const sendBuffer = 32

// Verifier checks an appointment token.
type Verifier interface {
	Verify(token string, room domain.AppointmentID) (auth.Claims, error)
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Auth    Verifier
	Limiter *RoomRateLimiter

	ReadLimit  int64
	PingPeriod time.Duration
}

func NewSignalWSController(o *orch.Orchestrator, v Verifier, limiter *RoomRateLimiter, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		Auth:       v,
		Limiter:    limiter,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

// WsSignalConn is one participant's socket. Writes go through send and a
// single write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	room domain.AppointmentID
	user domain.UserID

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// TokenFrom finds the appointment token on a request: bearer header, then
// whatever an earlier middleware stored under "token", then the query string.
// Browsers cannot set headers on a websocket upgrade, so the query stays as
// the last resort.
func TokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimPrefix(h, "Bearer "); t != "" {
			return t
		}
	}
	if t := c.GetString("token"); t != "" {
		return t
	}
	return c.Query("token")
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	room, err := domain.ParseAppointmentID(c.Query("room"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad_room"})
		return
	}
	claims, err := ctl.Auth.Verify(TokenFrom(c), room)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", string(room)).Msg("ws auth failed")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := claims.Participant()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.ID)).Str("room", string(room)).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
		room: room,
		user: user.ID,
	}

	sess := core.NewMemberSession(domain.NewMember(user), conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, sess, cancel)

	go ctl.writePump(ctx, conn)

	if err := ctl.Orch.Join(sid, room); err != nil {
		reason := "join_failed"
		if errors.Is(err, core.ErrRoomFull) {
			reason = "room_full"
		}
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join refused")
		ctl.sendMessage(conn, domain.NewError(room, reason))
		// let the write pump flush the error before the socket goes
		time.AfterFunc(time.Second, func() {
			cancel()
			conn.Close()
		})
		ctl.Orch.Registry.Unbind(sid)
		return
	}

	go ctl.readPump(ctx, cancel, sid, conn)
}
