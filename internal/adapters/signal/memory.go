package signal

import (
	"context"
	"sync"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MemoryHub runs appointment rooms in process with the same orchestrator
// the server uses. Used for loopback calls and tests.
type MemoryHub struct {
	Orch *orch.Orchestrator
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{Orch: orch.New(app.NewRegistry(), app.NewRoomManager(), app.SimplePolicy{})}
}

// Connect joins user to room and returns the participant's channel.
func (h *MemoryHub) Connect(room domain.AppointmentID, user *domain.User) (*MemoryChannel, error) {
	ch := &MemoryChannel{
		hub:   h,
		sid:   core.SessionID(uuid.NewString()),
		room:  room,
		inbox: make(chan core.Frame, sendBuffer),
		done:  make(chan struct{}),
		subs:  newFanout(),
	}
	h.Orch.Registry.Bind(ch.sid, core.NewMemberSession(domain.NewMember(user), memoryConn{ch}), func() { _ = ch.Close() })
	if err := h.Orch.Join(ch.sid, room); err != nil {
		h.Orch.Registry.Unbind(ch.sid)
		return nil, err
	}
	go ch.deliver()
	return ch, nil
}

// MemoryChannel is the participant end of an in-process connection.
type MemoryChannel struct {
	hub   *MemoryHub
	sid   core.SessionID
	room  domain.AppointmentID
	inbox chan core.Frame
	done  chan struct{}
	subs  *fanout

	mu     sync.RWMutex
	closed bool
}

// memoryConn is the hub's end of a MemoryChannel.
type memoryConn struct{ c *MemoryChannel }

func (m memoryConn) TrySend(f core.Frame) error { return m.c.push(f) }
func (m memoryConn) Close()                     { _ = m.c.Close() }

func (c *MemoryChannel) push(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.inbox <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *MemoryChannel) deliver() {
	for {
		select {
		case f := <-c.inbox:
			msg, err := domain.Decode(f)
			if err != nil {
				log.Warn().Err(err).Str("module", "signal.memory").Msg("bad frame")
				continue
			}
			c.subs.publish(msg)
		case <-c.done:
			return
		}
	}
}

// Send routes msg through the hub like the server would.
func (c *MemoryChannel) Send(_ context.Context, msg domain.Message) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrConnClosed
	}
	switch msg.Kind {
	case domain.KindReady:
		return c.hub.Orch.Ready(c.sid)
	case domain.KindBye:
		return c.hub.Orch.Bye(c.sid, msg)
	default:
		return c.hub.Orch.Relay(c.sid, msg)
	}
}

func (c *MemoryChannel) Subscribe() (<-chan domain.Message, func()) {
	return c.subs.subscribe()
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.hub.Orch.Disconnect(c.sid)
	c.subs.close()
	return nil
}
