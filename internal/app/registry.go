package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// Occupant is one signaling connection seated in an appointment.
type Occupant struct {
	SID     core.SessionID
	Session core.MemberSession
	Kind    domain.ParticipantKind
	Since   time.Time
}

type connection struct {
	appointment domain.AppointmentID
	session     core.MemberSession
	cancel      context.CancelFunc
	seated      time.Time
}

// Registry tracks live signaling connections and the appointment each one
// is seated in. Lookups by connection, by appointment and by member session
// are all indexed.
type Registry struct {
	mu       sync.RWMutex
	conns    map[core.SessionID]*connection
	seats    map[domain.AppointmentID]map[core.SessionID]struct{}
	byMember map[core.MemberSession]core.SessionID
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[core.SessionID]*connection),
		seats:    make(map[domain.AppointmentID]map[core.SessionID]struct{}),
		byMember: make(map[core.MemberSession]core.SessionID),
		now:      time.Now,
	}
}

// Bind registers a fresh connection. cancel tears down its pumps.
func (r *Registry) Bind(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[sid]; ok {
		r.unseatLocked(sid, old)
		delete(r.byMember, old.session)
	}
	r.conns[sid] = &connection{session: sess, cancel: cancel}
	r.byMember[sess] = sid
	u := sess.Meta().User
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(u.ID)).Str("kind", string(u.Kind)).Msg("bound signal")
}

func (r *Registry) Lookup(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conns[sid]; ok {
		return c.session, true
	}
	return nil, false
}

// Unbind forgets sid, including its seat.
func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[sid]
	if !ok {
		return
	}
	r.unseatLocked(sid, c)
	delete(r.byMember, c.session)
	delete(r.conns, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

// AppointmentOf reports the appointment sid is seated in.
func (r *Registry) AppointmentOf(sid core.SessionID) (domain.AppointmentID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[sid]
	if !ok || c.appointment == "" {
		return "", false
	}
	return c.appointment, true
}

// Seat moves sid into appointment, leaving any previous one.
func (r *Registry) Seat(sid core.SessionID, appointment domain.AppointmentID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[sid]
	if !ok {
		return false
	}
	if c.appointment == appointment {
		return true
	}
	r.unseatLocked(sid, c)
	seats := r.seats[appointment]
	if seats == nil {
		seats = make(map[core.SessionID]struct{}, domain.MaxRoomMembers)
		r.seats[appointment] = seats
	}
	seats[sid] = struct{}{}
	c.appointment = appointment
	c.seated = r.now()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(appointment)).Msg("seated")
	return true
}

// Unseat clears sid's appointment but keeps the connection bound.
func (r *Registry) Unseat(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[sid]; ok && c.appointment != "" {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(c.appointment)).Msg("unseated")
		r.unseatLocked(sid, c)
	}
}

func (r *Registry) unseatLocked(sid core.SessionID, c *connection) {
	if c.appointment == "" {
		return
	}
	if seats := r.seats[c.appointment]; seats != nil {
		delete(seats, sid)
		if len(seats) == 0 {
			delete(r.seats, c.appointment)
		}
	}
	c.appointment = ""
	c.seated = time.Time{}
}

// Occupants lists the connections seated in appointment, earliest first.
func (r *Registry) Occupants(appointment domain.AppointmentID) []Occupant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seats := r.seats[appointment]
	out := make([]Occupant, 0, len(seats))
	for sid := range seats {
		c := r.conns[sid]
		out = append(out, Occupant{
			SID:     sid,
			Session: c.session,
			Kind:    c.session.Meta().User.Kind,
			Since:   c.seated,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Since.Equal(out[j].Since) {
			return out[i].SID < out[j].SID
		}
		return out[i].Since.Before(out[j].Since)
	})
	return out
}

// SIDOf finds the connection that owns ms.
func (r *Registry) SIDOf(ms core.MemberSession) (core.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byMember[ms]
	return sid, ok
}

// Cancel stops sid's pumps. The entry stays until the read pump unbinds it.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	c, ok := r.conns[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if c.cancel != nil {
		c.cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
