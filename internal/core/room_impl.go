package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room for one appointment.
// It never closes adapter-owned resources.
type roomImpl struct {
	mu     sync.RWMutex
	room   domain.Room
	bySID  map[SessionID]MemberSession
	byUser map[domain.UserID]SessionID
	// ready holds sids in the order they became ready.
	ready []SessionID
}

func NewRoomService(id domain.AppointmentID) RoomService {
	return &roomImpl{
		room:   domain.Room{ID: id},
		bySID:  make(map[SessionID]MemberSession),
		byUser: make(map[domain.UserID]SessionID),
	}
}

func (r *roomImpl) Room() domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.room
}

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) error {
	u := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; ok {
		return ErrAlreadyMember
	}
	if len(r.bySID) >= domain.MaxRoomMembers {
		return ErrRoomFull
	}
	if len(r.bySID) == 0 {
		r.room.Creator = u
	}
	r.bySID[sid] = ms
	r.byUser[u] = sid
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Str("user", string(u)).Msg("member added")
	return nil
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ms, ok := r.bySID[sid]; ok {
		u := ms.Meta().User.ID
		if r.byUser[u] == sid {
			delete(r.byUser, u)
		}
	}
	delete(r.bySID, sid)
	r.dropReady(sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Peer(sid SessionID) (SessionID, MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peerLocked(sid)
}

func (r *roomImpl) peerLocked(sid SessionID) (SessionID, MemberSession, bool) {
	for other, ms := range r.bySID {
		if other != sid {
			return other, ms, true
		}
	}
	return "", nil, false
}

func (r *roomImpl) MarkReady(sid SessionID) (SessionID, MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return "", nil, false
	}
	if !ms.Meta().Ready {
		ms.Meta().Ready = true
		r.ready = append(r.ready, sid)
	}
	peerSID, peer, ok := r.peerLocked(sid)
	if !ok || !peer.Meta().Ready {
		return "", nil, false
	}
	// The member that became ready first offers.
	if r.ready[0] == sid {
		return "", nil, false
	}
	return peerSID, peer, true
}

func (r *roomImpl) ClearReady(sids ...SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range sids {
		if ms, ok := r.bySID[sid]; ok {
			ms.Meta().Ready = false
		}
		r.dropReady(sid)
	}
}

func (r *roomImpl) IsReady(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.bySID[sid]
	return ok && ms.Meta().Ready
}

func (r *roomImpl) dropReady(sid SessionID) {
	for i, s := range r.ready {
		if s == sid {
			r.ready = append(r.ready[:i], r.ready[i+1:]...)
			return
		}
	}
}

func (r *roomImpl) Relay(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("relay result")
	return res
}

func (r *roomImpl) SendTo(sid SessionID, data Frame) error {
	r.mu.RLock()
	ms, ok := r.bySID[sid]
	r.mu.RUnlock()
	if !ok {
		return ErrNoPeer
	}
	return ms.Signal().TrySend(data)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		m := ms.Meta()
		out = append(out, MemberDTO{ID: m.User.ID, Username: m.User.Username, Kind: m.User.Kind, Ready: m.Ready})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
