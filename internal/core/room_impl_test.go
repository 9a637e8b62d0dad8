package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Consult/internal/domain"
)

type recordingConn struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (c *recordingConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordingConn) Close() {}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newMember(t *testing.T, id string) (MemberSession, *recordingConn) {
	t.Helper()
	u, err := domain.UserFromToken(domain.UserID(id), id, domain.Patient)
	if err != nil {
		t.Fatalf("UserFromToken: %v", err)
	}
	conn := &recordingConn{}
	return NewMemberSession(domain.NewMember(u), conn), conn
}

func TestRoomRejectsThirdMember(t *testing.T) {
	room := NewRoomService("apt-1")
	for _, id := range []string{"a", "b"} {
		ms, _ := newMember(t, id)
		if err := room.AddMember(SessionID(id), ms); err != nil {
			t.Fatalf("AddMember(%s): %v", id, err)
		}
	}
	ms, _ := newMember(t, "c")
	if err := room.AddMember("c", ms); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if room.Room().Creator != "a" {
		t.Errorf("creator = %q, want a", room.Room().Creator)
	}
}

func TestRoomMarkReadyPairsEarlierMember(t *testing.T) {
	room := NewRoomService("apt-1")
	a, _ := newMember(t, "a")
	b, _ := newMember(t, "b")
	_ = room.AddMember("a", a)
	_ = room.AddMember("b", b)

	if _, _, ok := room.MarkReady("b"); ok {
		t.Fatal("a single ready member must not pair")
	}
	sid, ms, ok := room.MarkReady("a")
	if !ok {
		t.Fatal("second ready member should pair")
	}
	if sid != "b" || ms != b {
		t.Errorf("offerer = %s, want b (ready first)", sid)
	}

	room.ClearReady("a", "b")
	for _, m := range room.MembersSnapshot() {
		if m.Ready {
			t.Errorf("member %s still ready after ClearReady", m.ID)
		}
	}
}

func TestRoomRelaySkipsSender(t *testing.T) {
	room := NewRoomService("apt-1")
	a, connA := newMember(t, "a")
	b, connB := newMember(t, "b")
	_ = room.AddMember("a", a)
	_ = room.AddMember("b", b)

	res := room.Relay("a", Frame(`{"type":"offer"}`))
	if res.SendTo != 1 || len(res.Dropped) != 0 {
		t.Fatalf("unexpected relay result %+v", res)
	}
	if connA.count() != 0 || connB.count() != 1 {
		t.Errorf("sender got %d frames, peer got %d", connA.count(), connB.count())
	}

	connB.err = errors.New("full")
	res = room.Relay("a", Frame(`{}`))
	if len(res.Dropped) != 1 || res.Dropped[0] != b {
		t.Errorf("expected b to be reported as dropped, got %+v", res)
	}
}

func TestRoomRemoveMemberForgetsReady(t *testing.T) {
	room := NewRoomService("apt-1")
	a, _ := newMember(t, "a")
	b, _ := newMember(t, "b")
	_ = room.AddMember("a", a)
	_ = room.AddMember("b", b)
	room.MarkReady("a")
	room.RemoveMember("a")

	if _, _, ok := room.Peer("b"); ok {
		t.Fatal("b should be alone")
	}
	a2, _ := newMember(t, "a2")
	_ = room.AddMember("a2", a2)
	room.MarkReady("b")
	if sid, _, ok := room.MarkReady("a2"); !ok || sid != "b" {
		t.Errorf("MarkReady(a2) = %s, %v; want b, true", sid, ok)
	}
}
