package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func participant(t *testing.T, id string, kind domain.ParticipantKind) *domain.User {
	t.Helper()
	u, err := domain.UserFromToken(domain.UserID(id), id, kind)
	if err != nil {
		t.Fatalf("UserFromToken: %v", err)
	}
	return u
}

func next(t *testing.T, ch <-chan domain.Message) domain.Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return domain.Message{}
	}
}

func TestMemoryHubPairsAndRelays(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	patient, err := hub.Connect("apt-1", participant(t, "p", domain.Patient))
	if err != nil {
		t.Fatalf("Connect patient: %v", err)
	}
	t.Cleanup(func() { _ = patient.Close() })
	specialist, err := hub.Connect("apt-1", participant(t, "s", domain.Specialist))
	if err != nil {
		t.Fatalf("Connect specialist: %v", err)
	}
	t.Cleanup(func() { _ = specialist.Close() })

	pIn, pStop := patient.Subscribe()
	defer pStop()
	sIn, sStop := specialist.Subscribe()
	defer sStop()

	if err := patient.Send(ctx, domain.NewReady("t", "apt-1")); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := specialist.Send(ctx, domain.NewReady("t", "apt-1")); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if m := next(t, pIn); m.Kind != domain.KindRoomCreated {
		t.Fatalf("patient got %s, want room-created", m.Kind)
	}

	if err := patient.Send(ctx, domain.NewOffer("t", "apt-1", "v=0")); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if m := next(t, sIn); m.Kind != domain.KindOffer || m.SDP != "v=0" {
		t.Fatalf("specialist got %+v", m)
	}

	if err := specialist.Send(ctx, domain.NewBye("t", "apt-1")); err != nil {
		t.Fatalf("bye: %v", err)
	}
	if m := next(t, pIn); m.Kind != domain.KindBye {
		t.Fatalf("patient got %s, want bye", m.Kind)
	}
}

func TestMemoryHubRoomFull(t *testing.T) {
	hub := NewMemoryHub()
	for _, id := range []string{"a", "b"} {
		ch, err := hub.Connect("apt-1", participant(t, id, domain.Patient))
		if err != nil {
			t.Fatalf("Connect(%s): %v", id, err)
		}
		t.Cleanup(func() { _ = ch.Close() })
	}
	if _, err := hub.Connect("apt-1", participant(t, "c", domain.Patient)); !errors.Is(err, core.ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
}

func TestMemoryChannelClosed(t *testing.T) {
	hub := NewMemoryHub()
	ch, err := hub.Connect("apt-1", participant(t, "a", domain.Patient))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ch.Send(context.Background(), domain.NewReady("t", "apt-1")); !errors.Is(err, ErrConnClosed) {
		t.Errorf("Send after close = %v", err)
	}
	if _, ok := hub.Orch.Rooms.Get("apt-1"); ok {
		t.Error("room should be gone once its last member closed")
	}
}

func TestSignalURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/ws/signal?room=apt-1"},
		{"https://consult.example/", "wss://consult.example/api/ws/signal?room=apt-1"},
		{"ws://10.0.0.1:9000", "ws://10.0.0.1:9000/api/ws/signal?room=apt-1"},
	}
	for _, tt := range tests {
		got, err := SignalURL(tt.base, "apt-1")
		if err != nil {
			t.Fatalf("SignalURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("SignalURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
	if _, err := SignalURL("ftp://x", "apt-1"); err == nil {
		t.Error("non websocket scheme must be rejected")
	}
}

func TestReadyStampOrder(t *testing.T) {
	early := readyStamp{At: 1, From: "b"}
	late := readyStamp{At: 2, From: "a"}
	if !late.after(early) || early.after(late) {
		t.Error("later timestamp wins")
	}
	x, y := readyStamp{At: 5, From: "a"}, readyStamp{At: 5, From: "b"}
	if x.after(y) == y.after(x) {
		t.Error("ties must be broken one way")
	}
}
