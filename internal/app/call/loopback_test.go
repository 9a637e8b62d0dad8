package call_test

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/adapters/media"
	"github.com/dkeye/Consult/internal/adapters/preview"
	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/call"
	"github.com/dkeye/Consult/internal/domain"
)

type party struct {
	ctl    *call.Controller
	local  *preview.Local
	remote *preview.Remote
}

func join(t *testing.T, ctx context.Context, hub *signal.MemoryHub, peers *rtc.Factory, room domain.AppointmentID, kind domain.ParticipantKind) party {
	t.Helper()
	user, err := domain.NewUser(string(kind), kind)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := hub.Connect(room, user)
	if err != nil {
		t.Fatalf("connect %s: %v", kind, err)
	}
	t.Cleanup(func() { _ = ch.Close() })

	p := party{local: preview.NewLocal(), remote: preview.NewRemote()}
	p.ctl, err = call.NewController(ctx, call.Config{
		Room:        room,
		Token:       string(kind),
		Signal:      ch,
		Media:       media.NewSource(media.Config{}),
		Peers:       peers,
		LocalSink:   p.local,
		RemoteSink:  p.remote,
		Constraints: domain.MediaConstraints{Audio: domain.AudioConstraints{Enabled: true}},
	})
	if err != nil {
		t.Fatalf("controller %s: %v", kind, err)
	}
	t.Cleanup(p.ctl.Close)
	return p
}

func waitUntil(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLoopbackCallWithRealPeers(t *testing.T) {
	if testing.Short() {
		t.Skip("real ICE/DTLS handshake")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := rtc.DefaultConfig()
	cfg.STUNURLs = nil
	cfg.CandidatePoolSize = 0
	cfg.IncludeLoopback = true
	peers, err := rtc.NewFactory(cfg)
	if err != nil {
		t.Fatal(err)
	}

	hub := signal.NewMemoryHub()
	const room domain.AppointmentID = "apt-loopback"
	patient := join(t, ctx, hub, peers, room, domain.Patient)
	specialist := join(t, ctx, hub, peers, room, domain.Specialist)

	if err := patient.ctl.Start(ctx); err != nil {
		t.Fatalf("patient start: %v", err)
	}
	if err := specialist.ctl.Start(ctx); err != nil {
		t.Fatalf("specialist start: %v", err)
	}

	waitUntil(t, 15*time.Second, "both sides connected", func() bool {
		return patient.ctl.State().Phase == domain.PhaseConnected &&
			specialist.ctl.State().Phase == domain.PhaseConnected
	})
	if r := patient.ctl.State().Role; r != domain.RoleOfferer {
		t.Fatalf("first ready participant should offer, got %s", r)
	}
	if r := specialist.ctl.State().Role; r != domain.RoleAnswerer {
		t.Fatalf("second ready participant should answer, got %s", r)
	}
	if len(patient.local.Streams()) != 1 {
		t.Fatalf("local preview should show the microphone, got %+v", patient.local.Streams())
	}

	waitUntil(t, 15*time.Second, "media both ways", func() bool {
		return patient.remote.Receiving() && specialist.remote.Receiving()
	})

	if err := patient.ctl.HangUp(ctx); err != nil {
		t.Fatalf("hang up: %v", err)
	}
	waitUntil(t, 5*time.Second, "peer sees bye", func() bool {
		return specialist.ctl.State().Phase == domain.PhaseClosed
	})
	if len(patient.remote.Streams()) != 0 || len(patient.local.Streams()) != 0 {
		t.Fatal("previews should be cleared after hang up")
	}
}
