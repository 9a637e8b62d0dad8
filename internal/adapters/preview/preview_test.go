package preview

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type scriptedTrack struct {
	mu      sync.Mutex
	packets [][]byte
	hold    chan struct{}
}

func (t *scriptedTrack) ID() string                { return "remote-video" }
func (t *scriptedTrack) StreamID() string          { return "remote" }
func (t *scriptedTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }
func (t *scriptedTrack) SSRC() webrtc.SSRC         { return 42 }

func (t *scriptedTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	t.mu.Lock()
	if len(t.packets) > 0 {
		p := t.packets[0]
		t.packets = t.packets[1:]
		t.mu.Unlock()
		return &rtp.Packet{Payload: p}, nil, nil
	}
	t.mu.Unlock()
	<-t.hold
	return nil, nil, io.EOF
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemoteCountsPackets(t *testing.T) {
	tr := &scriptedTrack{packets: [][]byte{make([]byte, 10), make([]byte, 20)}, hold: make(chan struct{})}
	defer close(tr.hold)

	r := NewRemote()
	r.Attach(tr)
	waitFor(t, func() bool {
		s := r.Streams()
		return len(s) == 1 && s[0].Packets == 2
	})
	s := r.Streams()[0]
	if s.Bytes != 30 || s.Kind != "video" {
		t.Fatalf("unexpected stream %+v", s)
	}
	if !r.Receiving() {
		t.Fatal("should be receiving")
	}

	r.Clear()
	if len(r.Streams()) != 0 || r.Receiving() {
		t.Fatal("clear should detach all streams")
	}
}

type stubTrack struct {
	*webrtc.TrackLocalStaticSample
}

func (stubTrack) Enabled() bool   { return true }
func (stubTrack) SetEnabled(bool) {}
func (stubTrack) Stop()           {}

func TestLocalAttachClear(t *testing.T) {
	inner, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "mic", "self")
	if err != nil {
		t.Fatal(err)
	}
	set := core.NewTrackSet([]core.LocalTrack{stubTrack{inner}}, nil)

	l := NewLocal()
	l.Attach(set)
	got := l.Streams()
	if len(got) != 1 || got[0].ID != "mic" || got[0].Kind != "audio" {
		t.Fatalf("unexpected streams %+v", got)
	}
	l.Clear()
	if len(l.Streams()) != 0 {
		t.Fatal("clear should empty the self view")
	}
}
