package call

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type fakeSignal struct {
	in chan domain.Message

	mu      sync.Mutex
	sent    []domain.Message
	sendErr error
}

func newFakeSignal() *fakeSignal {
	// unbuffered: a completed delivery means the pump has taken the message
	return &fakeSignal{in: make(chan domain.Message)}
}

func (f *fakeSignal) Send(_ context.Context, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSignal) Subscribe() (<-chan domain.Message, func()) {
	return f.in, func() {}
}

func (f *fakeSignal) Close() error { return nil }

func (f *fakeSignal) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeSignal) messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.sent...)
}

func (f *fakeSignal) kinds() []domain.Kind {
	var out []domain.Kind
	for _, m := range f.messages() {
		out = append(out, m.Kind)
	}
	return out
}

func (f *fakeSignal) count(kind domain.Kind) int {
	n := 0
	for _, m := range f.messages() {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

type fakeTrack struct {
	*webrtc.TrackLocalStaticSample
	enabled atomic.Bool
	stopped atomic.Bool
}

func newFakeTrack(kind webrtc.RTPCodecType) *fakeTrack {
	mime := webrtc.MimeTypeOpus
	if kind == webrtc.RTPCodecTypeVideo {
		mime = webrtc.MimeTypeVP8
	}
	inner, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, kind.String(), "fake")
	if err != nil {
		panic(err)
	}
	t := &fakeTrack{TrackLocalStaticSample: inner}
	t.enabled.Store(true)
	return t
}

func (t *fakeTrack) Enabled() bool     { return t.enabled.Load() }
func (t *fakeTrack) SetEnabled(v bool) { t.enabled.Store(v) }
func (t *fakeTrack) Stop()             { t.stopped.Store(true) }

type fakeMedia struct {
	err   error
	block chan struct{}

	mu    sync.Mutex
	calls int
	last  []*fakeTrack
	asked domain.MediaConstraints
}

func (m *fakeMedia) Acquire(ctx context.Context, c domain.MediaConstraints) (*core.TrackSet, error) {
	m.mu.Lock()
	m.calls++
	m.asked = c
	block := m.block
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	audio := newFakeTrack(webrtc.RTPCodecTypeAudio)
	video := newFakeTrack(webrtc.RTPCodecTypeVideo)
	m.mu.Lock()
	m.last = []*fakeTrack{audio, video}
	m.mu.Unlock()
	return core.NewTrackSet([]core.LocalTrack{audio}, []core.LocalTrack{video}), nil
}

func (m *fakeMedia) tracks() []*fakeTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type fakePeer struct {
	mu          sync.Mutex
	local       *webrtc.SessionDescription
	remote      *webrtc.SessionDescription
	candidates  []webrtc.ICECandidateInit
	tracks      []core.LocalTrack
	closed      bool
	onCandidate func(*webrtc.ICECandidateInit)
	onTrack     func(core.RemoteTrack)

	// gatherOnSetLocal emits these candidates from inside SetLocalDescription.
	gatherOnSetLocal []*webrtc.ICECandidateInit
	remoteErr        error

	// holdSetLocal, when set, makes SetLocalDescription signal inSetLocal
	// and wait for the channel to close.
	holdSetLocal chan struct{}
	inSetLocal   chan struct{}
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- offer\r\n"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote description")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\no=- answer\r\n"}, nil
}

func (p *fakePeer) SetLocalDescription(d webrtc.SessionDescription) error {
	if p.holdSetLocal != nil {
		close(p.inSetLocal)
		<-p.holdSetLocal
	}
	p.mu.Lock()
	p.local = &d
	gather := p.gatherOnSetLocal
	cb := p.onCandidate
	p.mu.Unlock()
	for _, c := range gather {
		cb(c)
	}
	return nil
}

func (p *fakePeer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteErr != nil {
		return p.remoteErr
	}
	p.remote = &d
	return nil
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) AddTrack(t core.LocalTrack) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, t)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = fn
}

func (p *fakePeer) OnTrack(fn func(core.RemoteTrack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = fn
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) emitCandidate(c *webrtc.ICECandidateInit) {
	p.mu.Lock()
	cb := p.onCandidate
	p.mu.Unlock()
	cb(c)
}

func (p *fakePeer) emitTrack(t core.RemoteTrack) {
	p.mu.Lock()
	cb := p.onTrack
	p.mu.Unlock()
	cb(t)
}

type fakePeers struct {
	mu      sync.Mutex
	created []*fakePeer
	prepare func(*fakePeer)
	err     error
}

func (f *fakePeers) NewPeer(context.Context) (core.PeerConnection, error) {
	p := &fakePeer{}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.prepare != nil {
		f.prepare(p)
	}
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakePeers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakePeers) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

type fakeRemoteTrack struct {
	id string
}

func (t fakeRemoteTrack) ID() string                { return t.id }
func (t fakeRemoteTrack) StreamID() string          { return "remote" }
func (t fakeRemoteTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeVideo }
func (t fakeRemoteTrack) SSRC() webrtc.SSRC         { return 1 }
func (t fakeRemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, errors.New("eof")
}

type fakeSink struct {
	mu       sync.Mutex
	local    *core.TrackSet
	remote   []core.RemoteTrack
	clears   int
	attaches int
}

func (s *fakeSink) Attach(ts *core.TrackSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = ts
	s.attaches++
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = nil
	s.remote = nil
	s.clears++
}

type fakeRemoteSink struct{ *fakeSink }

func (s fakeRemoteSink) Attach(t core.RemoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = append(s.remote, t)
}

func (s *fakeSink) snapshot() (local *core.TrackSet, remote int, clears int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local, len(s.remote), s.clears
}
