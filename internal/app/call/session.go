package call

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Session is one call attempt for an appointment: one peer connection, one
// set of local tracks. Everything except the callbacks registered on the
// peer connection runs on the controller loop.
type Session struct {
	room  domain.AppointmentID
	token string

	// gen is the generation this session was started under; current is the
	// controller's counter. A mismatch means the session was hung up.
	gen     uint64
	current *atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	phase  domain.Phase
	role   domain.Role
	tracks *core.TrackSet
	pc     core.PeerConnection
	err    error

	out    *outbox
	peers  core.PeerFactory
	local  core.LocalSink
	remote core.RemoteSink
	notify func()
	log    zerolog.Logger

	// sinkMu orders remote track delivery against teardown.
	sinkMu sync.Mutex
}

func (s *Session) stale() bool {
	return s.current.Load() != s.gen
}

// fail records a negotiation failure. The session keeps its phase and peer
// connection; a new attempt needs a hang-up and a fresh start.
func (s *Session) fail(step string, err error) {
	s.err = err
	s.log.Error().Err(err).Str("step", step).Str("phase", s.phase.String()).Msg("negotiation failed")
	s.notify()
}

func (s *Session) setPhase(p domain.Phase) {
	if s.phase == p {
		return
	}
	s.log.Info().Str("from", s.phase.String()).Str("to", p.String()).Str("role", s.role.String()).Msg("phase")
	s.phase = p
	s.notify()
}

// openPeer creates the session's only peer connection and attaches the
// local tracks to it.
func (s *Session) openPeer() error {
	pc, err := s.peers.NewPeer(s.ctx)
	if err != nil {
		return err
	}
	pc.OnICECandidate(s.emitCandidate)
	pc.OnTrack(s.attachRemote)
	for _, t := range s.tracks.Tracks() {
		if err := pc.AddTrack(t); err != nil {
			_ = pc.Close()
			return err
		}
	}
	s.pc = pc
	return nil
}

// emitCandidate runs on the peer connection's goroutines.
func (s *Session) emitCandidate(c *webrtc.ICECandidateInit) {
	if s.stale() {
		return
	}
	var msg domain.Message
	if c == nil {
		msg = domain.NewCandidate(s.token, s.room, nil, nil, nil)
	} else {
		cand := c.Candidate
		msg = domain.NewCandidate(s.token, s.room, &cand, c.SDPMid, c.SDPMLineIndex)
	}
	if err := s.out.candidate(s.ctx, msg); err != nil {
		s.log.Warn().Err(err).Msg("local candidate not sent")
	}
}

// attachRemote runs on the peer connection's goroutines.
func (s *Session) attachRemote(t core.RemoteTrack) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if s.stale() {
		return
	}
	s.log.Info().Str("kind", t.Kind().String()).Str("track_id", t.ID()).Str("stream_id", t.StreamID()).Msg("remote track")
	s.remote.Attach(t)
}

// teardown releases the peer connection and the local tracks and clears
// both previews. The caller must have advanced the generation already.
func (s *Session) teardown() {
	if s.phase == domain.PhaseClosed {
		return
	}
	s.setPhase(domain.PhaseClosing)
	s.out.seal()
	s.cancel()
	if s.pc != nil {
		if err := s.pc.Close(); err != nil {
			s.log.Warn().Err(err).Msg("peer connection close")
		}
		s.pc = nil
	}
	if s.tracks != nil {
		s.tracks.Stop()
		s.tracks = nil
	}
	s.local.Clear()
	s.sinkMu.Lock()
	s.remote.Clear()
	s.sinkMu.Unlock()
	s.setPhase(domain.PhaseClosed)
}

func (s *Session) muted(kind webrtc.RTPCodecType) bool {
	if s.tracks == nil {
		return false
	}
	var ts []core.LocalTrack
	if kind == webrtc.RTPCodecTypeAudio {
		ts = s.tracks.AudioTracks()
	} else {
		ts = s.tracks.VideoTracks()
	}
	for _, t := range ts {
		if !t.Enabled() {
			return true
		}
	}
	return false
}
