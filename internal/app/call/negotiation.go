package call

import (
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
)

// handle applies one inbound message. It is the session's only transition
// function and runs on the controller loop, one message at a time.
func (s *Session) handle(msg domain.Message) {
	switch {
	case msg.IsRoomEvent():
		s.onRoomEvent(msg)
	case msg.Kind == domain.KindOffer:
		s.onOffer(msg)
	case msg.Kind == domain.KindAnswer:
		s.onAnswer(msg)
	case msg.Kind == domain.KindCandidate:
		s.onCandidate(msg)
	case msg.Kind == domain.KindBye:
		// handled by the controller, which owns the generation counter
	case msg.Kind == domain.KindReady:
		s.log.Debug().Msg("peer ready")
	case msg.Kind == domain.KindError:
		s.log.Warn().Str("error", msg.Error).Msg("signaling error")
	default:
		s.log.Warn().Str("type", string(msg.Kind)).Msg("unknown message kind")
	}
}

// onRoomEvent makes this side the offerer.
func (s *Session) onRoomEvent(msg domain.Message) {
	if s.pc != nil {
		s.log.Warn().Err(ErrDuplicateConnection).Str("type", string(msg.Kind)).Msg("ignored")
		return
	}
	if s.phase != domain.PhaseStarting || s.err != nil {
		s.log.Debug().Str("type", string(msg.Kind)).Str("phase", s.phase.String()).Msg("room event ignored")
		return
	}
	if err := s.openPeer(); err != nil {
		s.fail("create peer connection", err)
		return
	}
	s.role = domain.RoleOfferer
	s.setPhase(domain.PhaseNegotiating)

	offer, err := s.pc.CreateOffer()
	if err != nil {
		s.fail("create offer", err)
		return
	}
	if s.stale() {
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.fail("set local description", err)
		return
	}
	if s.stale() {
		return
	}
	if err := s.out.description(s.ctx, domain.NewOffer(s.token, s.room, offer.SDP)); err != nil {
		s.fail("send offer", err)
	}
}

// onOffer makes this side the answerer.
func (s *Session) onOffer(msg domain.Message) {
	if s.pc != nil {
		s.log.Warn().Err(ErrUnexpectedOffer).Str("role", s.role.String()).Msg("ignored")
		return
	}
	if s.err != nil {
		s.log.Debug().Str("phase", s.phase.String()).Msg("offer ignored after failed negotiation")
		return
	}
	if err := s.openPeer(); err != nil {
		s.fail("create peer connection", err)
		return
	}
	s.role = domain.RoleAnswerer
	s.setPhase(domain.PhaseNegotiating)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.fail("set remote description", err)
		return
	}
	if s.stale() {
		return
	}
	answer, err := s.pc.CreateAnswer()
	if err != nil {
		s.fail("create answer", err)
		return
	}
	if s.stale() {
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.fail("set local description", err)
		return
	}
	if s.stale() {
		return
	}
	if err := s.out.description(s.ctx, domain.NewAnswer(s.token, s.room, answer.SDP)); err != nil {
		s.fail("send answer", err)
		return
	}
	s.setPhase(domain.PhaseConnected)
}

func (s *Session) onAnswer(msg domain.Message) {
	if s.pc == nil {
		s.log.Warn().Err(ErrStaleMessage).Str("type", string(msg.Kind)).Msg("ignored")
		return
	}
	if s.phase != domain.PhaseNegotiating || s.role != domain.RoleOfferer {
		s.log.Warn().Err(ErrStaleMessage).Str("phase", s.phase.String()).Str("role", s.role.String()).Msg("answer ignored")
		return
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		s.fail("set remote description", err)
		return
	}
	s.setPhase(domain.PhaseConnected)
}

func (s *Session) onCandidate(msg domain.Message) {
	if s.pc == nil {
		s.log.Warn().Err(ErrStaleMessage).Str("type", string(msg.Kind)).Msg("ignored")
		return
	}
	if msg.EndOfCandidates() {
		s.log.Debug().Msg("remote end of candidates")
		return
	}
	cand := webrtc.ICECandidateInit{
		Candidate:     *msg.Candidate,
		SDPMid:        msg.SDPMid,
		SDPMLineIndex: msg.SDPMLineIndex,
	}
	if err := s.pc.AddICECandidate(cand); err != nil {
		s.log.Warn().Err(err).Msg("add remote candidate")
	}
}
