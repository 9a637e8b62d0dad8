package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// WebRTCConnection adapts a pion PeerConnection to core.PeerConnection.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	pli    time.Duration

	mu      sync.Mutex
	onICE   func(*webrtc.ICECandidateInit)
	onTrack func(core.RemoteTrack)
	senders int
}

func newConnection(ctx context.Context, pc *webrtc.PeerConnection, cfg Config) *WebRTCConnection {
	ctx, cancel := context.WithCancel(ctx)
	c := &WebRTCConnection{
		pc:     pc,
		log:    log.With().Str("module", "webrtc").Str("pc", uuid.NewString()[:8]).Logger(),
		ctx:    ctx,
		cancel: cancel,
		pli:    cfg.PLIInterval,
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		ev := c.log.Info()
		if s == webrtc.PeerConnectionStateFailed {
			ev = c.log.Warn()
		}
		ev.Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn == nil {
			return
		}
		if cand == nil {
			fn(nil)
			return
		}
		ci := cand.ToJSON()
		fn(&ci)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.requestKeyframes(track.SSRC())
		}
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(track)
		}
	})

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	return c
}

// requestKeyframes sends PLIs for a remote video track until the
// connection ends.
func (c *WebRTCConnection) requestKeyframes(ssrc webrtc.SSRC) {
	if c.pli <= 0 {
		return
	}
	ticker := time.NewTicker(c.pli)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)}}); err != nil {
				c.log.Debug().Err(err).Msg("PLI")
				return
			}
		}
	}
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	empty := c.senders == 0
	c.mu.Unlock()
	if empty && len(c.pc.GetTransceivers()) == 0 {
		c.addRecvOnlyTransceivers()
	}
	return c.pc.CreateOffer(nil)
}

// addRecvOnlyTransceivers gives an offer without local media valid audio
// and video m-lines.
func (c *WebRTCConnection) addRecvOnlyTransceivers() {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := c.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			c.log.Warn().Err(err).Str("kind", kind.String()).Msg("AddTransceiver")
		}
	}
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *WebRTCConnection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AddTrack attaches a local track and drains the RTCP its sender receives
// so the interceptors keep running.
func (c *WebRTCConnection) AddTrack(track core.LocalTrack) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.senders++
	c.mu.Unlock()
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *WebRTCConnection) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICE = fn
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = fn
}

func (c *WebRTCConnection) Close() error {
	c.cancel()
	if c.pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return nil
	}
	if err := c.pc.Close(); err != nil {
		c.log.Error().Err(err).Msg("close error")
		return err
	}
	c.log.Info().Msg("closed")
	return nil
}
