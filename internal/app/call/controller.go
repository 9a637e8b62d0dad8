// Package call drives one participant's side of an appointment call:
// media acquisition, the offer/answer/candidate exchange and teardown.
package call

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const eventQueueSize = 64

type Config struct {
	Room  domain.AppointmentID
	Token string

	Signal core.SignalChannel
	Media  core.MediaSource
	Peers  core.PeerFactory

	// Optional previews.
	LocalSink  core.LocalSink
	RemoteSink core.RemoteSink

	// Zero value means domain.CallConstraints().
	Constraints domain.MediaConstraints
}

// State is a read-only snapshot for rendering.
type State struct {
	Room       domain.AppointmentID
	Phase      domain.Phase
	Role       domain.Role
	AudioMuted bool
	VideoMuted bool
	// Err is the last negotiation failure of the current session.
	Err error
}

// Controller owns at most one Session at a time. Inbound messages and
// commands are executed one by one, in arrival order, on a single loop
// goroutine.
type Controller struct {
	cfg Config
	log zerolog.Logger
	ctx context.Context

	events  chan func()
	done    chan struct{}
	stopped chan struct{}
	unsub   func()

	closeOnce sync.Once

	gen atomic.Uint64

	// loop-only
	sess      *Session
	rest      domain.Phase
	acquiring bool
	pending   []domain.Message

	acqMu     sync.Mutex
	acqCancel context.CancelFunc

	stateMu sync.RWMutex
	state   State
	updates chan State
}

func NewController(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Signal == nil || cfg.Media == nil || cfg.Peers == nil {
		return nil, errors.New("call: signal, media and peers are required")
	}
	if _, err := domain.ParseAppointmentID(string(cfg.Room)); err != nil {
		return nil, err
	}
	if cfg.LocalSink == nil {
		cfg.LocalSink = nopLocalSink{}
	}
	if cfg.RemoteSink == nil {
		cfg.RemoteSink = nopRemoteSink{}
	}
	if cfg.Constraints == (domain.MediaConstraints{}) {
		cfg.Constraints = domain.CallConstraints()
	}

	c := &Controller{
		cfg:     cfg,
		log:     log.With().Str("module", "call").Str("room", string(cfg.Room)).Logger(),
		ctx:     ctx,
		events:  make(chan func(), eventQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		rest:    domain.PhaseIdle,
		updates: make(chan State, 1),
	}
	c.state = State{Room: cfg.Room, Phase: domain.PhaseIdle}

	sub, unsub := cfg.Signal.Subscribe()
	c.unsub = unsub
	go c.loop()
	go c.pump(sub)
	return c, nil
}

func (c *Controller) loop() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.done:
			return
		}
	}
}

// pump forwards this room's messages to the loop in delivery order.
func (c *Controller) pump(sub <-chan domain.Message) {
	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				return
			}
			if msg.Room != c.cfg.Room {
				continue
			}
			if !c.enqueue(func() { c.dispatch(msg) }) {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Controller) enqueue(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func() error) error {
	res := make(chan error, 1)
	if !c.enqueue(func() { res <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) dispatch(msg domain.Message) {
	s := c.sess
	if s == nil {
		switch {
		case c.acquiring:
			c.pending = append(c.pending, msg)
		case msg.Kind == domain.KindAnswer || msg.Kind == domain.KindCandidate:
			c.log.Warn().Err(ErrStaleMessage).Str("type", string(msg.Kind)).Msg("ignored")
		default:
			c.log.Debug().Str("type", string(msg.Kind)).Str("phase", c.rest.String()).Msg("not in a call, dropped")
		}
		return
	}
	if msg.Kind == domain.KindBye {
		c.log.Info().Msg("peer hung up")
		c.gen.Add(1)
		c.endSession()
		return
	}
	s.handle(msg)
}

// Start acquires local media, shows it in the local preview and announces
// readiness to the room.
func (c *Controller) Start(ctx context.Context) error {
	var gen uint64
	err := c.do(func() error {
		if c.sess != nil || c.acquiring {
			return ErrCallActive
		}
		c.acquiring = true
		gen = c.gen.Load()
		return nil
	})
	if err != nil {
		return err
	}

	acqCtx, cancel := context.WithCancel(ctx)
	c.acqMu.Lock()
	c.acqCancel = cancel
	c.acqMu.Unlock()
	tracks, acqErr := c.cfg.Media.Acquire(acqCtx, c.cfg.Constraints)
	c.acqMu.Lock()
	c.acqCancel = nil
	c.acqMu.Unlock()
	cancel()

	err = c.do(func() error {
		c.acquiring = false
		pending := c.pending
		c.pending = nil

		if c.gen.Load() != gen {
			if tracks != nil {
				tracks.Stop()
			}
			return ErrStaleCompletion
		}
		if acqErr != nil {
			c.log.Error().Err(acqErr).Msg("media acquisition failed")
			return &MediaAcquisitionError{Err: acqErr}
		}
		if tracks == nil {
			tracks = core.NewTrackSet(nil, nil)
		}

		s := c.newSession(gen, tracks)
		c.cfg.LocalSink.Attach(tracks)
		if err := s.out.send(ctx, domain.NewReady(c.cfg.Token, c.cfg.Room)); err != nil {
			s.cancel()
			tracks.Stop()
			c.cfg.LocalSink.Clear()
			c.log.Error().Err(err).Msg("ready not sent")
			return err
		}
		c.sess = s
		s.setPhase(domain.PhaseStarting)
		for _, msg := range pending {
			c.dispatch(msg)
		}
		return nil
	})
	if errors.Is(err, ErrClosed) {
		if tracks != nil {
			tracks.Stop()
		}
		return ErrStaleCompletion
	}
	return err
}

func (c *Controller) newSession(gen uint64, tracks *core.TrackSet) *Session {
	ctx, cancel := context.WithCancel(c.ctx)
	return &Session{
		room:    c.cfg.Room,
		token:   c.cfg.Token,
		gen:     gen,
		current: &c.gen,
		ctx:     ctx,
		cancel:  cancel,
		phase:   c.rest,
		tracks:  tracks,
		out:     newOutbox(c.cfg.Signal),
		peers:   c.cfg.Peers,
		local:   c.cfg.LocalSink,
		remote:  c.cfg.RemoteSink,
		notify:  c.publish,
		log:     c.log,
	}
}

// HangUp ends the current call and tells the peer. Without a call it is a
// no-op.
func (c *Controller) HangUp(ctx context.Context) error {
	c.invalidate()
	return c.do(func() error {
		s := c.sess
		if s == nil {
			return nil
		}
		c.endSession()
		return s.out.last(ctx, domain.NewBye(c.cfg.Token, c.cfg.Room))
	})
}

// invalidate makes every in-flight completion of the current session stale.
func (c *Controller) invalidate() {
	c.gen.Add(1)
	c.acqMu.Lock()
	if c.acqCancel != nil {
		c.acqCancel()
	}
	c.acqMu.Unlock()
}

// endSession runs on the loop after the generation moved on.
func (c *Controller) endSession() {
	s := c.sess
	if s == nil {
		return
	}
	s.teardown()
	c.sess = nil
	c.rest = domain.PhaseClosed
	c.publish()
}

func (c *Controller) ToggleAudioMute() bool {
	return c.toggle(webrtc.RTPCodecTypeAudio)
}

func (c *Controller) ToggleVideoMute() bool {
	return c.toggle(webrtc.RTPCodecTypeVideo)
}

// toggle flips every local track of kind. It never sends anything.
func (c *Controller) toggle(kind webrtc.RTPCodecType) bool {
	var muted bool
	_ = c.do(func() error {
		s := c.sess
		if s == nil || s.tracks == nil {
			return nil
		}
		ts := s.tracks.VideoTracks()
		if kind == webrtc.RTPCodecTypeAudio {
			ts = s.tracks.AudioTracks()
		}
		for _, t := range ts {
			t.SetEnabled(!t.Enabled())
		}
		muted = s.muted(kind)
		c.log.Info().Str("kind", kind.String()).Bool("muted", muted).Msg("toggle mute")
		c.publish()
		return nil
	})
	return muted
}

func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Controller) Controls() domain.Controls {
	return domain.ControlsFor(c.State().Phase)
}

// Updates delivers the latest State after every change. Intermediate
// states may be skipped when the reader is slow.
func (c *Controller) Updates() <-chan State {
	return c.updates
}

// publish runs on the loop.
func (c *Controller) publish() {
	st := State{Room: c.cfg.Room, Phase: c.rest}
	if s := c.sess; s != nil {
		st.Phase = s.phase
		st.Role = s.role
		st.Err = s.err
		st.AudioMuted = s.muted(webrtc.RTPCodecTypeAudio)
		st.VideoMuted = s.muted(webrtc.RTPCodecTypeVideo)
	}
	c.stateMu.Lock()
	c.state = st
	c.stateMu.Unlock()

	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- st:
	default:
	}
}

// Close tears the call down without telling the peer and stops the
// controller. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.invalidate()
		_ = c.do(func() error {
			if c.sess != nil {
				c.log.Info().Msg("forced cleanup")
				c.endSession()
			}
			return nil
		})
		c.unsub()
		close(c.done)
		<-c.stopped
	})
}

type nopLocalSink struct{}

func (nopLocalSink) Attach(*core.TrackSet) {}
func (nopLocalSink) Clear()                {}

type nopRemoteSink struct{}

func (nopRemoteSink) Attach(core.RemoteTrack) {}
func (nopRemoteSink) Clear()                  {}
