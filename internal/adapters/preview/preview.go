// Package preview implements headless local and remote sinks. Nothing is
// rendered; the sinks keep counters the terminal UI can show.
package preview

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/Consult/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stream is what a sink knows about one track.
type Stream struct {
	ID      string
	Kind    string
	Packets uint64
	Bytes   uint64
}

// Local records the tracks shown in the self view.
type Local struct {
	mu     sync.Mutex
	tracks []Stream
	log    zerolog.Logger
}

func NewLocal() *Local {
	return &Local{log: log.With().Str("module", "preview").Str("sink", "local").Logger()}
}

func (l *Local) Attach(set *core.TrackSet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = l.tracks[:0]
	for _, t := range set.Tracks() {
		l.tracks = append(l.tracks, Stream{ID: t.ID(), Kind: t.Kind().String()})
	}
	l.log.Debug().Int("tracks", len(l.tracks)).Msg("self view attached")
}

func (l *Local) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks = nil
	l.log.Debug().Msg("self view cleared")
}

func (l *Local) Streams() []Stream {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Stream(nil), l.tracks...)
}

type remoteStream struct {
	id      string
	kind    webrtc.RTPCodecType
	packets atomic.Uint64
	bytes   atomic.Uint64
}

// Remote drains every attached track and counts what arrives. Clear
// detaches all streams; readers of detached streams stop counting and
// exit on their next read error.
type Remote struct {
	mu      sync.Mutex
	gen     uint64
	streams []*remoteStream
	log     zerolog.Logger
}

func NewRemote() *Remote {
	return &Remote{log: log.With().Str("module", "preview").Str("sink", "remote").Logger()}
}

func (r *Remote) Attach(t core.RemoteTrack) {
	s := &remoteStream{id: t.ID(), kind: t.Kind()}
	r.mu.Lock()
	r.streams = append(r.streams, s)
	gen := r.gen
	r.mu.Unlock()

	r.log.Info().Str("track", t.ID()).Str("kind", t.Kind().String()).Uint32("ssrc", uint32(t.SSRC())).Msg("remote track attached")
	go r.drain(gen, t, s)
}

func (r *Remote) drain(gen uint64, t core.RemoteTrack, s *remoteStream) {
	for {
		pkt, _, err := t.ReadRTP()
		if err != nil {
			r.log.Debug().Err(err).Str("track", s.id).Msg("remote track ended")
			return
		}
		if r.detached(gen) {
			continue
		}
		s.packets.Add(1)
		s.bytes.Add(uint64(len(pkt.Payload)))
	}
}

func (r *Remote) detached(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen != r.gen
}

func (r *Remote) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.streams = nil
}

func (r *Remote) Streams() []Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, Stream{
			ID:      s.id,
			Kind:    s.kind.String(),
			Packets: s.packets.Load(),
			Bytes:   s.bytes.Load(),
		})
	}
	return out
}

// Receiving reports whether any packet has arrived on an attached stream.
func (r *Remote) Receiving() bool {
	for _, s := range r.Streams() {
		if s.Packets > 0 {
			return true
		}
	}
	return false
}
