package core

import (
	"context"
	"sync"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// LocalTrack is an outgoing track with a mute switch. A disabled track keeps
// its source running but contributes nothing to the stream.
type LocalTrack interface {
	webrtc.TrackLocal
	Enabled() bool
	SetEnabled(bool)
	Stop()
}

// TrackSet is what one media acquisition produced.
type TrackSet struct {
	audio []LocalTrack
	video []LocalTrack

	stopOnce sync.Once
}

func NewTrackSet(audio, video []LocalTrack) *TrackSet {
	return &TrackSet{audio: audio, video: video}
}

func (s *TrackSet) AudioTracks() []LocalTrack { return s.audio }
func (s *TrackSet) VideoTracks() []LocalTrack { return s.video }

func (s *TrackSet) Tracks() []LocalTrack {
	out := make([]LocalTrack, 0, len(s.audio)+len(s.video))
	out = append(out, s.audio...)
	return append(out, s.video...)
}

func (s *TrackSet) Len() int { return len(s.audio) + len(s.video) }

// Stop stops every track once.
func (s *TrackSet) Stop() {
	s.stopOnce.Do(func() {
		for _, t := range s.Tracks() {
			t.Stop()
		}
	})
}

// MediaSource hands out local tracks. Acquire may block for as long as the
// underlying devices need.
type MediaSource interface {
	Acquire(ctx context.Context, c domain.MediaConstraints) (*TrackSet, error)
}

// RemoteTrack is an incoming media stream. *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	SSRC() webrtc.SSRC
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// LocalSink shows the local preview.
type LocalSink interface {
	Attach(*TrackSet)
	Clear()
}

// RemoteSink renders what the peer sends.
type RemoteSink interface {
	Attach(RemoteTrack)
	Clear()
}
