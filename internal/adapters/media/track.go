// Package media is a headless media source: file backed or synthetic
// tracks standing in for a camera and a microphone.
package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// SampleTrack is a local track with a mute switch. While disabled its
// samples are dropped; the feeder keeps running.
type SampleTrack struct {
	*webrtc.TrackLocalStaticSample

	enabled atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func NewSampleTrack(capability webrtc.RTPCodecCapability, id, streamID string) (*SampleTrack, error) {
	inner, err := webrtc.NewTrackLocalStaticSample(capability, id, streamID)
	if err != nil {
		return nil, err
	}
	t := &SampleTrack{TrackLocalStaticSample: inner, done: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *SampleTrack) WriteSample(s media.Sample) error {
	if !t.enabled.Load() {
		return nil
	}
	return t.TrackLocalStaticSample.WriteSample(s)
}

func (t *SampleTrack) Enabled() bool     { return t.enabled.Load() }
func (t *SampleTrack) SetEnabled(v bool) { t.enabled.Store(v) }

func (t *SampleTrack) Stop() {
	t.once.Do(func() { close(t.done) })
}

// Done is closed once the track is stopped.
func (t *SampleTrack) Done() <-chan struct{} { return t.done }

func (t *SampleTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
