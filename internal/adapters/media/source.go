package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
)

var ErrNoDevice = errors.New("no media requested or available")

const opusFrame = 20 * time.Millisecond

// silence is one 20ms Opus frame of digital silence.
var silence = []byte{0xf8, 0xff, 0xfe}

type Config struct {
	// VideoFile is an IVF file looped as the camera. Empty means a video
	// track that never sends frames.
	VideoFile string
	// AudioFile is an Ogg/Opus file looped as the microphone. Empty means
	// Opus silence.
	AudioFile string
}

// Source implements core.MediaSource.
type Source struct {
	cfg Config
}

func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg}
}

func (s *Source) Acquire(ctx context.Context, c domain.MediaConstraints) (*core.TrackSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Video && !c.Audio.Enabled {
		return nil, ErrNoDevice
	}
	streamID := "consult-" + uuid.NewString()[:8]

	var audio, video []core.LocalTrack
	if c.Audio.Enabled {
		t, err := s.audioTrack(streamID)
		if err != nil {
			return nil, err
		}
		audio = append(audio, t)
	}
	if c.Video {
		t, err := s.videoTrack(streamID)
		if err != nil {
			for _, a := range audio {
				a.Stop()
			}
			return nil, err
		}
		video = append(video, t)
	}
	log.Info().Str("module", "media").Str("stream_id", streamID).Int("audio", len(audio)).Int("video", len(video)).Msg("tracks acquired")
	return core.NewTrackSet(audio, video), nil
}

func (s *Source) audioTrack(streamID string) (*SampleTrack, error) {
	t, err := NewSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", streamID)
	if err != nil {
		return nil, err
	}
	if s.cfg.AudioFile == "" {
		go feedSilence(t)
		return t, nil
	}
	f, err := os.Open(s.cfg.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	go feedOgg(t, s.cfg.AudioFile, f)
	return t, nil
}

func (s *Source) videoTrack(streamID string) (*SampleTrack, error) {
	if s.cfg.VideoFile == "" {
		return NewSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	}
	f, err := os.Open(s.cfg.VideoFile)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	ivf, header, err := ivfreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read ivf header: %w", err)
	}
	mime, err := ivfMime(header.FourCC)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	t, err := NewSampleTrack(webrtc.RTPCodecCapability{MimeType: mime}, "video", streamID)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	go feedIVF(t, s.cfg.VideoFile, f, ivf, header)
	return t, nil
}

func ivfMime(fourcc string) (string, error) {
	switch fourcc {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	default:
		return "", fmt.Errorf("unsupported ivf codec %q", fourcc)
	}
}

func feedSilence(t *SampleTrack) {
	ticker := time.NewTicker(opusFrame)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
			if err := t.WriteSample(media.Sample{Data: silence, Duration: opusFrame}); err != nil {
				log.Debug().Err(err).Str("module", "media").Msg("write silence")
			}
		}
	}
}

// feedOgg loops an Ogg/Opus file, one page per 20ms.
func feedOgg(t *SampleTrack, path string, f *os.File) {
	defer func() { _ = f.Close() }()
	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("file", path).Msg("ogg header")
		return
	}
	ticker := time.NewTicker(opusFrame)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
		}
		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ogg, _, err = oggreader.NewWith(f); err != nil {
				return
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "media").Str("file", path).Msg("ogg page")
			return
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration((float64(samples) / 48000) * float64(time.Second))
		if err := t.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			log.Debug().Err(err).Str("module", "media").Msg("write ogg page")
		}
	}
}

// feedIVF loops an IVF file at its own frame rate.
func feedIVF(t *SampleTrack, path string, f *os.File, ivf *ivfreader.IVFReader, header *ivfreader.IVFFileHeader) {
	defer func() { _ = f.Close() }()
	interval := time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	if interval <= 0 {
		interval = time.Second / 30
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.Done():
			return
		case <-ticker.C:
		}
		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ivf, _, err = ivfreader.NewWith(f); err != nil {
				return
			}
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("module", "media").Str("file", path).Msg("ivf frame")
			return
		}
		if err := t.WriteSample(media.Sample{Data: frame, Duration: interval}); err != nil {
			log.Debug().Err(err).Str("module", "media").Msg("write ivf frame")
		}
	}
}
