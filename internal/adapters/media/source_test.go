package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

func TestAcquireSynthetic(t *testing.T) {
	src := NewSource(Config{})
	set, err := src.Acquire(context.Background(), domain.CallConstraints())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer set.Stop()

	if len(set.AudioTracks()) != 1 || len(set.VideoTracks()) != 1 {
		t.Fatalf("want 1 audio and 1 video track, got %d/%d", len(set.AudioTracks()), len(set.VideoTracks()))
	}
	if got := set.AudioTracks()[0].Kind(); got != webrtc.RTPCodecTypeAudio {
		t.Fatalf("audio kind = %v", got)
	}
	if got := set.VideoTracks()[0].Kind(); got != webrtc.RTPCodecTypeVideo {
		t.Fatalf("video kind = %v", got)
	}
	if set.AudioTracks()[0].StreamID() != set.VideoTracks()[0].StreamID() {
		t.Fatal("tracks should share one stream")
	}
}

func TestAcquireAudioOnly(t *testing.T) {
	src := NewSource(Config{})
	set, err := src.Acquire(context.Background(), domain.MediaConstraints{Audio: domain.AudioConstraints{Enabled: true}})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer set.Stop()
	if set.Len() != 1 || len(set.VideoTracks()) != 0 {
		t.Fatalf("want audio only, got %d tracks", set.Len())
	}
}

func TestAcquireNothing(t *testing.T) {
	_, err := NewSource(Config{}).Acquire(context.Background(), domain.MediaConstraints{})
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("want ErrNoDevice, got %v", err)
	}
}

func TestAcquireCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSource(Config{}).Acquire(ctx, domain.CallConstraints())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestAcquireMissingFile(t *testing.T) {
	src := NewSource(Config{VideoFile: filepath.Join(t.TempDir(), "nope.ivf")})
	_, err := src.Acquire(context.Background(), domain.CallConstraints())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}

func TestAcquireBadIVF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ivf")
	if err := os.WriteFile(path, []byte("not an ivf file at all, just text padding"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewSource(Config{VideoFile: path}).Acquire(context.Background(), domain.CallConstraints())
	if err == nil {
		t.Fatal("want header error")
	}
}

func TestSampleTrackMute(t *testing.T) {
	tr, err := NewSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "a", "s")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Enabled() {
		t.Fatal("new track should be enabled")
	}
	tr.SetEnabled(false)
	if tr.Enabled() {
		t.Fatal("track should be disabled")
	}
	// unbound and disabled: both paths are no-ops
	if err := tr.WriteSample(media.Sample{Data: silence}); err != nil {
		t.Fatalf("write: %v", err)
	}

	tr.Stop()
	tr.Stop()
	if !tr.Stopped() {
		t.Fatal("track should be stopped")
	}
}

func TestIVFMime(t *testing.T) {
	tests := []struct {
		fourcc string
		want   string
		err    bool
	}{
		{"VP80", webrtc.MimeTypeVP8, false},
		{"VP90", webrtc.MimeTypeVP9, false},
		{"AV01", webrtc.MimeTypeAV1, false},
		{"H264", "", true},
	}
	for _, tt := range tests {
		got, err := ivfMime(tt.fourcc)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ivfMime(%q) = %q, %v", tt.fourcc, got, err)
		}
	}
}
