package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" {
		t.Fatalf("unexpected defaults: port=%d mode=%s", cfg.Port, cfg.Mode)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("unexpected durations: %v %v", cfg.PingPeriod, cfg.TokenTTL)
	}
	if len(cfg.ICE.STUNURLs) != 2 || cfg.ICE.CandidatePoolSize != 10 {
		t.Fatalf("unexpected ice defaults: %+v", cfg.ICE)
	}
	if cfg.Signal.Transport != "ws" {
		t.Fatalf("transport = %q", cfg.Signal.Transport)
	}
}

func TestFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	yaml := `
mode: debug
port: 9000
secret: from-file
ice:
  failed_timeout: 15s
media:
  video_file: /tmp/cam.ivf
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONSULT_SECRET", "from-env")
	t.Setenv("CONSULT_SIGNAL_TRANSPORT", "mqtt")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Debug() || cfg.Port != 9000 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Secret != "from-env" {
		t.Fatalf("env should win over file, secret = %q", cfg.Secret)
	}
	if cfg.Signal.Transport != "mqtt" {
		t.Fatalf("nested env override missing, transport = %q", cfg.Signal.Transport)
	}
	if cfg.ICE.FailedTimeout != 15*time.Second || cfg.ICE.DisconnectedTimeout != 30*time.Second {
		t.Fatalf("unexpected ice: %+v", cfg.ICE)
	}
	if cfg.Media.VideoFile != "/tmp/cam.ivf" {
		t.Fatalf("video file = %q", cfg.Media.VideoFile)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		c := Config{LogLevel: tt.in}
		if got := c.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
