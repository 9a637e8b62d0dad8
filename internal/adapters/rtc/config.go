package rtc

import (
	"time"

	"github.com/pion/webrtc/v4"
)

type Config struct {
	STUNURLs          []string
	CandidatePoolSize uint8

	DisconnectedTimeout time.Duration
	FailedTimeout       time.Duration
	KeepaliveInterval   time.Duration

	// PLIInterval is how often a keyframe is requested for remote video.
	// Zero disables it.
	PLIInterval time.Duration

	// IncludeLoopback gathers 127.0.0.1 candidates too. Only useful when
	// both peers run on one host.
	IncludeLoopback bool
}

func DefaultConfig() Config {
	return Config{
		STUNURLs: []string{
			"stun:stun1.l.google.com:19302",
			"stun:stun2.l.google.com:19302",
		},
		CandidatePoolSize:   10,
		DisconnectedTimeout: 30 * time.Second,
		FailedTimeout:       120 * time.Second,
		KeepaliveInterval:   2 * time.Second,
		PLIInterval:         3 * time.Second,
	}
}

func (c Config) WebRTCConfig() webrtc.Configuration {
	cfg := webrtc.Configuration{ICECandidatePoolSize: c.CandidatePoolSize}
	if len(c.STUNURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: c.STUNURLs}}
	}
	return cfg
}
