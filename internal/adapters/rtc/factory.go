package rtc

import (
	"context"
	"fmt"

	"github.com/dkeye/Consult/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// Factory builds peer connections that share one API: default codecs,
// default interceptors and the configured ICE timeouts.
type Factory struct {
	api *webrtc.API
	cfg Config
}

func NewFactory(cfg Config) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if cfg.DisconnectedTimeout > 0 && cfg.FailedTimeout > 0 {
		se.SetICETimeouts(cfg.DisconnectedTimeout, cfg.FailedTimeout, cfg.KeepaliveInterval)
	}
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)
	return &Factory{api: api, cfg: cfg}, nil
}

func (f *Factory) NewPeer(ctx context.Context) (core.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.cfg.WebRTCConfig())
	if err != nil {
		return nil, err
	}
	return newConnection(ctx, pc, f.cfg), nil
}
