package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// PeerConnection is the subset of a WebRTC peer connection the call engine
// drives.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	AddTrack(LocalTrack) error

	// OnICECandidate fires for every locally gathered candidate and once
	// with nil when gathering is complete.
	OnICECandidate(func(*webrtc.ICECandidateInit))
	OnTrack(func(RemoteTrack))

	Close() error
}

// PeerFactory builds one PeerConnection per call session. The connection
// lives no longer than ctx.
type PeerFactory interface {
	NewPeer(ctx context.Context) (PeerConnection, error)
}
