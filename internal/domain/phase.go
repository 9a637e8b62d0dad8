package domain

// Phase is the lifecycle phase of one call session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseNegotiating
	PhaseConnected
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseConnected:
		return "connected"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Active reports whether a call is in progress from the user's point of view.
func (p Phase) Active() bool {
	return p == PhaseStarting || p == PhaseNegotiating || p == PhaseConnected
}

// Role is which side of the SDP exchange a session ended up on. It is
// fixed the first time a room event or an offer is handled.
type Role int

const (
	RoleUnknown Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "unknown"
	}
}

// Controls is which call buttons are usable.
type Controls struct {
	Start     bool
	HangUp    bool
	MuteAudio bool
	MuteVideo bool
}

// ControlsFor derives button availability from the phase alone.
func ControlsFor(p Phase) Controls {
	active := p.Active()
	return Controls{
		Start:     p == PhaseIdle || p == PhaseClosed,
		HangUp:    active,
		MuteAudio: active,
		MuteVideo: active,
	}
}
