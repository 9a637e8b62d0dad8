package call

import (
	"errors"
	"fmt"

	"github.com/dkeye/Consult/internal/domain"
)

var (
	ErrCallActive      = errors.New("call already active")
	ErrStaleCompletion = errors.New("call hung up before it started")
	ErrClosed          = errors.New("call controller closed")

	// Protocol ordering anomalies. They are logged and the message is
	// dropped; none of them ends the session.
	ErrUnexpectedOffer     = errors.New("offer while a peer connection is open")
	ErrStaleMessage        = errors.New("no peer connection for message")
	ErrDuplicateConnection = errors.New("room event while a peer connection is open")
)

// MediaAcquisitionError means the media source could not provide tracks.
type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("acquire media: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

// SignalingSendError means a message could not be handed to the signaling
// channel.
type SignalingSendError struct {
	Kind domain.Kind
	Err  error
}

func (e *SignalingSendError) Error() string {
	return fmt.Sprintf("send %s: %v", e.Kind, e.Err)
}

func (e *SignalingSendError) Unwrap() error { return e.Err }
