package core

import (
	"context"

	"github.com/dkeye/Consult/internal/domain"
)

// Frame is a raw binary payload.
type Frame []byte

// SignalConnection is the server end of one participant's transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// SignalChannel is the participant end of a room transport. Room
// membership and routing belong to the channel; the call engine only
// sends and consumes messages.
type SignalChannel interface {
	Send(ctx context.Context, msg domain.Message) error
	// Subscribe returns inbound messages in delivery order and a func that
	// detaches the subscriber.
	Subscribe() (<-chan domain.Message, func())
	Close() error
}
