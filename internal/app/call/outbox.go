package call

import (
	"context"
	"sync"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// outbox is the single writer to the signaling channel for one session.
// Candidates gathered before the session's offer or answer went out are
// held and flushed right after it.
type outbox struct {
	mu     sync.Mutex
	ch     core.SignalChannel
	open   bool
	sealed bool
	held   []domain.Message
}

func newOutbox(ch core.SignalChannel) *outbox {
	return &outbox{ch: ch}
}

func (o *outbox) send(ctx context.Context, msg domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed {
		return ErrStaleCompletion
	}
	return o.write(ctx, msg)
}

// description sends an offer or answer and releases held candidates.
func (o *outbox) description(ctx context.Context, msg domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed {
		return ErrStaleCompletion
	}
	if err := o.write(ctx, msg); err != nil {
		return err
	}
	o.open = true
	held := o.held
	o.held = nil
	for _, c := range held {
		if err := o.write(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (o *outbox) candidate(ctx context.Context, msg domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sealed {
		return nil
	}
	if !o.open {
		o.held = append(o.held, msg)
		return nil
	}
	return o.write(ctx, msg)
}

// seal drops held candidates and refuses everything after it except last.
func (o *outbox) seal() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sealed = true
	o.held = nil
}

// last writes the closing message of a sealed session.
func (o *outbox) last(ctx context.Context, msg domain.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.write(ctx, msg)
}

func (o *outbox) write(ctx context.Context, msg domain.Message) error {
	if err := o.ch.Send(ctx, msg); err != nil {
		return &SignalingSendError{Kind: msg.Kind, Err: err}
	}
	return nil
}
