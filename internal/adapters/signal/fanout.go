package signal

import (
	"sync"

	"github.com/dkeye/Consult/internal/domain"
)

const subscriberBuffer = 64

type subscriber struct {
	ch   chan domain.Message
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() { s.once.Do(func() { close(s.done) }) }

// fanout hands every inbound message to each subscriber in order. A slow
// subscriber slows delivery down; nothing is dropped.
type fanout struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

func newFanout() *fanout {
	return &fanout{subs: make(map[int]*subscriber)}
}

func (f *fanout) subscribe() (<-chan domain.Message, func()) {
	s := &subscriber{ch: make(chan domain.Message, subscriberBuffer), done: make(chan struct{})}
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = s
	f.mu.Unlock()
	return s.ch, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		s.stop()
	}
}

func (f *fanout) publish(msg domain.Message) {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()
	for _, s := range subs {
		select {
		case s.ch <- msg:
		case <-s.done:
		}
	}
}

func (f *fanout) close() {
	f.mu.Lock()
	subs := f.subs
	f.subs = make(map[int]*subscriber)
	f.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
}
