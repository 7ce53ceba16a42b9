package canbus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Mux fans frames received on one Bus out to filtered subscribers. A single
// goroutine owns Receive on the bus; Send is not proxied.
//
// Subscribers that fall behind lose frames; Dropped counts them.
type Mux struct {
	bus    Bus
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	subs map[*subscription]struct{}

	dropped atomic.Uint64
}

type subscription struct {
	filter FrameFilter
	ch     chan Frame
}

// NewMux starts reading bus. The reader stops when ctx is done, Close is
// called, or Receive fails; subscriber channels are closed then.
func NewMux(ctx context.Context, bus Bus) *Mux {
	ctx, cancel := context.WithCancel(ctx)
	m := &Mux{
		bus:    bus,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[*subscription]struct{}),
	}
	go m.run(ctx)
	return m
}

// Subscribe returns a channel of frames accepted by filter (nil accepts
// everything) and a function that unsubscribes and closes the channel.
func (m *Mux) Subscribe(filter FrameFilter, buffer int) (<-chan Frame, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscription{filter: filter, ch: make(chan Frame, buffer)}
	m.mu.Lock()
	if m.subs == nil {
		close(s.ch)
	} else {
		m.subs[s] = struct{}{}
	}
	m.mu.Unlock()
	return s.ch, func() { m.drop(s) }
}

// Dropped reports frames discarded because a subscriber channel was full.
func (m *Mux) Dropped() uint64 { return m.dropped.Load() }

// Close stops the reader and waits for it to exit.
func (m *Mux) Close() error {
	m.cancel()
	<-m.done
	return nil
}

func (m *Mux) drop(s *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s]; ok {
		delete(m.subs, s)
		close(s.ch)
	}
}

func (m *Mux) run(ctx context.Context) {
	defer close(m.done)
	defer func() {
		m.mu.Lock()
		for s := range m.subs {
			close(s.ch)
		}
		m.subs = nil
		m.mu.Unlock()
	}()
	for {
		f, err := m.bus.Receive(ctx)
		if err != nil {
			return
		}
		m.mu.Lock()
		for s := range m.subs {
			if s.filter != nil && !s.filter(f) {
				continue
			}
			select {
			case s.ch <- f:
			default:
				m.dropped.Add(1)
			}
		}
		m.mu.Unlock()
	}
}
