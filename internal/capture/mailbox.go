package capture

import (
	"sync"
	"sync/atomic"

	"github.com/dooshek/kittbar/internal/bars"
)

// Mailbox is a single-slot, last-writer-wins holder for the latest snapshot.
// Subscribers get a coalescing notification: however many snapshots are
// published between two reads, at most one wake-up is pending.
type Mailbox struct {
	current atomic.Pointer[bars.State]

	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewMailbox(initial *bars.State) *Mailbox {
	m := &Mailbox{subs: make(map[chan struct{}]struct{})}
	m.current.Store(initial)
	return m
}

// Publish replaces the current snapshot and wakes subscribers.
func (m *Mailbox) Publish(s *bars.State) {
	m.current.Store(s)

	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Load returns the most recently published snapshot.
func (m *Mailbox) Load() *bars.State {
	return m.current.Load()
}

// Subscribe returns a notification channel and a function that removes it.
func (m *Mailbox) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, ch)
			m.mu.Unlock()
		})
	}
}
