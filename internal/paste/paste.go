// Package paste delivers user paste gestures to whichever acquisition is
// waiting for one.
//
// The Bus plays the role of the page's document: it is process-wide, and at
// most one Subscription is live on it. A gesture is delivered to the live
// subscription exactly once, after which the subscription is detached.
package paste

import (
	"context"
	"log/slog"
	"sync"
)

// FilesType is the pseudo type browsers list when files are attached.
const FilesType = "Files"

// File is one pasted file. Read may be slow; the engine waits for it.
type File struct {
	Name string
	MIME string
	Size int64
	Read func(ctx context.Context) ([]byte, error)
}

// Event is one paste gesture.
type Event struct {
	// Types lists every declared format in the order the source gave them.
	Types []string
	// Data holds the string value of each declared format.
	Data  map[string]string
	Files []File
}

// Get returns the value of format, or "" if absent.
func (e Event) Get(format string) string {
	return e.Data[format]
}

// Subscription is a one-shot listener on a Bus. Close is idempotent and
// safe to call after the event was delivered.
type Subscription struct {
	bus  *Bus
	id   uint64
	ch   chan Event
	once sync.Once
}

// C returns the channel the event arrives on. It is closed without a value
// when the subscription is closed or replaced.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close detaches the subscription from its bus.
func (s *Subscription) Close() {
	s.bus.detach(s)
}

func (s *Subscription) shut() {
	s.once.Do(func() { close(s.ch) })
}

// Bus routes paste gestures to the single live subscription.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	live   *Subscription
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new listener, closing any listener already live.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{bus: b, id: b.nextID, ch: make(chan Event, 1)}
	if prev := b.live; prev != nil {
		slog.Debug("paste listener replaced", "old", prev.id, "new", s.id)
		prev.shut()
	}
	b.live = s
	return s
}

// Live reports whether a listener is waiting.
func (b *Bus) Live() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live != nil
}

// Dispatch delivers ev to the live listener and detaches it. It reports
// whether a listener consumed the event; false means the gesture should
// take its default action.
func (b *Bus) Dispatch(ev Event) bool {
	b.mu.Lock()
	s := b.live
	b.live = nil
	b.mu.Unlock()
	if s == nil {
		return false
	}
	// ch has capacity 1 and only Dispatch sends, once per subscription,
	// after removing it from live; the send cannot block.
	delivered := false
	s.once.Do(func() {
		s.ch <- ev
		close(s.ch)
		delivered = true
	})
	if delivered {
		slog.Debug("paste dispatched", "listener", s.id, "types", len(ev.Types), "files", len(ev.Files))
	}
	return delivered
}

func (b *Bus) detach(s *Subscription) {
	b.mu.Lock()
	if b.live == s {
		b.live = nil
	}
	b.mu.Unlock()
	s.shut()
}
