// Package hub fans UI events out to every open inspector page.
// It is transport-agnostic: viewers register, receive events through a
// non-blocking Send, and the hub keeps the latest state for late joiners.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"go.klb.dev/clipscope/internal/notify"
)

// ErrNoViewers is returned by RequestPaste when no page could be nudged.
var ErrNoViewers = errors.New("no inspector page connected")

// Kind identifies the kind of event.
type Kind string

const (
	KindState        Kind = "state"
	KindToast        Kind = "toast"
	KindPasteRequest Kind = "paste-request"
)

// Event is one message delivered to a viewer. Data is pre-encoded JSON.
type Event struct {
	Kind Kind
	Data json.RawMessage
}

// Viewer is anything that can receive hub events.
type Viewer interface {
	ID() string
	// Send delivers an event to the viewer. Must be non-blocking.
	Send(Event)
}

// Hub routes UI events to all registered viewers.
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]Viewer
	latest  *Event // last state event
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{viewers: make(map[string]Viewer)}
}

// Register adds a viewer and immediately delivers the latest state.
func (h *Hub) Register(v Viewer) {
	h.mu.Lock()
	h.viewers[v.ID()] = v
	latest := h.latest
	total := len(h.viewers)
	h.mu.Unlock()

	slog.Info("viewer registered", "viewer", v.ID(), "total", total)

	if latest != nil {
		v.Send(*latest)
	}
}

// Unregister removes a viewer.
func (h *Hub) Unregister(v Viewer) {
	h.mu.Lock()
	delete(h.viewers, v.ID())
	total := len(h.viewers)
	h.mu.Unlock()

	slog.Info("viewer unregistered", "viewer", v.ID(), "total", total)
}

// Len returns the number of registered viewers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Publish encodes payload and fans it out to every viewer. State events
// are remembered for viewers that register later. It returns the number of
// viewers the event was sent to.
func (h *Hub) Publish(kind Kind, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("hub: encode event", "kind", kind, "err", err)
		return 0
	}
	ev := Event{Kind: kind, Data: data}

	h.mu.Lock()
	if kind == KindState {
		h.latest = &ev
	}
	targets := make([]Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		targets = append(targets, v)
	}
	h.mu.Unlock()

	for _, v := range targets {
		v.Send(ev)
	}
	return len(targets)
}

// toast is the payload of a toast event.
type toast struct {
	Level   notify.Level `json:"level"`
	Message string       `json:"message"`
}

// Notify implements notify.Notifier by pushing a toast to every viewer.
func (h *Hub) Notify(level notify.Level, message string) {
	h.Publish(KindToast, toast{Level: level, Message: message})
}

// pasteRequest is the payload of a paste-request event.
type pasteRequest struct {
	Generation uint64 `json:"generation"`
	Hint       string `json:"hint"`
}

// RequestPaste asks every open page to prompt for a paste gesture. It is a
// best-effort nudge; ErrNoViewers means nobody was listening.
func (h *Hub) RequestPaste(generation uint64, hint string) error {
	if h.Publish(KindPasteRequest, pasteRequest{Generation: generation, Hint: hint}) == 0 {
		return ErrNoViewers
	}
	return nil
}
