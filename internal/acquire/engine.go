// Package acquire implements the clipboard acquisition engine: an ordered
// fallback from a structured read, to a text-only read, to a race between a
// timer and a user paste gesture.
//
// Each acquisition carries a generation number. Starting a new one cancels
// the previous one, and a stage result is only committed while its
// generation is still current, so a superseded acquisition can never
// overwrite newer state.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/paste"
)

// DefaultTimeout is how long stage 3 waits for a paste gesture.
const DefaultTimeout = 2 * time.Second

// Nudger asks the user's UI to produce a paste gesture. It is best-effort:
// errors are logged and otherwise ignored.
type Nudger interface {
	RequestPaste(generation uint64, hint string) error
}

// Config wires an Engine to its collaborators. Only Capabilities is
// required; a nil Pastes disables stage 3.
type Config struct {
	Capabilities clip.Capabilities
	Pastes       *paste.Bus
	Nudger       Nudger
	Translator   i18n.Translator
	Timeout      time.Duration
	// OnChange receives every committed state. It is called with the
	// engine lock held and must not call back into the Engine.
	OnChange func(State)

	now   func() time.Time
	newID func() string
}

// Engine runs acquisitions for one UI surface.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
	closed bool
}

// New returns an idle Engine.
func New(cfg Config) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Translator == nil {
		cfg.Translator = i18n.New()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.newID == nil {
		cfg.newID = uuid.NewString
	}
	return &Engine{cfg: cfg, state: State{Status: StatusIdle}}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns the last delivered snapshot, if any.
func (e *Engine) Snapshot() (clipdata.Snapshot, bool) {
	st := e.State()
	if st.Snapshot == nil {
		return clipdata.Snapshot{}, false
	}
	return *st.Snapshot, true
}

// Acquire runs one acquisition and blocks until it is delivered, fails,
// is superseded, or ctx ends. A call made while another is pending
// supersedes it.
func (e *Engine) Acquire(ctx context.Context) (clipdata.Snapshot, error) {
	gen, ctx, err := e.begin(ctx)
	if err != nil {
		return clipdata.Snapshot{}, err
	}
	snap, src, err := e.safeRun(ctx, gen)
	return e.finish(gen, snap, src, err)
}

// safeRun keeps a misbehaving capability from taking the caller down.
func (e *Engine) safeRun(ctx context.Context, gen uint64) (snap clipdata.Snapshot, src clipdata.Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("clipboard capability panicked", "generation", gen, "panic", r)
			snap, src, err = clipdata.Snapshot{}, clipdata.SourceNone, fmt.Errorf("%w: capability panicked: %v", ErrNoCapability, r)
		}
	}()
	return e.run(ctx, gen)
}

// Reset cancels any pending acquisition and returns to Idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidateLocked()
	e.commitLocked(State{Generation: e.gen, Status: StatusIdle})
}

// Close tears the engine down. Pending acquisitions return ErrSuperseded
// and later calls return ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.invalidateLocked()
}

func (e *Engine) begin(parent context.Context) (uint64, context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, nil, ErrClosed
	}
	e.invalidateLocked()
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	e.commitLocked(State{Generation: e.gen, Status: StatusInProgress})
	slog.Debug("acquisition started", "generation", e.gen)
	return e.gen, ctx, nil
}

// invalidateLocked cancels the active acquisition and moves to a fresh
// generation.
func (e *Engine) invalidateLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
}

func (e *Engine) commitLocked(st State) {
	e.state = st
	if e.cfg.OnChange != nil {
		e.cfg.OnChange(st)
	}
}

// finish commits the outcome of generation gen if it is still current.
func (e *Engine) finish(gen uint64, snap clipdata.Snapshot, src clipdata.Source, err error) (clipdata.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		slog.Debug("discarding superseded acquisition", "generation", gen, "current", e.gen)
		return clipdata.Snapshot{}, ErrSuperseded
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	switch {
	case err == nil:
		snap = snap.Stamp(e.cfg.newID(), e.cfg.now(), src)
		e.commitLocked(State{Generation: gen, Status: StatusSucceeded, Snapshot: &snap})
		logSnapshot("clipboard acquired", snap)
		return snap, nil

	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNoCapability):
		key := i18n.KeyTimeout
		if errors.Is(err, ErrNoCapability) {
			key = i18n.KeyUnsupported
		}
		fe := &FailedError{Reason: err, Message: e.cfg.Translator.T(key)}
		e.commitLocked(State{Generation: gen, Status: StatusFailed, Error: fe.Message})
		slog.Info("clipboard acquisition failed", "generation", gen, "reason", err)
		return clipdata.Snapshot{}, fe

	default:
		// Caller went away or the paste listener was taken by someone else.
		e.commitLocked(State{Generation: gen, Status: StatusIdle})
		slog.Debug("acquisition abandoned", "generation", gen, "err", err)
		return clipdata.Snapshot{}, err
	}
}

// run executes the fallback chain. Each stage only runs if the previous
// ones produced nothing.
func (e *Engine) run(ctx context.Context, gen uint64) (clipdata.Snapshot, clipdata.Source, error) {
	caps := e.cfg.Capabilities
	if !caps.CanRead() && e.cfg.Pastes == nil {
		return clipdata.Snapshot{}, clipdata.SourceNone, ErrNoCapability
	}

	if snap := e.readStructured(ctx); !snap.Empty() {
		return snap, clipdata.SourceStructured, nil
	}
	if err := ctx.Err(); err != nil {
		return clipdata.Snapshot{}, clipdata.SourceNone, err
	}

	text := e.readText(ctx)
	if err := ctx.Err(); err != nil {
		return clipdata.Snapshot{}, clipdata.SourceNone, err
	}

	if e.cfg.Pastes == nil {
		if text.Empty() {
			return text, clipdata.SourceNone, ErrTimeout
		}
		return text, clipdata.SourceText, nil
	}
	return e.awaitPaste(ctx, gen, text)
}

// readStructured is stage 1. Per-type failures are logged and skipped.
func (e *Engine) readStructured(ctx context.Context) clipdata.Snapshot {
	var snap clipdata.Snapshot
	r := e.cfg.Capabilities.Structured
	if r == nil {
		return snap
	}
	items, err := r.Read(ctx)
	if err != nil {
		slog.Warn("structured clipboard read failed, falling back", "reader", r.Name(), "err", err)
		return snap
	}
	for _, it := range items {
		for _, mime := range it.Types() {
			raw, err := it.Fetch(ctx, mime)
			if err != nil {
				slog.Warn("clipboard type unreadable", "type", mime, "err", err)
				continue
			}
			snap = snap.With(clipdata.NewEntry(mime, raw))
		}
	}
	slog.Debug("structured read done", "reader", r.Name(), "items", len(items), "entries", snap.Len())
	return snap
}

// readText is stage 2. Failures leave the snapshot textless.
func (e *Engine) readText(ctx context.Context) clipdata.Snapshot {
	var snap clipdata.Snapshot
	r := e.cfg.Capabilities.Text
	if r == nil {
		return snap
	}
	text, err := r.ReadText(ctx)
	if err != nil {
		slog.Warn("text clipboard read failed", "err", err)
		return snap
	}
	if text != "" {
		snap = snap.With(clipdata.NewTextEntry(clipdata.MIMEText, text))
	}
	return snap
}

// awaitPaste is stage 3: the paste listener and timer are both armed before
// either can fire, and both are released on every exit path.
func (e *Engine) awaitPaste(ctx context.Context, gen uint64, sofar clipdata.Snapshot) (clipdata.Snapshot, clipdata.Source, error) {
	sub := e.cfg.Pastes.Subscribe()
	defer sub.Close()
	timer := time.NewTimer(e.cfg.Timeout)
	defer timer.Stop()

	if e.cfg.Nudger != nil {
		if err := e.cfg.Nudger.RequestPaste(gen, e.cfg.Translator.T(i18n.KeyManualPaste)); err != nil {
			slog.Debug("paste nudge ignored", "err", err)
		}
	}

	select {
	case <-ctx.Done():
		return clipdata.Snapshot{}, clipdata.SourceNone, ctx.Err()

	case <-timer.C:
		if sofar.Empty() {
			return sofar, clipdata.SourceNone, ErrTimeout
		}
		slog.Debug("paste window elapsed, delivering partial snapshot", "entries", sofar.Len())
		return sofar, clipdata.SourceText, nil

	case ev, ok := <-sub.C():
		if !ok {
			return clipdata.Snapshot{}, clipdata.SourceNone, ErrSuperseded
		}
		timer.Stop()
		return fromPaste(ctx, sofar, ev), clipdata.SourcePaste, nil
	}
}

// fromPaste merges a paste gesture into sofar. Every file is read before
// returning, so the delivered snapshot is complete.
func fromPaste(ctx context.Context, sofar clipdata.Snapshot, ev paste.Event) clipdata.Snapshot {
	out := sofar
	if text := ev.Get(clipdata.MIMEText); text != "" && !out.Has(clipdata.MIMEText) {
		out = out.With(clipdata.NewTextEntry(clipdata.MIMEText, text))
	}
	if html := ev.Get(clipdata.MIMEHTML); html != "" {
		out = out.With(clipdata.NewTextEntry(clipdata.MIMEHTML, html))
	}
	for _, format := range ev.Types {
		if format == paste.FilesType {
			continue
		}
		data := ev.Get(format)
		if data == "" || out.Has(format) {
			continue
		}
		out = out.With(clipdata.NewTextEntry(format, data))
	}

	for _, f := range ev.Files {
		if f.Read == nil {
			continue
		}
		raw, err := f.Read(ctx)
		if err != nil {
			slog.Warn("pasted file unreadable", "name", f.Name, "type", f.MIME, "err", err)
			continue
		}
		entry := clipdata.NewFileEntry(f.MIME, raw)
		if out.Has(entry.MIME) {
			slog.Debug("pasted file shadowed by existing entry", "name", f.Name, "type", entry.MIME)
			continue
		}
		if f.Size > 0 {
			size := f.Size
			entry.Size = &size
		}
		out = out.With(entry)
	}
	return out
}
