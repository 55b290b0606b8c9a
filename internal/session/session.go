// Package session binds one acquisition engine to copy-back so that copies
// always target the snapshot the user is looking at.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/copyback"
)

var (
	// ErrNoSnapshot means nothing has been acquired yet.
	ErrNoSnapshot = errors.New("no snapshot acquired")
	// ErrStaleSnapshot means the caller edited a snapshot that has since
	// been replaced.
	ErrStaleSnapshot = errors.New("snapshot is no longer current")
)

// Session is one inspector surface.
type Session struct {
	engine *acquire.Engine
	copier *copyback.Copier
	caps   clip.Capabilities
}

// New returns a Session.
func New(engine *acquire.Engine, copier *copyback.Copier, caps clip.Capabilities) *Session {
	return &Session{engine: engine, copier: copier, caps: caps}
}

// Acquire runs an acquisition and returns the resulting state.
func (s *Session) Acquire(ctx context.Context) (acquire.State, error) {
	snap, err := s.engine.Acquire(ctx)
	if err != nil {
		return s.engine.State(), err
	}
	st := s.engine.State()
	if st.Snapshot == nil || st.Snapshot.ID() != snap.ID() {
		// A newer acquisition already replaced ours; report what we delivered.
		st = acquire.State{Status: acquire.StatusSucceeded, Snapshot: &snap}
	}
	return st, nil
}

// State returns the current acquisition state.
func (s *Session) State() acquire.State { return s.engine.State() }

// Capabilities describes the clipboard capabilities in use.
func (s *Session) Capabilities() []string { return clip.Describe(s.caps) }

// Reset drops the current snapshot.
func (s *Session) Reset() { s.engine.Reset() }

// snapshot returns the delivered snapshot, checking it against id when id
// is non-empty.
func (s *Session) snapshot(id string) (clipdata.Snapshot, error) {
	snap, ok := s.engine.Snapshot()
	if !ok {
		return clipdata.Snapshot{}, ErrNoSnapshot
	}
	if id != "" && snap.ID() != id {
		return clipdata.Snapshot{}, fmt.Errorf("%w: have %s, got %s", ErrStaleSnapshot, snap.ID(), id)
	}
	return snap, nil
}

// CopyBack writes every entry of the current snapshot, with edits applied.
func (s *Session) CopyBack(ctx context.Context, snapshotID string, edits map[int]string) (copyback.Result, error) {
	snap, err := s.snapshot(snapshotID)
	if err != nil {
		return copyback.Result{}, err
	}
	return s.copier.CopyBack(ctx, snap, edits)
}

// CopyEntry writes a single entry of the current snapshot.
func (s *Session) CopyEntry(ctx context.Context, snapshotID string, index int, edits map[int]string) (copyback.Result, error) {
	snap, err := s.snapshot(snapshotID)
	if err != nil {
		return copyback.Result{}, err
	}
	return s.copier.CopyEntry(ctx, snap, index, edits)
}
