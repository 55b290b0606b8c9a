// Package clip exposes the host clipboard as a set of optional capabilities.
// Build constraints select the platform implementation:
//
//	clip_linux.go     wl-paste/wl-copy or xclip, golang.design/x/clipboard fallback
//	clip_darwin.go    golang.design/x/clipboard
//	clip_windows.go   golang.design/x/clipboard
//	clip_other.go     in-memory clipboard
//
// A capability that is nil in Capabilities is absent on this host.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrUnavailable means the platform clipboard could not be opened.
	ErrUnavailable = errors.New("clipboard unavailable")
	// ErrUnsupportedType is returned by writers that reject a MIME type or
	// a combination of types.
	ErrUnsupportedType = errors.New("unsupported clipboard type")
)

// Item is one clipboard item: a list of declared types and a per-type fetch.
type Item interface {
	Types() []string
	Fetch(ctx context.Context, mime string) ([]byte, error)
}

// StructuredReader enumerates every clipboard item with its typed payloads.
type StructuredReader interface {
	Name() string
	Read(ctx context.Context) ([]Item, error)
}

// TextReader returns only the plain-text representation.
type TextReader interface {
	ReadText(ctx context.Context) (string, error)
}

// Writer sets the clipboard.
type Writer interface {
	// Write replaces the clipboard with all given representations at once.
	Write(ctx context.Context, items map[string][]byte) error
	// WriteText replaces the clipboard with plain text only.
	WriteText(ctx context.Context, text string) error
}

// Capabilities is the set of clipboard operations available on this host.
type Capabilities struct {
	Structured StructuredReader
	Text       TextReader
	Writer     Writer
}

// CanRead reports whether at least one read capability exists.
func (c Capabilities) CanRead() bool {
	return c.Structured != nil || c.Text != nil
}

// Kind selects a backend.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindSystem Kind = "system"
	KindMemory Kind = "memory"
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAuto:
		return KindAuto, nil
	case KindSystem, KindMemory:
		return k, nil
	default:
		return "", fmt.Errorf("unknown clipboard backend %q (want auto|system|memory)", s)
	}
}

// Open returns the capabilities for kind. KindAuto falls back to an
// in-memory clipboard when the system clipboard cannot be opened, so a
// headless host still serves pasted data.
func Open(kind Kind) (Capabilities, error) {
	switch kind {
	case KindMemory:
		return NewMemory().Capabilities(), nil
	case KindSystem:
		return system()
	}
	caps, err := system()
	if err != nil {
		slog.Warn("system clipboard unavailable, using in-memory clipboard", "err", err)
		return NewMemory().Capabilities(), nil
	}
	return caps, nil
}

// Describe names the capabilities for log output.
func Describe(c Capabilities) []string {
	var out []string
	if c.Structured != nil {
		out = append(out, "structured:"+c.Structured.Name())
	}
	if c.Text != nil {
		out = append(out, "text")
	}
	if c.Writer != nil {
		out = append(out, "write")
	}
	return out
}

// staticItem is an Item backed by a fetch function.
type staticItem struct {
	types []string
	fetch func(ctx context.Context, mime string) ([]byte, error)
}

func (it staticItem) Types() []string { return it.types }

func (it staticItem) Fetch(ctx context.Context, mime string) ([]byte, error) {
	return it.fetch(ctx, mime)
}
