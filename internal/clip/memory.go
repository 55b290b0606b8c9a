package clip

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-process clipboard. It serves all three capabilities and
// is used on headless hosts, with --backend memory, and in tests.
type Memory struct {
	mu     sync.RWMutex
	types  []string
	data   map[string][]byte
	accept map[string]struct{} // nil = any type
	writes int
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Restrict makes Write reject any type outside accepted, mimicking a
// platform that only supports some formats. WriteText is never restricted.
func (m *Memory) Restrict(accepted ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accept = make(map[string]struct{}, len(accepted))
	for _, a := range accepted {
		m.accept[a] = struct{}{}
	}
	return m
}

// Set adds or replaces one representation without clearing the others.
func (m *Memory) Set(mime string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[mime]; !ok {
		m.types = append(m.types, mime)
	}
	m.data[mime] = slices.Clone(data)
}

// Get returns the bytes stored under mime.
func (m *Memory) Get(mime string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[mime]
	return slices.Clone(b), ok
}

// Types returns the stored types in insertion order.
func (m *Memory) Types() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.types)
}

// Writes returns the number of successful Write/WriteText calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Name() string { return "memory" }

// Read implements StructuredReader. A non-empty clipboard is one item.
func (m *Memory) Read(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	types := m.Types()
	if len(types) == 0 {
		return nil, nil
	}
	return []Item{staticItem{
		types: types,
		fetch: func(ctx context.Context, mime string) ([]byte, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			b, ok := m.Get(mime)
			if !ok {
				return nil, fmt.Errorf("%s: no longer on clipboard", mime)
			}
			return b, nil
		},
	}}, nil
}

// ReadText implements TextReader.
func (m *Memory) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, _ := m.Get("text/plain")
	return string(b), nil
}

// Write implements Writer. The write is all-or-nothing.
func (m *Memory) Write(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accept != nil {
		for mime := range items {
			if _, ok := m.accept[mime]; !ok {
				return fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
			}
		}
	}
	m.types = slices.Sorted(maps.Keys(items))
	m.data = make(map[string][]byte, len(items))
	for mime, b := range items {
		m.data[mime] = slices.Clone(b)
	}
	m.writes++
	return nil
}

// WriteText implements Writer.
func (m *Memory) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = []string{"text/plain"}
	m.data = map[string][]byte{"text/plain": []byte(text)}
	m.writes++
	return nil
}

// Capabilities returns m as every capability.
func (m *Memory) Capabilities() Capabilities {
	return Capabilities{Structured: m, Text: m, Writer: m}
}
