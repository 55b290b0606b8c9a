package acquire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/paste"
)

type fakeItem struct {
	types []string
	data  map[string][]byte
}

func (it fakeItem) Types() []string { return it.types }

func (it fakeItem) Fetch(_ context.Context, mime string) ([]byte, error) {
	b, ok := it.data[mime]
	if !ok {
		return nil, fmt.Errorf("%s: denied", mime)
	}
	return b, nil
}

// fakeStructured returns results[n] on its n-th call, repeating the last.
type fakeStructured struct {
	results [][]clip.Item
	err     error
	panics  bool
	calls   atomic.Int32
}

func (f *fakeStructured) Name() string { return "fake" }

func (f *fakeStructured) Read(context.Context) ([]clip.Item, error) {
	n := int(f.calls.Add(1)) - 1
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	return f.results[min(n, len(f.results)-1)], nil
}

type fakeText struct {
	text  string
	err   error
	calls atomic.Int32
}

func (f *fakeText) ReadText(context.Context) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

type fakeNudger struct {
	calls atomic.Int32
}

func (f *fakeNudger) RequestPaste(uint64, string) error {
	f.calls.Add(1)
	return errors.New("nobody home")
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	for i, st := range r.states {
		out[i] = st.Status
	}
	return out
}

func newTestEngine(cfg Config) (*Engine, *recorder) {
	rec := &recorder{}
	cfg.OnChange = rec.record
	var n atomic.Int32
	cfg.newID = func() string { return fmt.Sprintf("snap-%d", n.Add(1)) }
	cfg.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return New(cfg), rec
}

func textItem(pairs ...string) []clip.Item {
	it := fakeItem{data: map[string][]byte{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		it.types = append(it.types, pairs[i])
		it.data[pairs[i]] = []byte(pairs[i+1])
	}
	return []clip.Item{it}
}

// dispatchWhenLive waits for a paste listener and then delivers ev.
func dispatchWhenLive(t *testing.T, bus *paste.Bus, ev paste.Event) {
	t.Helper()
	if assert.Eventually(t, bus.Live, 2*time.Second, time.Millisecond) {
		assert.True(t, bus.Dispatch(ev))
	}
}

func TestStructuredShortCircuits(t *testing.T) {
	structured := &fakeStructured{results: [][]clip.Item{textItem("text/plain", "hi", "text/html", "<b>hi</b>")}}
	text := &fakeText{text: "unused"}
	nudger := &fakeNudger{}
	bus := paste.NewBus()
	e, rec := newTestEngine(Config{
		Capabilities: clip.Capabilities{Structured: structured, Text: text},
		Pastes:       bus,
		Nudger:       nudger,
	})

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snap.ID())
	assert.Equal(t, clipdata.SourceStructured, snap.Source())
	assert.Equal(t, []string{"text/plain", "text/html"}, snap.Types())
	assert.True(t, snap.HasRichText())

	assert.Zero(t, text.calls.Load())
	assert.Zero(t, nudger.calls.Load())
	assert.False(t, bus.Live())
	assert.Equal(t, []Status{StatusInProgress, StatusSucceeded}, rec.statuses())

	got, ok := e.Snapshot()
	require.True(t, ok)
	assert.Equal(t, snap.ID(), got.ID())
}

func TestStructuredSkipsUnreadableTypes(t *testing.T) {
	item := fakeItem{
		types: []string{"text/plain", "image/png"},
		data:  map[string][]byte{"text/plain": []byte("ok")},
	}
	e, _ := newTestEngine(Config{Capabilities: clip.Capabilities{
		Structured: &fakeStructured{results: [][]clip.Item{{item}}},
	}})

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"text/plain"}, snap.Types())
}

func TestStructuredBinaryBecomesDataURI(t *testing.T) {
	item := fakeItem{
		types: []string{"image/png"},
		data:  map[string][]byte{"image/png": {0x89, 'P', 'N', 'G'}},
	}
	e, _ := newTestEngine(Config{Capabilities: clip.Capabilities{
		Structured: &fakeStructured{results: [][]clip.Item{{item}}},
	}})

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	entry, ok := snap.Lookup("image/png")
	require.True(t, ok)
	assert.True(t, entry.IsImage)
	assert.False(t, entry.IsFile)
	require.NotNil(t, entry.Size)
	assert.EqualValues(t, 4, *entry.Size)
	assert.Equal(t, "data:image/png;base64,iVBORw==", entry.Payload)
}

func TestTimeoutDeliversPartialText(t *testing.T) {
	text := &fakeText{text: "seed"}
	nudger := &fakeNudger{}
	bus := paste.NewBus()
	e, rec := newTestEngine(Config{
		Capabilities: clip.Capabilities{Structured: &fakeStructured{err: errors.New("denied")}, Text: text},
		Pastes:       bus,
		Nudger:       nudger,
		Timeout:      20 * time.Millisecond,
	})

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clipdata.SourceText, snap.Source())
	assert.Equal(t, "seed", snap.PrimaryText())
	assert.Equal(t, 1, snap.Len())

	assert.EqualValues(t, 1, text.calls.Load())
	assert.EqualValues(t, 1, nudger.calls.Load(), "nudge error must be ignored")
	assert.False(t, bus.Live(), "listener must be released on timeout")
	assert.Equal(t, []Status{StatusInProgress, StatusSucceeded}, rec.statuses())
}

func TestTimeoutWithNothingFails(t *testing.T) {
	bus := paste.NewBus()
	tr := i18n.New("en")
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Structured: &fakeStructured{}, Text: &fakeText{}},
		Pastes:       bus,
		Translator:   tr,
		Timeout:      10 * time.Millisecond,
	})

	_, err := e.Acquire(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	var fe *FailedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, tr.T(i18n.KeyTimeout), fe.Message)

	st := e.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, fe.Message, st.Error)
	assert.Nil(t, st.Snapshot)
	assert.False(t, bus.Live())
}

func TestTimeoutMessageIsTranslated(t *testing.T) {
	zh := i18n.New("zh-CN")
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Text: &fakeText{}},
		Pastes:       paste.NewBus(),
		Translator:   zh,
		Timeout:      5 * time.Millisecond,
	})
	_, err := e.Acquire(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, zh.T(i18n.KeyTimeout), e.State().Error)
	assert.NotEqual(t, i18n.New("en").T(i18n.KeyTimeout), e.State().Error)
}

func TestPasteWinsRace(t *testing.T) {
	bus := paste.NewBus()
	e, rec := newTestEngine(Config{
		Capabilities: clip.Capabilities{Structured: &fakeStructured{}, Text: &fakeText{text: "seed"}},
		Pastes:       bus,
		Timeout:      100 * time.Millisecond,
	})

	png := []byte{1, 2, 3}
	ev := paste.Event{
		Types: []string{"text/plain", "text/html", "application/x-custom", "", paste.FilesType},
		Data: map[string]string{
			"text/plain":           "pasted",
			"text/html":            "<i>x</i>",
			"application/x-custom": "custom",
		},
		Files: []paste.File{{
			Name: "shot.png",
			MIME: "image/png",
			Size: 3,
			Read: func(context.Context) ([]byte, error) {
				time.Sleep(20 * time.Millisecond)
				return png, nil
			},
		}},
	}
	go dispatchWhenLive(t, bus, ev)

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clipdata.SourcePaste, snap.Source())
	assert.Equal(t, "seed", snap.PrimaryText(), "paste must not replace existing text")
	html, ok := snap.PrimaryHTML()
	require.True(t, ok)
	assert.Equal(t, "<i>x</i>", html)
	assert.True(t, snap.Has("application/x-custom"))
	assert.False(t, snap.Has(paste.FilesType))

	file, ok := snap.Lookup("image/png")
	require.True(t, ok, "files are read before delivery")
	assert.True(t, file.IsFile)
	assert.True(t, file.IsImage)
	require.NotNil(t, file.Size)
	assert.EqualValues(t, 3, *file.Size)
	assert.Equal(t, clipdata.DataURI("image/png", png), file.Payload)

	// The timer must be dead: nothing may flip the state afterwards.
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, StatusSucceeded, e.State().Status)
	assert.Equal(t, []Status{StatusInProgress, StatusSucceeded}, rec.statuses())
	assert.False(t, bus.Live())
}

func TestPasteFileDefaultsAndFailures(t *testing.T) {
	bus := paste.NewBus()
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Text: &fakeText{}},
		Pastes:       bus,
		Timeout:      time.Second,
	})

	ev := paste.Event{
		Types: []string{paste.FilesType},
		Files: []paste.File{
			{Name: "broken", MIME: "text/csv", Read: func(context.Context) ([]byte, error) {
				return nil, errors.New("io")
			}},
			{Name: "blob", Read: func(context.Context) ([]byte, error) { return []byte("x"), nil }},
		},
	}
	go dispatchWhenLive(t, bus, ev)

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{clipdata.MIMEBinary}, snap.Types())
	entry, _ := snap.Lookup(clipdata.MIMEBinary)
	assert.True(t, entry.IsFile)
	assert.False(t, entry.IsImage)
}

func TestNoCapability(t *testing.T) {
	e, _ := newTestEngine(Config{})
	_, err := e.Acquire(context.Background())
	require.ErrorIs(t, err, ErrNoCapability)
	assert.Equal(t, StatusFailed, e.State().Status)
	assert.Equal(t, i18n.New().T(i18n.KeyUnsupported), e.State().Error)
}

func TestWithoutPasteBus(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		e, _ := newTestEngine(Config{Capabilities: clip.Capabilities{Text: &fakeText{text: "t"}}})
		snap, err := e.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t", snap.PrimaryText())
	})
	t.Run("nothing", func(t *testing.T) {
		e, _ := newTestEngine(Config{Capabilities: clip.Capabilities{Text: &fakeText{}}})
		_, err := e.Acquire(context.Background())
		require.ErrorIs(t, err, ErrTimeout)
	})
}

func TestSupersededAcquisitionHasNoEffect(t *testing.T) {
	// First call finds nothing and parks in stage 3, second call succeeds.
	structured := &fakeStructured{results: [][]clip.Item{nil, textItem("text/plain", "second")}}
	bus := paste.NewBus()
	e, rec := newTestEngine(Config{
		Capabilities: clip.Capabilities{Structured: structured, Text: &fakeText{}},
		Pastes:       bus,
		Timeout:      50 * time.Millisecond,
	})

	first := make(chan error, 1)
	go func() {
		_, err := e.Acquire(context.Background())
		first <- err
	}()
	require.Eventually(t, bus.Live, 2*time.Second, time.Millisecond)

	snap, err := e.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", snap.PrimaryText())

	require.ErrorIs(t, <-first, ErrSuperseded)

	// Outlive the first call's timer.
	time.Sleep(150 * time.Millisecond)
	st := e.State()
	assert.Equal(t, StatusSucceeded, st.Status)
	assert.EqualValues(t, 2, st.Generation)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, snap.ID(), st.Snapshot.ID())
	assert.NotContains(t, rec.statuses(), StatusFailed)
	assert.False(t, bus.Live())
}

func TestResetCancelsPending(t *testing.T) {
	bus := paste.NewBus()
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Text: &fakeText{}},
		Pastes:       bus,
		Timeout:      5 * time.Second,
	})

	done := make(chan error, 1)
	go func() {
		_, err := e.Acquire(context.Background())
		done <- err
	}()
	require.Eventually(t, bus.Live, 2*time.Second, time.Millisecond)

	e.Reset()
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("acquisition did not stop after Reset")
	}
	assert.Equal(t, StatusIdle, e.State().Status)
	require.Eventually(t, func() bool { return !bus.Live() }, time.Second, time.Millisecond)

	// A paste arriving now has nobody to go to.
	assert.False(t, bus.Dispatch(paste.Event{Types: []string{"text/plain"}}))
}

func TestCallerCancellation(t *testing.T) {
	bus := paste.NewBus()
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Text: &fakeText{}},
		Pastes:       bus,
		Timeout:      5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		assert.Eventually(t, bus.Live, 2*time.Second, time.Millisecond)
		cancel()
	}()

	_, err := e.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusIdle, e.State().Status)
	assert.False(t, bus.Live())
}

func TestListenerStolen(t *testing.T) {
	bus := paste.NewBus()
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Text: &fakeText{}},
		Pastes:       bus,
		Timeout:      5 * time.Second,
	})

	go func() {
		assert.Eventually(t, bus.Live, 2*time.Second, time.Millisecond)
		bus.Subscribe().Close()
	}()

	_, err := e.Acquire(context.Background())
	require.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, StatusIdle, e.State().Status)
}

func TestClose(t *testing.T) {
	bus := paste.NewBus()
	e, _ := newTestEngine(Config{
		Capabilities: clip.Capabilities{Text: &fakeText{}},
		Pastes:       bus,
		Timeout:      5 * time.Second,
	})

	done := make(chan error, 1)
	go func() {
		_, err := e.Acquire(context.Background())
		done <- err
	}()
	require.Eventually(t, bus.Live, 2*time.Second, time.Millisecond)

	e.Close()
	e.Close()
	require.ErrorIs(t, <-done, ErrSuperseded)

	_, err := e.Acquire(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestPanickingCapability(t *testing.T) {
	e, _ := newTestEngine(Config{Capabilities: clip.Capabilities{Structured: &fakeStructured{panics: true}}})
	_, err := e.Acquire(context.Background())
	require.ErrorIs(t, err, ErrNoCapability)
	assert.Equal(t, StatusFailed, e.State().Status)
}

func TestRepeatedAcquisitionsBumpGeneration(t *testing.T) {
	e, rec := newTestEngine(Config{Capabilities: clip.Capabilities{Text: &fakeText{text: "x"}}})
	for i := 1; i <= 3; i++ {
		snap, err := e.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("snap-%d", i), snap.ID())
		assert.EqualValues(t, i, e.State().Generation)
	}
	assert.Len(t, rec.statuses(), 6)
}
