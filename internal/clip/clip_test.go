package clip

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindAuto, false},
		{"auto", KindAuto, false},
		{"System", KindSystem, false},
		{" memory ", KindMemory, false},
		{"x11", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	items, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, m.Write(ctx, map[string][]byte{
		"text/plain": []byte("hello"),
		"image/png":  {1, 2},
	}))
	items, err = m.Read(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"image/png", "text/plain"}, items[0].Types())

	b, err := items[0].Fetch(ctx, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	text, err := m.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.NoError(t, m.WriteText(ctx, "bye"))
	assert.Equal(t, []string{"text/plain"}, m.Types())
	assert.Equal(t, 2, m.Writes())
}

func TestMemoryRestrict(t *testing.T) {
	ctx := context.Background()
	m := NewMemory().Restrict("text/plain")
	m.Set("text/plain", []byte("keep"))

	err := m.Write(ctx, map[string][]byte{
		"text/plain":    []byte("a"),
		"application/x": []byte("b"),
	})
	require.ErrorIs(t, err, ErrUnsupportedType)

	got, _ := m.Get("text/plain")
	assert.Equal(t, "keep", string(got), "rejected write must not change the clipboard")
	require.NoError(t, m.WriteText(ctx, "free"))
}

func TestMemoryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseTargets(t *testing.T) {
	out := []byte("TARGETS\nTIMESTAMP\ntext/html\n\nUTF8_STRING\ntext/html\nimage/png\r\nSAVE_TARGETS\n")
	assert.Equal(t, []string{"text/html", "text/plain", "image/png"}, parseTargets(out))

	x11 := []byte("TARGETS\nUTF8_STRING\nSTRING\nTEXT\nCOMPOUND_TEXT\ntext/plain\n")
	assert.Equal(t, []string{"text/plain"}, parseTargets(x11))
	assert.Empty(t, parseTargets(nil))
}

type fakeRun struct {
	calls  [][]string
	stdin  map[string][]byte
	output map[string][]byte
	fail   map[string]error
}

func (f *fakeRun) run(_ context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)
	f.calls = append(f.calls, argv)
	key := strings.Join(argv, " ")
	if stdin != nil {
		if f.stdin == nil {
			f.stdin = make(map[string][]byte)
		}
		f.stdin[key] = stdin
	}
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.output[key], nil
}

func TestToolBackendRead(t *testing.T) {
	f := &fakeRun{output: map[string][]byte{
		"wl-paste --list-types":                    []byte("text/plain\ntext/html\n"),
		"wl-paste --no-newline --type text/plain": []byte("hi"),
		"wl-paste --no-newline --type text/html":  []byte("<b>hi</b>"),
	}}
	b := &toolBackend{tools: waylandTools, run: f.run}
	ctx := context.Background()

	items, err := b.Read(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"text/plain", "text/html"}, items[0].Types())

	html, err := items[0].Fetch(ctx, "text/html")
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", string(html))

	text, err := b.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestToolBackendX11TextAtoms(t *testing.T) {
	f := &fakeRun{output: map[string][]byte{
		"xclip -selection clipboard -t TARGETS -o":     []byte("TARGETS\nUTF8_STRING\nSTRING\ntext/html\n"),
		"xclip -selection clipboard -t UTF8_STRING -o": []byte("hi"),
	}}
	b := &toolBackend{tools: x11Tools, run: f.run}
	ctx := context.Background()

	items, err := b.Read(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"text/plain", "text/html"}, items[0].Types())

	text, err := items[0].Fetch(ctx, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(text))
}

func TestToolBackendListFailure(t *testing.T) {
	f := &fakeRun{fail: map[string]error{
		"xclip -selection clipboard -t TARGETS -o": errors.New("exit status 1"),
	}}
	b := &toolBackend{tools: x11Tools, run: f.run}
	_, err := b.Read(context.Background())
	require.Error(t, err)
}

func TestToolBackendWrite(t *testing.T) {
	f := &fakeRun{}
	b := &toolBackend{tools: x11Tools, run: f.run}
	ctx := context.Background()

	err := b.Write(ctx, map[string][]byte{"text/plain": []byte("a"), "text/html": []byte("b")})
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Empty(t, f.calls)

	require.NoError(t, b.Write(ctx, map[string][]byte{"text/html": []byte("<p>x</p>")}))
	assert.Equal(t, "<p>x</p>", string(f.stdin["xclip -selection clipboard -t text/html -i"]))

	require.NoError(t, b.WriteText(ctx, "plain"))
	assert.Equal(t, "plain", string(f.stdin["xclip -selection clipboard -t text/plain -i"]))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, []string{"structured:memory", "text", "write"}, Describe(NewMemory().Capabilities()))
	assert.Empty(t, Describe(Capabilities{}))
	assert.False(t, Capabilities{}.CanRead())
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// xclip -i and wl-copy fork a child that owns the selection after the tool
// exits. A write must not wait for that child.
func TestExecRunnerWriteDoesNotWaitForSelectionOwner(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	_, err := execRunner(ctx, []byte("data"), "sh", "-c", "cat >/dev/null; (sleep 3) & exit 0")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecRunnerReadWithLingeringChild(t *testing.T) {
	requireShell(t)
	start := time.Now()
	out, err := execRunner(context.Background(), nil, "sh", "-c", "printf hi; (sleep 3) & exit 0")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(out))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecRunnerReportsFailure(t *testing.T) {
	requireShell(t)
	_, err := execRunner(context.Background(), nil, "sh", "-c", "echo nope >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
