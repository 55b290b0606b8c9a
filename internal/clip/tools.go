package clip

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// runner executes an external program, feeding stdin and returning stdout.
type runner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

// toolWaitDelay bounds how long a finished tool may hold its output open.
// xclip and wl-copy fork a child that keeps the selection and inherits the
// parent's descriptors.
const toolWaitDelay = 250 * time.Millisecond

// execRunner runs a tool. A call with stdin is a write: its output is
// discarded so a forked selection owner has no pipe to hold open.
func execRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = toolWaitDelay
	var stdout, stderr bytes.Buffer
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}
	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		// The tool itself exited cleanly; only a child kept the pipes.
		err = nil
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// toolSet describes the command lines of one clipboard tool family.
type toolSet struct {
	name  string
	list  []string
	fetch func(mime string) []string
	copy  func(mime string) []string
}

var (
	waylandTools = toolSet{
		name:  "wl-clipboard",
		list:  []string{"wl-paste", "--list-types"},
		fetch: func(mime string) []string { return []string{"wl-paste", "--no-newline", "--type", mime} },
		copy:  func(mime string) []string { return []string{"wl-copy", "--type", mime} },
	}
	x11Tools = toolSet{
		name:  "xclip",
		list:  []string{"xclip", "-selection", "clipboard", "-t", "TARGETS", "-o"},
		fetch: func(mime string) []string {
			if mime == "text/plain" {
				mime = "UTF8_STRING"
			}
			return []string{"xclip", "-selection", "clipboard", "-t", mime, "-o"}
		},
		copy:  func(mime string) []string { return []string{"xclip", "-selection", "clipboard", "-t", mime, "-i"} },
	}
)

// pseudoTargets are X11 selection targets that describe the selection
// protocol rather than clipboard content.
var pseudoTargets = map[string]struct{}{
	"TARGETS":      {},
	"TIMESTAMP":    {},
	"MULTIPLE":     {},
	"SAVE_TARGETS": {},
	"DELETE":       {},
	"INCR":         {},
}

// textAtoms are the legacy X11 names for plain text. They are reported as
// text/plain.
var textAtoms = map[string]struct{}{
	"UTF8_STRING":   {},
	"STRING":        {},
	"TEXT":          {},
	"COMPOUND_TEXT": {},
}

// parseTargets splits a type listing into MIME types, dropping blanks,
// duplicates and X11 pseudo targets. X11 text atoms become text/plain.
func parseTargets(out []byte) []string {
	var types []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		t := strings.TrimSpace(sc.Text())
		if t == "" {
			continue
		}
		if _, ok := pseudoTargets[t]; ok {
			continue
		}
		if _, ok := textAtoms[t]; ok {
			t = "text/plain"
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types
}

// toolBackend enumerates and fetches every clipboard type through an
// external tool. It is the only backend that sees vendor formats.
type toolBackend struct {
	tools toolSet
	run   runner
	text  *textClipboard
}

func (b *toolBackend) Name() string { return b.tools.name }

func (b *toolBackend) Read(ctx context.Context) ([]Item, error) {
	out, err := b.run(ctx, nil, b.tools.list[0], b.tools.list[1:]...)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	types := parseTargets(out)
	if len(types) == 0 {
		return nil, nil
	}
	return []Item{staticItem{types: types, fetch: b.fetch}}, nil
}

func (b *toolBackend) fetch(ctx context.Context, mime string) ([]byte, error) {
	argv := b.tools.fetch(mime)
	return b.run(ctx, nil, argv[0], argv[1:]...)
}

func (b *toolBackend) ReadText(ctx context.Context) (string, error) {
	out, err := b.fetch(ctx, "text/plain")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Write hands a single representation to the tool. Both tools own the
// selection for one type per process, so multi-type maps are rejected and
// the caller narrows the write.
func (b *toolBackend) Write(ctx context.Context, items map[string][]byte) error {
	if len(items) != 1 {
		return fmt.Errorf("%w: %s writes one type at a time", ErrUnsupportedType, b.tools.name)
	}
	for mime, data := range items {
		argv := b.tools.copy(mime)
		if _, err := b.run(ctx, data, argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("write %s: %w", mime, err)
		}
	}
	return nil
}

func (b *toolBackend) WriteText(ctx context.Context, text string) error {
	if b.text != nil {
		return b.text.WriteText(ctx, text)
	}
	return b.Write(ctx, map[string][]byte{"text/plain": []byte(text)})
}
