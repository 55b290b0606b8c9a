//go:build linux

package clip

import (
	"fmt"
	"os"
	"os/exec"
)

// system picks the richest clipboard access available: wl-clipboard under
// Wayland, xclip under X11, then golang.design/x/clipboard, which only knows
// text/plain and image/png.
func system() (Capabilities, error) {
	text := newText()
	if tools, ok := detectTools(); ok {
		b := &toolBackend{tools: tools, run: execRunner, text: text}
		return Capabilities{Structured: b, Text: b, Writer: b}, nil
	}
	b, err := newDesign()
	if err != nil {
		if text != nil {
			return Capabilities{Text: text, Writer: textOnlyWriter{text}}, nil
		}
		return Capabilities{}, fmt.Errorf("no wl-paste or xclip, and %w", err)
	}
	caps := Capabilities{Structured: b, Text: b, Writer: b}
	if text != nil {
		caps.Text = text
	}
	return caps, nil
}

func detectTools() (toolSet, bool) {
	if os.Getenv("WAYLAND_DISPLAY") != "" && onPath("wl-paste", "wl-copy") {
		return waylandTools, true
	}
	if os.Getenv("DISPLAY") != "" && onPath("xclip") {
		return x11Tools, true
	}
	return toolSet{}, false
}

func onPath(names ...string) bool {
	for _, n := range names {
		if _, err := exec.LookPath(n); err != nil {
			return false
		}
	}
	return true
}
