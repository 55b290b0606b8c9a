//go:build !darwin && !windows && !linux

package clip

// system has no native clipboard here (BSDs without cgo, plan9, wasm...).
// atotto may still find xclip/xsel on the BSDs.
func system() (Capabilities, error) {
	if t := newText(); t != nil {
		return Capabilities{Text: t, Writer: textOnlyWriter{t}}, nil
	}
	return Capabilities{}, ErrUnavailable
}
