//go:build darwin

package clip

// system returns the macOS NSPasteboard capabilities.
func system() (Capabilities, error) {
	b, err := newDesign()
	if err != nil {
		return Capabilities{}, err
	}
	caps := Capabilities{Structured: b, Text: b, Writer: b}
	if t := newText(); t != nil {
		caps.Text = t
	}
	return caps, nil
}
