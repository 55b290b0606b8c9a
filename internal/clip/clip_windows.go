//go:build windows

package clip

// system returns the Windows clipboard capabilities. atotto reads text
// through the Win32 API directly, so it is preferred for the text stage.
func system() (Capabilities, error) {
	b, err := newDesign()
	if err != nil {
		if t := newText(); t != nil {
			return Capabilities{Text: t}, nil
		}
		return Capabilities{}, err
	}
	caps := Capabilities{Structured: b, Text: b, Writer: b}
	if t := newText(); t != nil {
		caps.Text = t
	}
	return caps, nil
}
