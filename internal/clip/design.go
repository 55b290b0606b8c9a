//go:build darwin || windows || linux

package clip

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"golang.design/x/clipboard"
)

// designBackend reads and writes text/plain and image/png through
// golang.design/x/clipboard.
type designBackend struct {
	text *textClipboard
}

// formats maps the MIME types golang.design understands to its formats.
var formats = map[string]clipboard.Format{
	"text/plain":               clipboard.FmtText,
	"text/plain;charset=utf-8": clipboard.FmtText,
	"image/png":                clipboard.FmtImage,
}

// newDesign initialises golang.design/x/clipboard. Init is called here rather
// than in init() so CLI sub-commands that never open a clipboard stay quiet
// on headless systems.
func newDesign() (*designBackend, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &designBackend{text: newText()}, nil
}

func (b *designBackend) Name() string { return "golang.design/x/clipboard" }

func (b *designBackend) Read(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var types []string
	if clipboard.Read(clipboard.FmtText) != nil {
		types = append(types, "text/plain")
	}
	if clipboard.Read(clipboard.FmtImage) != nil {
		types = append(types, "image/png")
	}
	if len(types) == 0 {
		return nil, nil
	}
	return []Item{staticItem{types: types, fetch: b.fetch}}, nil
}

func (b *designBackend) fetch(ctx context.Context, mime string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := formats[mime]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
	data := clipboard.Read(f)
	if data == nil {
		return nil, fmt.Errorf("%s: no longer on clipboard", mime)
	}
	return data, nil
}

// ReadText implements TextReader without going through atotto.
func (b *designBackend) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// Write rejects the whole map if any type is unsupported, so callers can
// fall back to narrower writes. Images are written before text.
func (b *designBackend) Write(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for mime := range items {
		if _, ok := formats[mime]; !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
		}
	}
	for _, mime := range slices.Sorted(maps.Keys(items)) {
		if formats[mime] == clipboard.FmtImage {
			clipboard.Write(clipboard.FmtImage, items[mime])
		}
	}
	for _, mime := range slices.Sorted(maps.Keys(items)) {
		if formats[mime] == clipboard.FmtText {
			clipboard.Write(clipboard.FmtText, items[mime])
		}
	}
	return nil
}

func (b *designBackend) WriteText(ctx context.Context, text string) error {
	if b.text != nil {
		return b.text.WriteText(ctx, text)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
