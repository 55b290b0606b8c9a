package clip

import (
	"context"
	"fmt"

	atotto "github.com/atotto/clipboard"
)

// textClipboard is the plain-text capability backed by atotto/clipboard,
// which shells out to pbpaste, xclip/xsel/wl-paste or the Win32 API.
type textClipboard struct{}

// newText returns the plain-text reader/writer, or nil when atotto found no
// usable clipboard program.
func newText() *textClipboard {
	if atotto.Unsupported {
		return nil
	}
	return &textClipboard{}
}

func (textClipboard) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := atotto.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return s, nil
}

func (textClipboard) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := atotto.WriteAll(text); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}

// textOnlyWriter adapts the text capability to Writer for hosts without a
// multi-format clipboard. Any map other than a lone text/plain is rejected.
type textOnlyWriter struct {
	t *textClipboard
}

func (w textOnlyWriter) Write(ctx context.Context, items map[string][]byte) error {
	if b, ok := items["text/plain"]; ok && len(items) == 1 {
		return w.t.WriteText(ctx, string(b))
	}
	return ErrUnsupportedType
}

func (w textOnlyWriter) WriteText(ctx context.Context, text string) error {
	return w.t.WriteText(ctx, text)
}
