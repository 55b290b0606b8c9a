// Package copyback writes an edited snapshot back to the system clipboard.
//
// The preferred path is a single multi-type write. Hosts that reject it get
// the single most important type the host accepts (text/plain, then
// text/html, then the rest), and as a last resort a plain-text write.
// Result.Written lists only what remains on the clipboard.
package copyback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/notify"
)

var (
	// ErrWriteFailed means no representation reached the clipboard.
	ErrWriteFailed = errors.New("clipboard write failed")
	// ErrNoEntry means the requested entry index is out of range.
	ErrNoEntry = errors.New("no such clipboard entry")
)

// Result reports what a copy wrote.
type Result struct {
	Written []string `json:"written"`
	// Structured is true when every type went out in one write.
	Structured bool `json:"structured"`
}

// Copier writes snapshots to a clipboard Writer.
type Copier struct {
	w  clip.Writer
	n  notify.Notifier
	tr i18n.Translator
}

// New returns a Copier. A nil Notifier discards notifications and a nil
// Translator uses the default language.
func New(w clip.Writer, n notify.Notifier, tr i18n.Translator) *Copier {
	if n == nil {
		n = notify.Discard
	}
	if tr == nil {
		tr = i18n.New()
	}
	return &Copier{w: w, n: n, tr: tr}
}

type payload struct {
	mime string
	raw  []byte
}

// collect resolves the final bytes of every entry, applying edits by index.
// Entries whose payload ends up empty are skipped.
func collect(snap clipdata.Snapshot, edits map[int]string) []payload {
	var out []payload
	for i, e := range snap.Entries() {
		if v, ok := edits[i]; ok {
			e.Payload = v
		}
		if e.Payload == "" {
			continue
		}
		raw, err := clipdata.DecodePayload(e)
		if err != nil {
			slog.Warn("skipping undecodable entry", "index", i, "type", e.MIME, "err", err)
			continue
		}
		out = append(out, payload{mime: e.MIME, raw: raw})
	}
	return out
}

// CopyBack writes every entry of snap, with edits applied, to the clipboard.
func (c *Copier) CopyBack(ctx context.Context, snap clipdata.Snapshot, edits map[int]string) (Result, error) {
	items := collect(snap, edits)
	if len(items) == 0 {
		c.n.Notify(notify.LevelWarn, c.tr.T(i18n.KeyNothingToCopy))
		return Result{}, fmt.Errorf("%w: nothing to copy", ErrWriteFailed)
	}
	if c.w == nil {
		c.n.Notify(notify.LevelError, c.tr.T(i18n.KeyCopyAllError))
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, clip.ErrUnavailable)
	}

	res, err := c.write(ctx, items)
	if err != nil {
		c.n.Notify(notify.LevelError, c.tr.T(i18n.KeyCopyAllError))
		return res, err
	}
	slog.Info("clipboard written", "snapshot", snap.ID(), "types", res.Written, "structured", res.Structured)
	c.n.Notify(notify.LevelSuccess, c.tr.T(i18n.KeyCopyAllSuccess, len(res.Written)))
	return res, nil
}

func (c *Copier) write(ctx context.Context, items []payload) (Result, error) {
	all := make(map[string][]byte, len(items))
	for _, it := range items {
		all[it.mime] = it.raw
	}
	err := c.w.Write(ctx, all)
	if err == nil {
		return Result{Written: mimes(items), Structured: true}, nil
	}
	slog.Debug("multi-type write rejected, writing a single type", "err", err)

	// Every single-type write replaces the clipboard, so the first one the
	// host accepts is the one that stays.
	for _, it := range byPriority(items) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := c.w.Write(ctx, map[string][]byte{it.mime: it.raw}); err != nil {
			slog.Debug("type rejected by clipboard", "type", it.mime, "err", err)
			continue
		}
		return Result{Written: []string{it.mime}}, nil
	}

	it, ok := plainText(items)
	if !ok {
		return Result{}, fmt.Errorf("%w: every type was rejected", ErrWriteFailed)
	}
	if err := c.w.WriteText(ctx, string(it.raw)); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return Result{Written: []string{clipdata.MIMEText}}, nil
}

// byPriority orders items text/plain first, then text/html, then the rest
// in snapshot order.
func byPriority(items []payload) []payload {
	rank := func(mime string) int {
		switch mime {
		case clipdata.MIMEText:
			return 0
		case clipdata.MIMEHTML:
			return 1
		default:
			return 2
		}
	}
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b payload) int { return rank(a.mime) - rank(b.mime) })
	return out
}

// plainText picks the payload for a text-only write: text/plain when
// present, else the first textual entry.
func plainText(items []payload) (payload, bool) {
	for _, it := range items {
		if it.mime == clipdata.MIMEText {
			return it, true
		}
	}
	for _, it := range items {
		if clipdata.IsTextual(it.mime) {
			return it, true
		}
	}
	return payload{}, false
}

// CopyEntry copies the single entry at index. Textual entries, edited or
// not, go out as plain text; other entries are written under their own type.
func (c *Copier) CopyEntry(ctx context.Context, snap clipdata.Snapshot, index int, edits map[int]string) (Result, error) {
	e, ok := snap.Entry(index)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d", ErrNoEntry, index)
	}
	if v, ok := edits[index]; ok {
		e.Payload = v
	}
	if e.Payload == "" {
		c.n.Notify(notify.LevelWarn, c.tr.T(i18n.KeyNothingToCopy))
		return Result{}, fmt.Errorf("%w: nothing to copy", ErrWriteFailed)
	}
	if c.w == nil {
		c.n.Notify(notify.LevelError, c.tr.T(i18n.KeyCopyError))
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, clip.ErrUnavailable)
	}

	res, err := c.writeOne(ctx, e)
	if err != nil {
		slog.Warn("copy failed", "index", index, "type", e.MIME, "err", err)
		c.n.Notify(notify.LevelError, c.tr.T(i18n.KeyCopyError))
		return Result{}, err
	}
	c.n.Notify(notify.LevelSuccess, c.tr.T(i18n.KeyCopied))
	return res, nil
}

func (c *Copier) writeOne(ctx context.Context, e clipdata.Entry) (Result, error) {
	if clipdata.IsTextual(e.MIME) {
		if err := c.w.WriteText(ctx, e.Payload); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		return Result{Written: []string{clipdata.MIMEText}}, nil
	}
	raw, err := clipdata.DecodePayload(e)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := c.w.Write(ctx, map[string][]byte{e.MIME: raw}); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return Result{Written: []string{e.MIME}, Structured: true}, nil
}

func mimes(items []payload) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.mime
	}
	return out
}
