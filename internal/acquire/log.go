package acquire

import (
	"context"
	"log/slog"

	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/logging"
)

// logSnapshot logs a delivered snapshot at INFO (id, source, types) and
// DEBUG (text preview, or byte size for everything else).
func logSnapshot(event string, snap clipdata.Snapshot) {
	slog.Info(event, "id", snap.ID(), "source", snap.Source(), "types", snap.Types())

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, e := range snap.Entries() {
		if clipdata.IsTextual(e.MIME) {
			slog.Debug("clipboard entry", "type", e.MIME, "preview", logging.Preview(e.Payload))
			continue
		}
		var size int64
		if e.Size != nil {
			size = *e.Size
		}
		slog.Debug("clipboard entry", "type", e.MIME, "size_bytes", size, "image", e.IsImage, "file", e.IsFile)
	}
}
