package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.klb.dev/clipscope/internal/hub"
)

// keepAlive is how often an idle event stream gets a comment line.
const keepAlive = 15 * time.Second

var sseSeq atomic.Uint64

// sseViewer is a hub.Viewer backed by one EventSource connection.
type sseViewer struct {
	id string
	ch chan hub.Event
}

func (v *sseViewer) ID() string { return v.id }

func (v *sseViewer) Send(ev hub.Event) {
	select {
	case v.ch <- ev:
	default:
		slog.Warn("event stream full, dropping", "viewer", v.id, "kind", ev.Kind)
	}
}

func (s *Server) events(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if s.cfg.Hub == nil {
		http.Error(w, "events not available", http.StatusNotImplemented)
		return
	}
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Warn("event stream: flush unsupported", "err", err)
		return
	}

	v := &sseViewer{
		id: r.RemoteAddr + "/sse/" + strconv.FormatUint(sseSeq.Add(1), 10),
		ch: make(chan hub.Event, 32),
	}
	s.cfg.Hub.Register(v)
	defer s.cfg.Hub.Unregister(v)

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-v.ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, ev.Data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
