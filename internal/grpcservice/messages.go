package grpcservice

import (
	"encoding/json"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/copyback"
)

type AcquireRequest struct{}

type AcquireResponse struct {
	State acquire.State `json:"state"`
}

// CopyBackRequest copies the snapshot identified by SnapshotID. When Index
// is set only that entry is copied.
type CopyBackRequest struct {
	SnapshotID string         `json:"snapshotId,omitempty"`
	Edits      map[int]string `json:"edits,omitempty"`
	Index      *int           `json:"index,omitempty"`
}

type CopyBackResponse struct {
	Result copyback.Result `json:"result"`
}

type StateRequest struct{}

type StateResponse struct {
	State        acquire.State `json:"state"`
	Capabilities []string      `json:"capabilities"`
	Viewers      int           `json:"viewers"`
}

type WatchRequest struct {
	// Kinds filters events; empty means all.
	Kinds []string `json:"kinds,omitempty"`
}

// WatchEvent mirrors one hub event.
type WatchEvent struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}
