package acquire

import (
	"errors"

	"go.klb.dev/clipscope/internal/clipdata"
)

var (
	// ErrTimeout means no usable data arrived within the paste window.
	ErrTimeout = errors.New("clipboard acquisition timed out")
	// ErrNoCapability means the host offers no way to read the clipboard.
	ErrNoCapability = errors.New("no clipboard capability available")
	// ErrSuperseded is returned by an acquisition that a newer one replaced.
	ErrSuperseded = errors.New("acquisition superseded")
	// ErrClosed is returned by Acquire after Close.
	ErrClosed = errors.New("acquisition engine closed")
)

// Status is the lifecycle stage of the current acquisition.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// State is the observable acquisition state of one UI surface.
// Snapshot is set iff Status is Succeeded; Error iff Status is Failed.
type State struct {
	Generation uint64             `json:"generation"`
	Status     Status             `json:"status"`
	Snapshot   *clipdata.Snapshot `json:"snapshot,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Loading reports whether an acquisition is in flight.
func (s State) Loading() bool { return s.Status == StatusInProgress }

// FailedError is returned by Acquire when the acquisition ends in the
// Failed state. Message is the translated text shown to the user.
type FailedError struct {
	Reason  error
	Message string
}

func (e *FailedError) Error() string { return e.Message }

func (e *FailedError) Unwrap() error { return e.Reason }
