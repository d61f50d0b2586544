package playback

import (
	"errors"
	"fmt"

	"github.com/v0xg/deskreplay/internal/sequence"
)

var (
	// ErrAlreadyPlaying rejects a Start while a run is active. Runs are never queued.
	ErrAlreadyPlaying = errors.New("playback already in progress")
	// ErrNotPlaying rejects Stop and PauseOrResume when nothing is running
	ErrNotPlaying = errors.New("no playback in progress")
	// ErrNoSequence rejects Start before a sequence has been loaded
	ErrNoSequence = errors.New("no action sequence loaded")
	// ErrRunInFlight rejects a Start while a stopped run is still unwinding
	// (typically blocked inside a platform call)
	ErrRunInFlight = errors.New("previous playback run is still shutting down")
	// ErrPermissionDenied is returned by Start when input injection is not permitted
	ErrPermissionDenied = errors.New("input automation permission denied")
)

// ActionError wraps an execution failure with the action it happened on
type ActionError struct {
	Index    int
	Type     sequence.ActionType
	X, Y     *int
	Attempts int
	Err      error
}

func (e *ActionError) Error() string {
	where := ""
	if e.X != nil && e.Y != nil {
		where = fmt.Sprintf(" at (%d, %d)", *e.X, *e.Y)
	}
	return fmt.Sprintf("action %d (%s)%s failed after %d attempt(s): %v", e.Index, e.Type, where, e.Attempts, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
