package platform

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrFatal marks failures that cannot be recovered during a run
	ErrFatal = errors.New("fatal platform failure")
	// ErrPermission marks missing input-injection permission
	ErrPermission = errors.New("input permission denied")
	// ErrUnavailable marks a platform API that is gone (browser closed, display lost)
	ErrUnavailable = errors.New("platform unavailable")
	// ErrUnsupported marks an action this platform cannot express, such as
	// a key name with no mapping. The action is skipped, the run goes on.
	ErrUnsupported = errors.New("unsupported by platform")
)

type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.kind, c.err)
}

func (c *classified) Unwrap() []error {
	return []error{c.kind, c.err}
}

// Fatal wraps err so that IsFatal reports true for it
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrFatal, err: err}
}

// Permission wraps err as a permission failure
func Permission(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrPermission, err: err}
}

// Unavailable wraps err as a lost platform
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrUnavailable, err: err}
}

// Unsupported wraps err as an action the platform cannot perform
func Unsupported(err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: ErrUnsupported, err: err}
}

// IsFatal reports whether err must abort a run. Unclassified errors are
// transient, as are timeouts.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrFatal) ||
		errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrUnavailable)
}
