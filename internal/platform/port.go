// Package platform defines the input-injection capability the playback
// engine drives, and the failure vocabulary implementations report with.
package platform

import (
	"context"
	"fmt"
	"strings"
)

// Button is a mouse button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ParseButton maps recorded button names onto Button values
func ParseButton(name string) (Button, error) {
	switch strings.ToLower(name) {
	case "left", "button1", "primary":
		return ButtonLeft, nil
	case "right", "button2", "secondary":
		return ButtonRight, nil
	case "middle", "button3", "wheel":
		return ButtonMiddle, nil
	}
	return "", fmt.Errorf("unknown mouse button %q", name)
}

// Port performs input actions against a live target. Every method is
// synchronous; failures should be wrapped with Fatal or Permission when
// they cannot be recovered mid-run, anything else is retried.
type Port interface {
	MoveTo(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int, button Button) error
	DoubleClick(ctx context.Context, x, y int, button Button) error
	Drag(ctx context.Context, fromX, fromY, toX, toY int, button Button) error
	// Scroll scrolls at (x, y); negative coordinates mean "where the pointer is".
	Scroll(ctx context.Context, x, y, deltaX, deltaY int) error
	KeyPress(ctx context.Context, key string, modifiers []string) error
	KeyRelease(ctx context.Context, key string, modifiers []string) error
	TypeText(ctx context.Context, text string) error
	ScreenSize(ctx context.Context) (width, height int, err error)

	// CheckPermissions returns an error wrapping ErrPermission when the
	// process is not allowed to inject input.
	CheckPermissions(ctx context.Context) error
	// RequestPermissions asks the OS (or user) for input-injection rights.
	RequestPermissions(ctx context.Context) error
}
