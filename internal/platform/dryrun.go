package platform

import (
	"context"
	"log/slog"
	"sync"
)

// Call records one invocation made against a DryRun port
type Call struct {
	Method string
	Args   []any
}

// DryRun is a Port that performs no input. It logs every call and keeps a
// copy so callers can inspect what a replay would have done.
type DryRun struct {
	width  int
	height int
	logger *slog.Logger

	mu    sync.Mutex
	calls []Call
}

// NewDryRun creates a DryRun port with a virtual screen of the given size
func NewDryRun(logger *slog.Logger, width, height int) *DryRun {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DryRun{width: width, height: height, logger: logger}
}

func (d *DryRun) record(method string, args ...any) error {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Method: method, Args: args})
	d.mu.Unlock()
	d.logger.Debug("dry-run input", "method", method, "args", args)
	return nil
}

// Calls returns a snapshot of every recorded call
func (d *DryRun) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *DryRun) MoveTo(ctx context.Context, x, y int) error {
	return d.record("move", x, y)
}

func (d *DryRun) Click(ctx context.Context, x, y int, button Button) error {
	return d.record("click", x, y, button)
}

func (d *DryRun) DoubleClick(ctx context.Context, x, y int, button Button) error {
	return d.record("double_click", x, y, button)
}

func (d *DryRun) Drag(ctx context.Context, fromX, fromY, toX, toY int, button Button) error {
	return d.record("drag", fromX, fromY, toX, toY, button)
}

func (d *DryRun) Scroll(ctx context.Context, x, y, deltaX, deltaY int) error {
	return d.record("scroll", x, y, deltaX, deltaY)
}

func (d *DryRun) KeyPress(ctx context.Context, key string, modifiers []string) error {
	return d.record("key_press", key, modifiers)
}

func (d *DryRun) KeyRelease(ctx context.Context, key string, modifiers []string) error {
	return d.record("key_release", key, modifiers)
}

func (d *DryRun) TypeText(ctx context.Context, text string) error {
	return d.record("type_text", text)
}

func (d *DryRun) ScreenSize(ctx context.Context) (int, int, error) {
	return d.width, d.height, nil
}

func (d *DryRun) CheckPermissions(ctx context.Context) error   { return nil }
func (d *DryRun) RequestPermissions(ctx context.Context) error { return nil }
