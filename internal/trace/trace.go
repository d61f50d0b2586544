// Package trace records a replay as an animated GIF. Recorder wraps a
// platform.Port and captures a frame after every input it forwards.
package trace

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/v0xg/deskreplay/internal/gifgen"
	"github.com/v0xg/deskreplay/internal/overlay"
	"github.com/v0xg/deskreplay/internal/platform"
)

// Capturer grabs the current screen contents
type Capturer interface {
	Screenshot(ctx context.Context) (image.Image, error)
}

// Options configures a Recorder
type Options struct {
	MaxFrames int  // Frames beyond this are dropped. 0 means 600.
	NoCursor  bool // Skip the cursor overlay
	Logger    *slog.Logger
}

type capture struct {
	img    image.Image
	cursor overlay.CursorPosition
	at     time.Time
}

// Recorder is a platform.Port that forwards to another Port and records
type Recorder struct {
	platform.Port
	capturer Capturer
	opts     Options
	logger   *slog.Logger

	mu      sync.Mutex
	cursor  overlay.CursorPosition
	frames  []capture
	dropped int
}

var _ platform.Port = (*Recorder)(nil)

// NewRecorder wraps port, capturing frames with c
func NewRecorder(port platform.Port, c Capturer, opts Options) *Recorder {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = 600
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{Port: port, capturer: c, opts: opts, logger: logger}
}

// snap captures a frame showing cur. Capture failures never fail the input.
func (r *Recorder) snap(ctx context.Context, cur overlay.CursorPosition) {
	r.mu.Lock()
	r.cursor = cur
	r.cursor.Click = false
	r.cursor.Trail = nil
	full := len(r.frames) >= r.opts.MaxFrames
	if full {
		r.dropped++
	}
	r.mu.Unlock()
	if full {
		return
	}

	img, err := r.capturer.Screenshot(ctx)
	if err != nil {
		r.logger.Debug("trace capture failed", "error", err)
		return
	}
	r.mu.Lock()
	r.frames = append(r.frames, capture{img: img, cursor: cur, at: time.Now()})
	r.mu.Unlock()
}

func (r *Recorder) current() overlay.CursorPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func at(x, y int, state overlay.CursorState) overlay.CursorPosition {
	return overlay.CursorPosition{X: x, Y: y, State: state, Known: true}
}

func (r *Recorder) MoveTo(ctx context.Context, x, y int) error {
	if err := r.Port.MoveTo(ctx, x, y); err != nil {
		return err
	}
	r.snap(ctx, at(x, y, overlay.CursorDefault))
	return nil
}

func (r *Recorder) Click(ctx context.Context, x, y int, button platform.Button) error {
	if err := r.Port.Click(ctx, x, y, button); err != nil {
		return err
	}
	cur := at(x, y, overlay.CursorDefault)
	cur.Click = true
	r.snap(ctx, cur)
	return nil
}

func (r *Recorder) DoubleClick(ctx context.Context, x, y int, button platform.Button) error {
	if err := r.Port.DoubleClick(ctx, x, y, button); err != nil {
		return err
	}
	cur := at(x, y, overlay.CursorDefault)
	cur.Click = true
	r.snap(ctx, cur)
	return nil
}

func (r *Recorder) Drag(ctx context.Context, fromX, fromY, toX, toY int, button platform.Button) error {
	if err := r.Port.Drag(ctx, fromX, fromY, toX, toY, button); err != nil {
		return err
	}
	cur := at(toX, toY, overlay.CursorPressed)
	cur.Trail = &image.Point{X: fromX, Y: fromY}
	r.snap(ctx, cur)
	return nil
}

func (r *Recorder) Scroll(ctx context.Context, x, y, deltaX, deltaY int) error {
	if err := r.Port.Scroll(ctx, x, y, deltaX, deltaY); err != nil {
		return err
	}
	cur := r.current()
	if x >= 0 && y >= 0 {
		cur = at(x, y, overlay.CursorDefault)
	}
	r.snap(ctx, cur)
	return nil
}

func (r *Recorder) KeyPress(ctx context.Context, key string, modifiers []string) error {
	if err := r.Port.KeyPress(ctx, key, modifiers); err != nil {
		return err
	}
	cur := r.current()
	cur.State = overlay.CursorText
	r.snap(ctx, cur)
	return nil
}

func (r *Recorder) TypeText(ctx context.Context, text string) error {
	if err := r.Port.TypeText(ctx, text); err != nil {
		return err
	}
	cur := r.current()
	cur.State = overlay.CursorText
	r.snap(ctx, cur)
	return nil
}

// Len is the number of captured frames
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Frames renders the captured frames with the cursor drawn on. Each frame
// stays up until the next capture; the last one holds for hold.
func (r *Recorder) Frames(hold time.Duration) []gifgen.Frame {
	r.mu.Lock()
	caps := make([]capture, len(r.frames))
	copy(caps, r.frames)
	r.mu.Unlock()

	out := make([]gifgen.Frame, len(caps))
	for i, c := range caps {
		delay := hold
		if i+1 < len(caps) {
			delay = caps[i+1].at.Sub(c.at)
		}
		img := c.img
		if !r.opts.NoCursor {
			img = overlay.Draw(c.img, c.cursor)
		}
		out[i] = gifgen.Frame{Image: img, Delay: delay}
	}
	return out
}

// WriteGIF encodes everything captured so far into path
func (r *Recorder) WriteGIF(path string, opts gifgen.Options) (int64, error) {
	frames := r.Frames(time.Second)
	size, err := gifgen.WriteFile(path, frames, opts)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	dropped := r.dropped
	r.mu.Unlock()
	r.logger.Info("trace written", "path", path, "frames", len(frames), "dropped", dropped, "bytes", size)
	return size, nil
}
