package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/v0xg/deskreplay/internal/platform"
	"github.com/v0xg/deskreplay/internal/sequence"
)

type actionResult struct {
	duration   time.Duration
	skipReason string
	err        error
	fatal      bool
}

// executeWithRetry performs one action, re-attempting transient failures
func (e *Engine) executeWithRetry(ctx context.Context, runID string, idx int, a sequence.Action, speed float64, stats *statsAccumulator) actionResult {
	var res actionResult
	began := time.Now()

	attempts, err := e.opts.Retry.Execute(ctx, func(attempt int) error {
		skip, err := e.perform(ctx, runID, idx, a, speed, stats, attempt == 1)
		if errors.Is(err, platform.ErrUnsupported) {
			skip, err = err.Error(), nil
		}
		res.skipReason = skip
		return err
	}, func(attempt int, err error) {
		e.logger.Debug("retrying action", "run_id", runID, "index", idx, "attempt", attempt, "error", err)
		e.emitter.Emit(Status{RunID: runID, Status: StatusRetrying, Message: fmt.Sprintf("action %d attempt %d failed: %v", idx, attempt, err)})
	})
	res.duration = time.Since(began)
	if err == nil {
		return res
	}
	if isCancellation(err) {
		res.err = err
		return res
	}

	res.err = &ActionError{Index: idx, Type: a.Type, X: a.X, Y: a.Y, Attempts: attempts, Err: err}
	res.fatal = platform.IsFatal(err)
	return res
}

// perform maps one action onto the port. A non-empty skip reason means the
// action was deliberately not replayed, which is not an error.
func (e *Engine) perform(ctx context.Context, runID string, idx int, a sequence.Action, speed float64, stats *statsAccumulator, report bool) (string, error) {
	if !a.Type.Replayable() {
		return "not replayable", nil
	}

	switch a.Type {
	case sequence.ActionWait:
		d, _ := a.Float("duration")
		if d > 0 {
			sleepCtx(ctx, time.Duration(d/speed*float64(time.Second)))
		}
		return "", ctx.Err()

	case sequence.ActionTypeText:
		if a.Text == "" {
			return "missing text", nil
		}
		return "", e.port.TypeText(ctx, a.Text)

	case sequence.ActionKeyPress:
		if a.Key == "" {
			return "missing key", nil
		}
		return "", e.port.KeyPress(ctx, a.Key, a.Modifiers)

	case sequence.ActionKeyRelease:
		if a.Key == "" {
			return "missing key", nil
		}
		return "", e.port.KeyRelease(ctx, a.Key, a.Modifiers)
	}

	return e.performPointer(ctx, runID, idx, a, stats, report)
}

func (e *Engine) performPointer(ctx context.Context, runID string, idx int, a sequence.Action, stats *statsAccumulator, report bool) (string, error) {
	var button platform.Button
	if a.Type == sequence.ActionClick || a.Type == sequence.ActionDoubleClick || a.Type == sequence.ActionDrag {
		if a.Button == "" {
			if a.Type != sequence.ActionDrag {
				return "missing button", nil
			}
			a.Button = string(platform.ButtonLeft)
		}
		b, err := platform.ParseButton(a.Button)
		if err != nil {
			return err.Error(), nil
		}
		button = b
	}

	var points [][2]int
	switch a.Type {
	case sequence.ActionDrag:
		fx, okFX := a.Int("from_x")
		fy, okFY := a.Int("from_y")
		if !okFX || !okFY {
			if x, y, ok := a.Point(); ok {
				fx, fy, okFX, okFY = x, y, true, true
			}
		}
		tx, okTX := a.Int("to_x")
		ty, okTY := a.Int("to_y")
		if !okFX || !okFY || !okTX || !okTY {
			return "missing drag endpoints", nil
		}
		points = [][2]int{{fx, fy}, {tx, ty}}
	case sequence.ActionScroll:
		x, y, ok := a.Point()
		if !ok {
			// Scroll wherever the pointer currently is.
			dx, _ := a.Int("delta_x")
			dy, _ := a.Int("delta_y")
			return "", e.port.Scroll(ctx, -1, -1, dx, dy)
		}
		points = [][2]int{{x, y}}
	default:
		x, y, ok := a.Point()
		if !ok {
			return "missing coordinates", nil
		}
		points = [][2]int{{x, y}}
	}

	width, height, err := e.port.ScreenSize(ctx)
	if err != nil {
		return "", fmt.Errorf("query screen size: %w", err)
	}
	for i, p := range points {
		cx, cy, changed := clampPoint(p[0], p[1], width, height)
		if !changed {
			continue
		}
		points[i] = [2]int{cx, cy}
		if report {
			stats.clamped()
			msg := fmt.Sprintf("action %d: (%d, %d) clamped to (%d, %d) on %dx%d screen", idx, p[0], p[1], cx, cy, width, height)
			e.logger.Warn("coordinates clamped", "run_id", runID, "index", idx, "x", p[0], "y", p[1], "clamped_x", cx, "clamped_y", cy, "width", width, "height", height)
			e.emitter.Emit(Status{RunID: runID, Status: StatusCoordinatesClamped, Message: msg})
		}
	}

	p := points[0]
	switch a.Type {
	case sequence.ActionMove:
		return "", e.port.MoveTo(ctx, p[0], p[1])
	case sequence.ActionClick:
		return "", e.port.Click(ctx, p[0], p[1], button)
	case sequence.ActionDoubleClick:
		return "", e.port.DoubleClick(ctx, p[0], p[1], button)
	case sequence.ActionDrag:
		return "", e.port.Drag(ctx, p[0], p[1], points[1][0], points[1][1], button)
	case sequence.ActionScroll:
		dx, _ := a.Int("delta_x")
		dy, _ := a.Int("delta_y")
		return "", e.port.Scroll(ctx, p[0], p[1], dx, dy)
	}
	return fmt.Sprintf("unsupported action %q", a.Type), nil
}
