package playback

import (
	"context"
	"errors"
	"time"

	"github.com/v0xg/deskreplay/internal/sequence"
)

// run is the execution goroutine of one playback run
func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, runID string, seq *sequence.Sequence, speed float64, loops int) {
	defer e.slot.Release(1)
	defer cancel()

	actions := seq.Actions
	total := len(actions)
	first := seq.FirstTimestamp()
	stats := newStatsAccumulator(total, loops, seq.Duration, speed)
	log := e.logger.With("run_id", runID)

	loopStart := time.Now()
	completed := false
	var fatal error

	// Stop cancels ctx. The shared playing flag may already belong to the
	// next run, so every control point here tests ctx instead.
	for {
		if ctx.Err() != nil {
			break
		}

		idx := int(e.ctl.index.Load())
		if idx >= total {
			stats.loopCompleted()
			remaining := e.ctl.loopsRemaining.Add(^uint32(0))
			if remaining == 0 {
				completed = true
				break
			}
			loop := e.ctl.currentLoop.Add(1)
			e.ctl.index.Store(0)
			loopStart = time.Now()
			log.Debug("loop started", "loop", loop, "loops", loops)
			e.emitter.Emit(Progress{
				RunID:        runID,
				TotalActions: total,
				CurrentLoop:  int(loop),
				TotalLoops:   loops,
				Progress:     overallProgress(int(loop), 0, total, loops),
			})
			continue
		}

		if e.ctl.paused.Load() {
			pausedFor, ok := e.waitWhilePaused(ctx)
			if !ok {
				break
			}
			// Shift the anchor so the remaining actions keep their spacing
			// instead of firing all at once to catch up.
			loopStart = loopStart.Add(pausedFor)
		}

		action := actions[idx]
		target := time.Duration((action.Timestamp - first) / speed * float64(time.Second))
		elapsed := time.Since(loopStart)
		if target > elapsed {
			wait := target - elapsed
			if !sleepCtx(ctx, wait) {
				break
			}
			stats.delayed(wait)
		} else if drift := elapsed - target; drift > 0 {
			stats.drift(drift, e.opts.DriftTolerance)
			if drift > e.opts.DriftTolerance {
				log.Warn("playback behind schedule", "index", idx, "drift_ms", drift.Milliseconds())
			}
		}

		// Last control points before touching the platform. A pause that
		// arrived during the schedule wait is honored at the loop top.
		if ctx.Err() != nil {
			break
		}
		if e.ctl.paused.Load() {
			continue
		}

		e.emitter.Emit(ActionPreview{
			RunID:         runID,
			Index:         idx,
			ActionType:    string(action.Type),
			ActionSummary: action.Summary(),
		})

		res := e.executeWithRetry(ctx, runID, idx, action, speed, stats)
		if ctx.Err() != nil {
			break
		}
		switch {
		case res.err != nil && res.fatal:
			stats.failed(res.err)
			fatal = res.err
		case res.err != nil:
			stats.skippedWithError(res.err)
			log.Warn("action skipped after retries", "index", idx, "error", res.err)
			e.emitter.Emit(Status{RunID: runID, Status: StatusSkipped, Message: res.err.Error()})
		case res.skipReason != "":
			stats.skipped()
			log.Debug("action skipped", "index", idx, "type", action.Type, "reason", res.skipReason)
		default:
			stats.executed(res.duration)
		}
		if fatal != nil {
			log.Error("playback aborted", "index", idx, "error", fatal)
			e.ctl.paused.Store(false)
			e.ctl.playing.Store(false)
			e.emitter.Emit(Status{RunID: runID, Status: StatusError, Message: fatal.Error()})
			break
		}

		e.ctl.index.Store(int64(idx + 1))
		loop := int(e.ctl.currentLoop.Load())
		e.emitter.Emit(Progress{
			RunID:         runID,
			CurrentAction: idx + 1,
			TotalActions:  total,
			CurrentLoop:   loop,
			TotalLoops:    loops,
			Progress:      overallProgress(loop, idx+1, total, loops),
		})

		if d := e.opts.InterActionDelay; d > 0 {
			if !sleepCtx(ctx, d) {
				break
			}
			stats.delayed(d)
		}
	}

	e.finish(ctx, runID, completed, fatal, stats)
}

// waitWhilePaused blocks until resumed or stopped. It reports how long it
// waited and whether playback should continue.
func (e *Engine) waitWhilePaused(ctx context.Context) (time.Duration, bool) {
	began := time.Now()
	ticker := time.NewTicker(e.opts.PausePoll)
	defer ticker.Stop()
	for e.ctl.paused.Load() {
		select {
		case <-ctx.Done():
			return time.Since(began), false
		case <-ticker.C:
		}
	}
	return time.Since(began), ctx.Err() == nil
}

func (e *Engine) finish(ctx context.Context, runID string, completed bool, fatal error, stats *statsAccumulator) {
	final := stats.finalize()
	if completed {
		// A Stop landing after the last action wins: it has already
		// announced the stop to observers.
		if ctx.Err() == nil && e.ctl.playing.CompareAndSwap(true, false) {
			e.ctl.state.Store(StateCompleted)
		} else {
			completed = false
		}
	}
	if !completed {
		e.ctl.state.Store(StateStopped)
	}
	e.ctl.paused.Store(false)
	e.ctl.index.Store(0)
	e.ctl.startedAt.Store(0)

	done := Complete{
		RunID:      runID,
		Completed:  completed,
		Reason:     completionReason(completed, final, fatal),
		Statistics: final,
	}
	e.lastDone.Store(&done)

	e.logger.Info("playback finished",
		"run_id", runID,
		"reason", done.Reason,
		"executed", final.ActionsExecuted,
		"skipped", final.ActionsSkipped,
		"failed", final.ActionsFailed,
		"loops", final.LoopsCompleted,
		"elapsed", final.TotalExecutionTime,
	)
	e.emitter.Emit(done)
}

// isCancellation reports whether err only reflects the run being stopped
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
