// Package playback replays a recorded action sequence against a platform
// Port with timing fidelity, while staying controllable from other
// goroutines through lock-free control state.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/v0xg/deskreplay/internal/platform"
	"github.com/v0xg/deskreplay/internal/sequence"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 10.0

	runSlotWait = 100 * time.Millisecond
)

// State is the coarse lifecycle position of the engine
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
)

// Options tunes the execution loop
type Options struct {
	Logger           *slog.Logger
	InterActionDelay time.Duration // Pause after every action; 0 picks a platform default
	DriftTolerance   time.Duration // Lateness beyond this is logged and counted
	PausePoll        time.Duration // Poll interval while paused
	Retry            *RetryPolicy
}

// DefaultOptions returns the options used when fields are left zero
func DefaultOptions() Options {
	return Options{
		InterActionDelay: defaultInterActionDelay(),
		DriftTolerance:   100 * time.Millisecond,
		PausePoll:        10 * time.Millisecond,
		Retry:            DefaultRetryPolicy(),
	}
}

func defaultInterActionDelay() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		return 10 * time.Millisecond
	default:
		return 5 * time.Millisecond
	}
}

// controlState is shared between control callers and the execution
// goroutine. Every field is atomic so Stop and PauseOrResume never wait on
// the execution goroutine.
type controlState struct {
	playing        atomic.Bool
	paused         atomic.Bool
	index          atomic.Int64
	speedBits      atomic.Uint64
	loopsTotal     atomic.Uint32
	loopsRemaining atomic.Uint32
	currentLoop    atomic.Uint32
	startedAt      atomic.Int64 // UnixNano, 0 when idle
	state          atomic.Value // State
	runID          atomic.Value // string
}

func (c *controlState) speed() float64 {
	return math.Float64frombits(c.speedBits.Load())
}

// Engine replays one sequence at a time
type Engine struct {
	port    platform.Port
	opts    Options
	logger  *slog.Logger
	emitter *Emitter

	// slot admits a single execution goroutine per engine
	slot *semaphore.Weighted

	ctl      controlState
	seq      atomic.Pointer[sequence.Sequence]
	cancel   atomic.Pointer[context.CancelFunc]
	lastDone atomic.Pointer[Complete]
}

// New creates an engine driving port
func New(port platform.Port, opts Options) *Engine {
	def := DefaultOptions()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.InterActionDelay == 0 {
		opts.InterActionDelay = def.InterActionDelay
	}
	if opts.InterActionDelay < 0 {
		opts.InterActionDelay = 0
	}
	if opts.DriftTolerance <= 0 {
		opts.DriftTolerance = def.DriftTolerance
	}
	if opts.PausePoll <= 0 {
		opts.PausePoll = def.PausePoll
	}
	if opts.Retry == nil {
		opts.Retry = def.Retry
	}

	e := &Engine{
		port:    port,
		opts:    opts,
		logger:  opts.Logger,
		emitter: NewEmitter(),
		slot:    semaphore.NewWeighted(1),
	}
	e.ctl.state.Store(StateIdle)
	e.ctl.runID.Store("")
	e.ctl.speedBits.Store(math.Float64bits(1.0))
	return e
}

// Subscribe returns a channel of run events and a func to stop receiving them
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	return e.emitter.Subscribe(buffer)
}

// DroppedEvents counts events lost to full subscriber buffers
func (e *Engine) DroppedEvents() int64 {
	return e.emitter.Dropped()
}

// Load replaces the held sequence after validating it
func (e *Engine) Load(seq *sequence.Sequence) error {
	if seq == nil {
		return ErrNoSequence
	}
	if err := seq.Validate(); err != nil {
		return err
	}
	if e.ctl.playing.Load() {
		return fmt.Errorf("load sequence: %w", ErrAlreadyPlaying)
	}
	e.seq.Store(seq)
	e.ctl.index.Store(0)
	e.logger.Info("sequence loaded", "actions", len(seq.Actions), "duration", seq.Duration, "platform", seq.Platform)
	return nil
}

// Start launches playback of the loaded sequence and returns immediately.
// ctx bounds only the permission check; the run itself lives until it
// completes or Stop is called. speed is clamped into [MinSpeed, MaxSpeed]
// and loops below 1 become 1.
func (e *Engine) Start(ctx context.Context, speed float64, loops int) error {
	if e.ctl.playing.Load() {
		return ErrAlreadyPlaying
	}
	seq := e.seq.Load()
	if seq == nil {
		return ErrNoSequence
	}

	if clamped := clampSpeed(speed); clamped != speed {
		e.logger.Info("playback speed clamped", "requested", speed, "speed", clamped)
		speed = clamped
	}
	if loops < 1 {
		e.logger.Info("loop count raised to 1", "requested", loops)
		loops = 1
	}

	if err := e.ensurePermissions(ctx); err != nil {
		return err
	}

	// A finished or stopped run releases its slot right after emitting
	// Complete, so give it a brief moment before reporting it as still in
	// flight. The slot is taken before playing is set so an unwinding run
	// never observes the next run's control state.
	slotCtx, slotCancel := context.WithTimeout(context.Background(), runSlotWait)
	err := e.slot.Acquire(slotCtx, 1)
	slotCancel()
	if err != nil {
		if e.ctl.playing.Load() {
			return ErrAlreadyPlaying
		}
		return ErrRunInFlight
	}
	if !e.ctl.playing.CompareAndSwap(false, true) {
		e.slot.Release(1)
		return ErrAlreadyPlaying
	}

	runID := uuid.New().String()
	e.ctl.paused.Store(false)
	e.ctl.index.Store(0)
	e.ctl.speedBits.Store(math.Float64bits(speed))
	e.ctl.loopsTotal.Store(uint32(loops))
	e.ctl.loopsRemaining.Store(uint32(loops))
	e.ctl.currentLoop.Store(1)
	e.ctl.startedAt.Store(time.Now().UnixNano())
	e.ctl.runID.Store(runID)
	e.ctl.state.Store(StateRunning)

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel.Store(&cancel)

	e.logger.Info("playback started", "run_id", runID, "actions", len(seq.Actions), "speed", speed, "loops", loops)
	e.emitter.Emit(Status{RunID: runID, Status: StatusStarted, Message: fmt.Sprintf("%d actions, speed %.2fx, %d loop(s)", len(seq.Actions), speed, loops)})

	go e.run(runCtx, cancel, runID, seq, speed, loops)
	return nil
}

func (e *Engine) ensurePermissions(ctx context.Context) error {
	err := e.port.CheckPermissions(ctx)
	if err == nil {
		return nil
	}
	e.logger.Warn("input permission missing, requesting it", "error", err)
	if rerr := e.port.RequestPermissions(ctx); rerr != nil {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, rerr)
	}
	if err := e.port.CheckPermissions(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return nil
}

// Stop ends the active run. It only flips shared state; the execution
// goroutine notices at its next control point.
func (e *Engine) Stop() error {
	e.ctl.paused.Store(false)
	if !e.ctl.playing.CompareAndSwap(true, false) {
		return ErrNotPlaying
	}
	if cancel := e.cancel.Load(); cancel != nil {
		(*cancel)()
	}
	e.ctl.index.Store(0)
	e.ctl.startedAt.Store(0)
	e.ctl.state.Store(StateStopped)

	runID := e.runID()
	e.logger.Info("playback stopped", "run_id", runID)
	e.emitter.Emit(Status{RunID: runID, Status: StatusStopped, Message: "playback stopped by request"})
	return nil
}

// PauseOrResume toggles pause and returns the new paused state. The change
// applies at the next action boundary.
func (e *Engine) PauseOrResume() (bool, error) {
	for {
		if !e.ctl.playing.Load() {
			return false, ErrNotPlaying
		}
		old := e.ctl.paused.Load()
		if !e.ctl.paused.CompareAndSwap(old, !old) {
			continue
		}
		paused := !old
		if paused && !e.ctl.playing.Load() {
			// Stop raced us; keep paused implying playing.
			e.ctl.paused.Store(false)
			return false, ErrNotPlaying
		}

		runID := e.runID()
		if paused {
			e.ctl.state.Store(StatePaused)
			e.logger.Info("playback paused", "run_id", runID)
			e.emitter.Emit(Status{RunID: runID, Status: StatusPaused})
		} else {
			e.ctl.state.Store(StateRunning)
			e.logger.Info("playback resumed", "run_id", runID)
			e.emitter.Emit(Status{RunID: runID, Status: StatusResumed})
		}
		return paused, nil
	}
}

// Snapshot is a point-in-time view of the control state
type Snapshot struct {
	State          State   `json:"state"`
	RunID          string  `json:"run_id,omitempty"`
	IsPlaying      bool    `json:"is_playing"`
	IsPaused       bool    `json:"is_paused"`
	CurrentAction  int     `json:"current_action"`
	TotalActions   int     `json:"total_actions"`
	CurrentLoop    int     `json:"current_loop"`
	TotalLoops     int     `json:"total_loops"`
	LoopsRemaining int     `json:"loops_remaining"`
	PlaybackSpeed  float64 `json:"playback_speed"`
	Progress       float64 `json:"progress"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Status reads the control state without modifying it
func (e *Engine) Status() Snapshot {
	playing := e.ctl.playing.Load()
	snap := Snapshot{
		State:         e.ctl.state.Load().(State),
		RunID:         e.runID(),
		IsPlaying:     playing,
		IsPaused:      playing && e.ctl.paused.Load(),
		PlaybackSpeed: e.ctl.speed(),
	}
	if seq := e.seq.Load(); seq != nil {
		snap.TotalActions = len(seq.Actions)
	}
	if !playing {
		return snap
	}

	snap.CurrentAction = int(e.ctl.index.Load())
	snap.CurrentLoop = int(e.ctl.currentLoop.Load())
	snap.TotalLoops = int(e.ctl.loopsTotal.Load())
	snap.LoopsRemaining = int(e.ctl.loopsRemaining.Load())
	snap.Progress = overallProgress(snap.CurrentLoop, snap.CurrentAction, snap.TotalActions, snap.TotalLoops)
	if started := e.ctl.startedAt.Load(); started > 0 {
		snap.ElapsedSeconds = time.Since(time.Unix(0, started)).Seconds()
	}
	return snap
}

// LastResult returns the Complete event of the most recent finished run
func (e *Engine) LastResult() (Complete, bool) {
	c := e.lastDone.Load()
	if c == nil {
		return Complete{}, false
	}
	return *c, true
}

// LastStatistics returns the statistics of the most recent finished run
func (e *Engine) LastStatistics() (Statistics, bool) {
	c, ok := e.LastResult()
	return c.Statistics, ok
}

func (e *Engine) runID() string {
	return e.ctl.runID.Load().(string)
}

func clampSpeed(speed float64) float64 {
	if math.IsNaN(speed) || speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// overallProgress is the fraction of all actions across all loops that
// have been processed.
func overallProgress(loop, done, perLoop, loops int) float64 {
	total := perLoop * loops
	if total <= 0 {
		return 0
	}
	p := float64((loop-1)*perLoop+done) / float64(total)
	return math.Min(math.Max(p, 0), 1)
}
