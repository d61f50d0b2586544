package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/deskreplay/internal/browser"
	"github.com/v0xg/deskreplay/internal/config"
	"github.com/v0xg/deskreplay/internal/gifgen"
	"github.com/v0xg/deskreplay/internal/platform"
	"github.com/v0xg/deskreplay/internal/playback"
	"github.com/v0xg/deskreplay/internal/sequence"
	"github.com/v0xg/deskreplay/internal/trace"
)

var (
	speed     float64
	loops     int
	dryRun    bool
	tracePath string
	noCursor  bool
	cancelKey bool
	url       string
	width     int
	height    int
	headless  bool
	profile   string
)

var playCmd = &cobra.Command{
	Use:   "play <sequence.json>",
	Short: "Replay a recorded sequence",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	f := playCmd.Flags()
	f.Float64Var(&speed, "speed", 1.0, "Playback speed multiplier (0.1 - 10)")
	f.IntVar(&loops, "loops", 1, "Number of times to replay the sequence")
	f.BoolVar(&dryRun, "dry-run", false, "Log actions instead of injecting them")
	f.StringVar(&tracePath, "trace", "", "Write a GIF of the replay to this file")
	f.BoolVar(&noCursor, "no-cursor", false, "Disable cursor overlay in the trace")
	f.BoolVar(&cancelKey, "cancel-key", runtime.GOOS != "darwin", "Stop when q or Esc is entered on stdin")
	f.StringVar(&url, "url", "", "Page to open before replaying (default: from config)")
	f.IntVar(&width, "width", 0, "Viewport width (default: from config)")
	f.IntVar(&height, "height", 0, "Viewport height (default: from config)")
	f.BoolVar(&headless, "headless", true, "Run the browser without a window")
	f.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	rootCmd.AddCommand(playCmd)
}

// applyPlayFlags lets explicitly set flags win over config values
func applyPlayFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("speed") {
		cfg.Playback.Speed = speed
	}
	if f.Changed("loops") {
		cfg.Playback.Loops = loops
	}
	if f.Changed("url") {
		cfg.Browser.URL = url
	}
	if f.Changed("width") {
		cfg.Browser.Width = width
	}
	if f.Changed("height") {
		cfg.Browser.Height = height
	}
	if f.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if f.Changed("profile") {
		cfg.Browser.ProfileDir = profile
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyPlayFlags(cmd, cfg)
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	seq, err := sequence.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("→ Loaded %s (%d actions, %.1fs recorded on %s)\n", args[0], len(seq.Actions), seq.Duration, orUnknown(seq.Platform))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, capturer, closePort, err := openPort(ctx, cfg, dryRun, logger)
	if err != nil {
		return err
	}
	defer closePort()

	var rec *trace.Recorder
	if tracePath != "" {
		if capturer == nil {
			return errors.New("--trace needs a browser target; drop --dry-run")
		}
		rec = trace.NewRecorder(port, capturer, trace.Options{NoCursor: noCursor, Logger: logger})
		port = rec
	}

	engine := playback.New(port, engineOptions(cfg, logger))
	if err := engine.Load(seq); err != nil {
		return err
	}
	events, unsubscribe := engine.Subscribe(max(cfg.Playback.EventBuffer, 256))
	defer unsubscribe()

	if err := engine.Start(ctx, cfg.Playback.Speed, cfg.Playback.Loops); err != nil {
		if errors.Is(err, playback.ErrPermissionDenied) {
			return fmt.Errorf("%w (grant input permission to this process and retry)", err)
		}
		return err
	}
	snap := engine.Status()
	fmt.Printf("→ Replaying at %.2fx, %d loop(s)", snap.PlaybackSpeed, snap.TotalLoops)
	if cancelKey {
		fmt.Print(" (enter q to stop)")
	}
	fmt.Println()

	done, err := watchRun(ctx, engine, events)
	if err != nil {
		return err
	}
	printSummary(done)

	if rec != nil {
		fmt.Printf("→ Generating GIF (%d frames)... ", rec.Len())
		size, err := rec.WriteGIF(tracePath, gifgen.Options{MaxWidth: 800})
		if err != nil {
			fmt.Println("failed")
			return fmt.Errorf("GIF generation failed: %w", err)
		}
		fmt.Println("done")
		fmt.Printf("✓ Saved trace to %s (%.1f MB)\n", tracePath, float64(size)/(1024*1024))
	}

	if strings.HasPrefix(done.Reason, "error") {
		return fmt.Errorf("playback aborted: %s", done.Reason)
	}
	return nil
}

// watchRun relays events to the console until the run completes. A signal
// or the cancel key stops the engine; the run then completes as stopped.
func watchRun(ctx context.Context, engine *playback.Engine, events <-chan playback.Event) (playback.Complete, error) {
	runCtx, finish := context.WithCancel(ctx)
	defer finish()
	g, gctx := errgroup.WithContext(runCtx)

	var done playback.Complete
	g.Go(func() error {
		defer finish()
		// Fallback for a Complete lost to a full buffer
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return errors.New("event stream closed")
				}
				if c, ok := ev.(playback.Complete); ok {
					done = c
					return nil
				}
				printEvent(ev)
			case <-ticker.C:
				if c, ok := engine.LastResult(); ok && !engine.Status().IsPlaying {
					done = c
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			fmt.Println("\n→ Interrupted, stopping...")
		}
		if err := engine.Stop(); err != nil && !errors.Is(err, playback.ErrNotPlaying) {
			return err
		}
		return nil
	})

	if cancelKey {
		g.Go(func() error {
			return watchCancelKey(gctx, os.Stdin, func() { _ = engine.Stop() })
		})
	}

	err := g.Wait()
	return done, err
}

func printEvent(ev playback.Event) {
	switch e := ev.(type) {
	case playback.ActionPreview:
		logVerbose("  [%d] %s", e.Index+1, e.ActionSummary)
	case playback.Progress:
		if e.CurrentAction == 0 && e.CurrentLoop > 1 {
			fmt.Printf("→ Loop %d/%d\n", e.CurrentLoop, e.TotalLoops)
		}
	case playback.Status:
		switch e.Status {
		case playback.StatusPaused, playback.StatusResumed, playback.StatusStopped:
			fmt.Printf("→ %s\n", e.Status)
		case playback.StatusSkipped, playback.StatusError, playback.StatusCoordinatesClamped:
			fmt.Printf("  ⚠ %s: %s\n", e.Status, e.Message)
		case playback.StatusRetrying:
			logVerbose("  ↻ %s", e.Message)
		}
	}
}

func printSummary(c playback.Complete) {
	mark := "✓"
	if !c.Completed {
		mark = "⚠"
	}
	fmt.Printf("%s Playback %s: %d/%d executed, %d skipped, %d failed in %.2fs (success rate %.0f%%)\n",
		mark, c.Reason, c.ActionsExecuted, c.TotalActions, c.ActionsSkipped, c.ActionsFailed,
		c.TotalExecutionTime, c.SuccessRate*100)
	if c.TimingDriftCount > 0 {
		fmt.Printf("  timing drift beyond tolerance %d time(s), max %.0fms\n", c.TimingDriftCount, c.MaxTimingDrift*1000)
	}
	if c.CoordinatesClamped > 0 {
		fmt.Printf("  %d coordinate(s) clamped to the screen\n", c.CoordinatesClamped)
	}
	for _, e := range c.Errors {
		fmt.Printf("  ✗ %s\n", e)
	}
}

// openPort returns the input target plus a frame capturer when the target
// can provide one.
func openPort(ctx context.Context, cfg *config.Config, dry bool, logger *slog.Logger) (platform.Port, trace.Capturer, func(), error) {
	if dry {
		return platform.NewDryRun(logger, cfg.Browser.Width, cfg.Browser.Height), nil, func() {}, nil
	}

	fmt.Printf("→ Launching browser at %s... ", cfg.Browser.URL)
	b, err := browser.Launch(ctx, browser.Options{
		URL:        cfg.Browser.URL,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		Headless:   cfg.Browser.Headless,
		ProfileDir: cfg.Browser.ProfileDir,
		MoveSteps:  cfg.Browser.MoveSteps,
		Logger:     logger,
	})
	if err != nil {
		fmt.Println("failed")
		return nil, nil, nil, fmt.Errorf("browser launch failed: %w", err)
	}
	fmt.Println("done")
	return b, b, func() { b.Close() }, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown platform"
	}
	return s
}
