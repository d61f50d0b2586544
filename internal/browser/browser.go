// Package browser replays input into a Chromium page driven over the
// DevTools protocol. The page viewport stands in for the screen.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/deskreplay/internal/platform"
)

// Options configures the browser target
type Options struct {
	URL        string
	Width      int
	Height     int
	Headless   bool
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
	Timeout    time.Duration // Page load timeout
	MoveSteps  int           // Intermediate pointer positions per move; <2 jumps directly
	Logger     *slog.Logger
}

// Browser wraps the Rod browser and page and implements platform.Port
type Browser struct {
	browser *rod.Browser
	page    *rod.Page
	opts    Options
	logger  *slog.Logger

	mu     sync.Mutex // serializes input; CDP events must not interleave
	pos    proto.Point
	closed bool
}

var _ platform.Port = (*Browser)(nil)

// Launch starts a browser, opens opts.URL and sizes the viewport
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.URL == "" {
		opts.URL = "about:blank"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, platform.Unavailable(fmt.Errorf("launch browser: %w", err))
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, platform.Unavailable(fmt.Errorf("connect browser: %w", err))
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: opts.URL})
	if err != nil {
		b.Close()
		return nil, platform.Unavailable(fmt.Errorf("open %s: %w", opts.URL, err))
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.Timeout(opts.Timeout).WaitLoad(); err != nil {
		logger.Warn("page load did not settle", "url", opts.URL, "error", err)
	}
	// Don't hang on persistent connections (WebSockets, polling)
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	logger.Info("browser ready", "url", opts.URL, "width", opts.Width, "height", opts.Height, "headless", opts.Headless)

	return &Browser{
		browser: b,
		page:    page,
		opts:    opts,
		logger:  logger,
		pos:     proto.Point{X: float64(opts.Width) / 2, Y: float64(opts.Height) / 2},
	}, nil
}

// Close cleans up browser resources
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.page != nil {
		b.page.Close()
	}
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}

// Page returns the underlying Rod page
func (b *Browser) Page() *rod.Page {
	return b.page
}

// Pointer returns the last position the pointer was moved to
func (b *Browser) Pointer() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.pos.X), int(b.pos.Y)
}

// input runs fn with the page bound to ctx and classifies its error
func (b *Browser) input(ctx context.Context, op string, fn func(p *rod.Page) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return platform.Unavailable(fmt.Errorf("%s: browser closed", op))
	}
	if err := fn(b.page.Context(ctx)); err != nil {
		return classify(op, err)
	}
	return nil
}

// moveLocked walks the pointer to (x, y) along an eased path. Caller holds mu.
func (b *Browser) moveLocked(p *rod.Page, x, y int) error {
	to := proto.Point{X: float64(x), Y: float64(y)}
	for _, step := range easedPath(b.pos, to, b.opts.MoveSteps) {
		if err := p.Mouse.MoveTo(step); err != nil {
			return err
		}
		b.pos = step
	}
	return nil
}

func (b *Browser) MoveTo(ctx context.Context, x, y int) error {
	return b.input(ctx, "move", func(p *rod.Page) error {
		return b.moveLocked(p, x, y)
	})
}

func (b *Browser) Click(ctx context.Context, x, y int, button platform.Button) error {
	return b.input(ctx, "click", func(p *rod.Page) error {
		if err := b.moveLocked(p, x, y); err != nil {
			return err
		}
		return p.Mouse.Click(mouseButton(button), 1)
	})
}

func (b *Browser) DoubleClick(ctx context.Context, x, y int, button platform.Button) error {
	return b.input(ctx, "double click", func(p *rod.Page) error {
		if err := b.moveLocked(p, x, y); err != nil {
			return err
		}
		btn := mouseButton(button)
		if err := p.Mouse.Click(btn, 1); err != nil {
			return err
		}
		return p.Mouse.Click(btn, 2)
	})
}

func (b *Browser) Drag(ctx context.Context, fromX, fromY, toX, toY int, button platform.Button) error {
	return b.input(ctx, "drag", func(p *rod.Page) error {
		if err := b.moveLocked(p, fromX, fromY); err != nil {
			return err
		}
		btn := mouseButton(button)
		if err := p.Mouse.Down(btn, 1); err != nil {
			return err
		}
		// A drag needs intermediate moves for pages to see it as one.
		to := proto.Point{X: float64(toX), Y: float64(toY)}
		for _, step := range easedPath(b.pos, to, max(b.opts.MoveSteps, 10)) {
			if err := p.Mouse.MoveTo(step); err != nil {
				_ = p.Mouse.Up(btn, 1)
				return err
			}
			b.pos = step
		}
		return p.Mouse.Up(btn, 1)
	})
}

func (b *Browser) Scroll(ctx context.Context, x, y, deltaX, deltaY int) error {
	return b.input(ctx, "scroll", func(p *rod.Page) error {
		if x >= 0 && y >= 0 {
			if err := b.moveLocked(p, x, y); err != nil {
				return err
			}
		}
		return p.Mouse.Scroll(float64(deltaX), float64(deltaY), 10)
	})
}

func (b *Browser) KeyPress(ctx context.Context, key string, modifiers []string) error {
	k, err := lookupKey(key)
	if err != nil {
		return platform.Unsupported(err)
	}
	mods, err := lookupModifiers(modifiers)
	if err != nil {
		return platform.Unsupported(err)
	}
	return b.input(ctx, "key press", func(p *rod.Page) error {
		for _, m := range mods {
			if err := p.Keyboard.Press(m); err != nil {
				return err
			}
		}
		return p.Keyboard.Press(k)
	})
}

func (b *Browser) KeyRelease(ctx context.Context, key string, modifiers []string) error {
	k, err := lookupKey(key)
	if err != nil {
		return platform.Unsupported(err)
	}
	mods, err := lookupModifiers(modifiers)
	if err != nil {
		return platform.Unsupported(err)
	}
	return b.input(ctx, "key release", func(p *rod.Page) error {
		if err := p.Keyboard.Release(k); err != nil {
			return err
		}
		for i := len(mods) - 1; i >= 0; i-- {
			if err := p.Keyboard.Release(mods[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Browser) TypeText(ctx context.Context, text string) error {
	return b.input(ctx, "type", func(p *rod.Page) error {
		return p.InsertText(text)
	})
}

// ScreenSize reports the page's inner viewport size
func (b *Browser) ScreenSize(ctx context.Context) (int, int, error) {
	var w, h int
	err := b.input(ctx, "screen size", func(p *rod.Page) error {
		res, err := p.Eval(`() => ({w: window.innerWidth, h: window.innerHeight})`)
		if err != nil {
			return err
		}
		w = res.Value.Get("w").Int()
		h = res.Value.Get("h").Int()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if w <= 0 || h <= 0 {
		return b.opts.Width, b.opts.Height, nil
	}
	return w, h, nil
}

// CheckPermissions needs no OS grant; it only verifies the page still answers.
func (b *Browser) CheckPermissions(ctx context.Context) error {
	return b.input(ctx, "check", func(p *rod.Page) error {
		_, err := p.Eval(`() => document.readyState`)
		return err
	})
}

func (b *Browser) RequestPermissions(ctx context.Context) error {
	return nil
}

// Screenshot captures the current viewport
func (b *Browser) Screenshot(ctx context.Context) (image.Image, error) {
	var data []byte
	err := b.input(ctx, "screenshot", func(p *rod.Page) error {
		var err error
		data, err = p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func mouseButton(b platform.Button) proto.InputMouseButton {
	switch b {
	case platform.ButtonRight:
		return proto.InputMouseButtonRight
	case platform.ButtonMiddle:
		return proto.InputMouseButtonMiddle
	}
	return proto.InputMouseButtonLeft
}

// classify maps CDP transport failures onto the platform vocabulary. A lost
// connection cannot be retried; everything else (timeouts included) can.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if errors.Is(err, io.EOF) || isClosedConn(err) {
		return platform.Unavailable(wrapped)
	}
	return wrapped
}

func isClosedConn(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "target closed") ||
		strings.Contains(msg, "No target with given id")
}
