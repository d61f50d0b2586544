package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/deskreplay/internal/platform"
)

func TestLookupKey(t *testing.T) {
	cases := map[string]input.Key{
		"enter":     input.Enter,
		"Key.enter": input.Enter,
		"Page-Down": input.PageDown,
		"pagedown":  input.PageDown,
		"CTRL":      input.ControlLeft,
		"cmd":       input.MetaLeft,
		"a":         input.Key('a'),
		"A":         input.Key('A'),
		"1":         input.Key('1'),
	}
	for name, want := range cases {
		got, err := lookupKey(name)
		if err != nil {
			t.Errorf("lookupKey(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("lookupKey(%q) = %v, want %v", name, got, want)
		}
	}

	if _, err := lookupKey("hyperspace"); err == nil {
		t.Error("expected unknown key name to fail")
	}
}

func TestLookupModifiers(t *testing.T) {
	keys, err := lookupModifiers([]string{"ctrl", "shift"})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != input.ControlLeft || keys[1] != input.ShiftLeft {
		t.Errorf("unexpected modifiers: %v", keys)
	}
	if _, err := lookupModifiers([]string{"ctrl", "nope"}); err == nil {
		t.Error("expected unknown modifier to fail")
	}
}

func TestEasedPath(t *testing.T) {
	from := proto.Point{X: 0, Y: 0}
	to := proto.Point{X: 100, Y: 50}

	if p := easedPath(from, to, 0); len(p) != 1 || p[0] != to {
		t.Errorf("expected a direct jump, got %v", p)
	}

	path := easedPath(from, to, 8)
	if len(path) != 8 {
		t.Fatalf("expected 8 steps, got %d", len(path))
	}
	if path[len(path)-1] != to {
		t.Errorf("path must end on target, got %v", path[len(path)-1])
	}
	for i := 1; i < len(path); i++ {
		if path[i].X < path[i-1].X || path[i].Y < path[i-1].Y {
			t.Errorf("path is not monotonic at %d: %v", i, path)
		}
	}
	// Eased: the first step covers less ground than the middle one.
	if first, mid := path[0].X, path[4].X-path[3].X; first >= mid {
		t.Errorf("expected easing, first=%v mid=%v", first, mid)
	}
}

func TestMouseButton(t *testing.T) {
	if mouseButton(platform.ButtonRight) != proto.InputMouseButtonRight {
		t.Error("right button mismatch")
	}
	if mouseButton(platform.ButtonMiddle) != proto.InputMouseButtonMiddle {
		t.Error("middle button mismatch")
	}
	if mouseButton("") != proto.InputMouseButtonLeft {
		t.Error("default should be left")
	}
}

func TestClassify(t *testing.T) {
	if err := classify("click", io.EOF); !errors.Is(err, platform.ErrUnavailable) {
		t.Errorf("expected EOF to be unavailable, got %v", err)
	}
	closed := fmt.Errorf("write: use of closed network connection")
	if err := classify("click", closed); !platform.IsFatal(err) {
		t.Errorf("expected closed connection to be fatal, got %v", err)
	}
	if err := classify("click", errors.New("node is detached")); platform.IsFatal(err) {
		t.Errorf("expected generic failure to be transient, got %v", err)
	}
	if err := classify("click", context.DeadlineExceeded); err != context.DeadlineExceeded {
		t.Errorf("expected deadline to pass through, got %v", err)
	}
}

func TestUnknownKeyIsUnsupported(t *testing.T) {
	b := &Browser{}
	ctx := context.Background()
	checks := map[string]error{
		"press":          b.KeyPress(ctx, "media_play_pause", nil),
		"release":        b.KeyRelease(ctx, "media_play_pause", nil),
		"press modifier": b.KeyPress(ctx, "a", []string{"hyper"}),
	}
	for name, err := range checks {
		if !errors.Is(err, platform.ErrUnsupported) {
			t.Errorf("%s: expected unsupported, got %v", name, err)
		}
		if platform.IsFatal(err) {
			t.Errorf("%s: unknown key must not abort the run", name)
		}
	}
}

func TestClosedBrowserIsUnavailable(t *testing.T) {
	b := &Browser{closed: true}
	err := b.MoveTo(context.Background(), 1, 1)
	if !errors.Is(err, platform.ErrUnavailable) {
		t.Errorf("expected unavailable after close, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
