package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/v0xg/deskreplay/internal/platform"
	"github.com/v0xg/deskreplay/internal/sequence"
)

type portCall struct {
	method string
	args   []int
	text   string
}

// fakePort records calls and fails methods on demand
type fakePort struct {
	mu       sync.Mutex
	width    int
	height   int
	calls    []portCall
	failures map[string][]error // consumed one per call

	permErr    error
	requestErr error
	requested  int
}

func newFakePort() *fakePort {
	return &fakePort{width: 1920, height: 1080, failures: make(map[string][]error)}
}

func (f *fakePort) failNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
}

func (f *fakePort) do(method, text string, args ...int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, portCall{method: method, args: args, text: text})
	if errs := f.failures[method]; len(errs) > 0 {
		f.failures[method] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakePort) snapshot() []portCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]portCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakePort) count(method string) int {
	n := 0
	for _, c := range f.snapshot() {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakePort) MoveTo(ctx context.Context, x, y int) error {
	return f.do("move", "", x, y)
}

func (f *fakePort) Click(ctx context.Context, x, y int, b platform.Button) error {
	return f.do("click", string(b), x, y)
}

func (f *fakePort) DoubleClick(ctx context.Context, x, y int, b platform.Button) error {
	return f.do("double_click", string(b), x, y)
}

func (f *fakePort) Drag(ctx context.Context, fx, fy, tx, ty int, b platform.Button) error {
	return f.do("drag", string(b), fx, fy, tx, ty)
}

func (f *fakePort) Scroll(ctx context.Context, x, y, dx, dy int) error {
	return f.do("scroll", "", x, y, dx, dy)
}

func (f *fakePort) KeyPress(ctx context.Context, key string, mods []string) error {
	return f.do("key_press", key)
}

func (f *fakePort) KeyRelease(ctx context.Context, key string, mods []string) error {
	return f.do("key_release", key)
}

func (f *fakePort) TypeText(ctx context.Context, text string) error {
	return f.do("type_text", text)
}

func (f *fakePort) ScreenSize(ctx context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height, nil
}

func (f *fakePort) CheckPermissions(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permErr
}

func (f *fakePort) RequestPermissions(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested++
	if f.requestErr != nil {
		return f.requestErr
	}
	f.permErr = nil
	return nil
}

func intp(v int) *int { return &v }

func clickAt(ts float64, x, y int) sequence.Action {
	return sequence.Action{Type: sequence.ActionClick, Timestamp: ts, X: intp(x), Y: intp(y), Button: "left"}
}

func moveAt(ts float64, x, y int) sequence.Action {
	return sequence.Action{Type: sequence.ActionMove, Timestamp: ts, X: intp(x), Y: intp(y)}
}

func seqOf(actions ...sequence.Action) *sequence.Sequence {
	last := 0.0
	if len(actions) > 0 {
		last = actions[len(actions)-1].Timestamp
	}
	return &sequence.Sequence{Version: "1.0", Duration: last, Platform: "test", Actions: actions}
}

// testOptions keeps runs fast: no inter-action delay, short retry delay
func testOptions() Options {
	return Options{
		InterActionDelay: -1,
		Retry: &RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: 5 * time.Millisecond,
			Multiplier:   1,
			MaxDelay:     10 * time.Millisecond,
		},
	}
}

func newTestEngine(t *testing.T, port platform.Port, seq *sequence.Sequence) (*Engine, <-chan Event) {
	t.Helper()
	e := New(port, testOptions())
	if seq != nil {
		if err := e.Load(seq); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	events, unsubscribe := e.Subscribe(1024)
	t.Cleanup(func() {
		_ = e.Stop()
		unsubscribe()
	})
	return e, events
}

// collectUntilComplete gathers events up to and including the Complete event
func collectUntilComplete(t *testing.T, events <-chan Event, timeout time.Duration) ([]Event, Complete) {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed before completion")
			}
			got = append(got, ev)
			if c, ok := ev.(Complete); ok {
				return got, c
			}
		case <-deadline:
			t.Fatalf("no completion within %v (got %d events)", timeout, len(got))
		}
	}
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
