package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("window busy"), false},
		{"timeout", fmt.Errorf("inject: %w", context.DeadlineExceeded), false},
		{"fatal", Fatal(errors.New("display lost")), true},
		{"permission", Permission(errors.New("accessibility revoked")), true},
		{"unavailable", Unavailable(errors.New("browser closed")), true},
		{"wrapped fatal", fmt.Errorf("action 3: %w", Fatal(errors.New("x"))), true},
		{"unsupported", Unsupported(errors.New("unknown key")), false},
	}
	for _, c := range cases {
		if got := IsFatal(c.err); got != c.want {
			t.Errorf("%s: IsFatal = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestClassifiedUnwrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Permission(cause)
	if !errors.Is(err, cause) {
		t.Error("expected classified error to unwrap to its cause")
	}
	if !errors.Is(err, ErrPermission) {
		t.Error("expected classified error to match ErrPermission")
	}
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) must be nil")
	}
}

func TestParseButton(t *testing.T) {
	for name, want := range map[string]Button{"left": ButtonLeft, "Right": ButtonRight, "button3": ButtonMiddle} {
		got, err := ParseButton(name)
		if err != nil || got != want {
			t.Errorf("ParseButton(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := ParseButton("thumb"); err == nil {
		t.Error("expected unknown button to fail")
	}
}

func TestDryRunRecordsCalls(t *testing.T) {
	d := NewDryRun(nil, 800, 600)
	ctx := context.Background()
	_ = d.Click(ctx, 1, 2, ButtonLeft)
	_ = d.TypeText(ctx, "hi")

	calls := d.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Method != "click" || calls[1].Method != "type_text" {
		t.Errorf("unexpected calls: %+v", calls)
	}
	w, h, err := d.ScreenSize(ctx)
	if err != nil || w != 800 || h != 600 {
		t.Errorf("ScreenSize = %d, %d, %v", w, h, err)
	}
}
