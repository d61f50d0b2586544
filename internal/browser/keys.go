package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

var namedKeys = map[string]input.Key{
	"enter":     input.Enter,
	"return":    input.Enter,
	"tab":       input.Tab,
	"space":     input.Space,
	"backspace": input.Backspace,
	"delete":    input.Delete,
	"del":       input.Delete,
	"esc":       input.Escape,
	"escape":    input.Escape,
	"insert":    input.Insert,
	"home":      input.Home,
	"end":       input.End,
	"pageup":    input.PageUp,
	"page_up":   input.PageUp,
	"pagedown":  input.PageDown,
	"page_down": input.PageDown,
	"up":        input.ArrowUp,
	"down":      input.ArrowDown,
	"left":      input.ArrowLeft,
	"right":     input.ArrowRight,
	"capslock":  input.CapsLock,
	"caps_lock": input.CapsLock,
	"shift":     input.ShiftLeft,
	"shift_l":   input.ShiftLeft,
	"shift_r":   input.ShiftRight,
	"ctrl":      input.ControlLeft,
	"control":   input.ControlLeft,
	"ctrl_l":    input.ControlLeft,
	"ctrl_r":    input.ControlRight,
	"alt":       input.AltLeft,
	"option":    input.AltLeft,
	"alt_l":     input.AltLeft,
	"alt_r":     input.AltRight,
	"cmd":       input.MetaLeft,
	"command":   input.MetaLeft,
	"meta":      input.MetaLeft,
	"super":     input.MetaLeft,
	"win":       input.MetaLeft,
	"cmd_r":     input.MetaRight,
	"f1":        input.F1,
	"f2":        input.F2,
	"f3":        input.F3,
	"f4":        input.F4,
	"f5":        input.F5,
	"f6":        input.F6,
	"f7":        input.F7,
	"f8":        input.F8,
	"f9":        input.F9,
	"f10":       input.F10,
	"f11":       input.F11,
	"f12":       input.F12,
}

// lookupKey resolves a recorded key name. Names are case-insensitive and
// may carry a "Key." prefix; a single character maps to itself.
func lookupKey(name string) (input.Key, error) {
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		k := input.Key(r)
		if err := rod.Try(func() { k.Info() }); err != nil {
			return 0, fmt.Errorf("unsupported key %q", name)
		}
		return k, nil
	}
	norm := strings.ToLower(strings.TrimPrefix(name, "Key."))
	norm = strings.ReplaceAll(norm, "-", "_")
	if k, ok := namedKeys[norm]; ok {
		return k, nil
	}
	if k, ok := namedKeys[strings.ReplaceAll(norm, "_", "")]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

func lookupModifiers(names []string) ([]input.Key, error) {
	keys := make([]input.Key, 0, len(names))
	for _, n := range names {
		k, err := lookupKey(n)
		if err != nil {
			return nil, fmt.Errorf("modifier: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
