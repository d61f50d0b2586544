package sequence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType identifies what kind of input an Action replays
type ActionType string

const (
	ActionMove          ActionType = "move"
	ActionClick         ActionType = "click"
	ActionDoubleClick   ActionType = "double_click"
	ActionDrag          ActionType = "drag"
	ActionScroll        ActionType = "scroll"
	ActionKeyPress      ActionType = "key_press"
	ActionKeyRelease    ActionType = "key_release"
	ActionTypeText      ActionType = "type_text"
	ActionScreenshot    ActionType = "screenshot"
	ActionWait          ActionType = "wait"
	ActionCustom        ActionType = "custom"
	ActionVisionCapture ActionType = "vision_capture"
)

var knownTypes = map[ActionType]bool{
	ActionMove:          true,
	ActionClick:         true,
	ActionDoubleClick:   true,
	ActionDrag:          true,
	ActionScroll:        true,
	ActionKeyPress:      true,
	ActionKeyRelease:    true,
	ActionTypeText:      true,
	ActionScreenshot:    true,
	ActionWait:          true,
	ActionCustom:        true,
	ActionVisionCapture: true,
}

// Canonical folds case and hyphens so "Double-Click" and "double_click"
// name the same type
func (t ActionType) Canonical() ActionType {
	return ActionType(strings.ReplaceAll(strings.ToLower(string(t)), "-", "_"))
}

func (t *ActionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("action_type: %w", err)
	}
	*t = ActionType(s).Canonical()
	return nil
}

// Known reports whether t is part of the action vocabulary
func (t ActionType) Known() bool {
	return knownTypes[t]
}

// Replayable reports whether actions of this type can be injected at all.
// Screenshots, custom hooks and vision captures only make sense while recording.
func (t ActionType) Replayable() bool {
	switch t {
	case ActionScreenshot, ActionCustom, ActionVisionCapture:
		return false
	}
	return t.Known()
}

// HasCoordinates reports whether the action targets a screen position
func (t ActionType) HasCoordinates() bool {
	switch t {
	case ActionMove, ActionClick, ActionDoubleClick, ActionDrag, ActionScroll:
		return true
	}
	return false
}

// Action is a single recorded input event
type Action struct {
	Type           ActionType     `json:"action_type"`
	Timestamp      float64        `json:"timestamp"`                 // Seconds since recording start
	X              *int           `json:"x,omitempty"`               // Screen X (move, click, scroll anchor)
	Y              *int           `json:"y,omitempty"`               // Screen Y
	Button         string         `json:"button,omitempty"`          // left, right, middle
	Key            string         `json:"key,omitempty"`             // Key name for key_press / key_release
	Text           string         `json:"text,omitempty"`            // Text for type_text
	Modifiers      []string       `json:"modifiers,omitempty"`       // Held modifier keys
	AdditionalData map[string]any `json:"additional_data,omitempty"` // from_x/from_y/to_x/to_y, delta_x/delta_y, duration
}

// Point returns the action's coordinates when both are present
func (a Action) Point() (x, y int, ok bool) {
	if a.X == nil || a.Y == nil {
		return 0, 0, false
	}
	return *a.X, *a.Y, true
}

// Int reads an integer from AdditionalData. JSON numbers decode as float64,
// so both float and int values are accepted.
func (a Action) Int(key string) (int, bool) {
	v, ok := a.AdditionalData[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// Float reads a floating point number from AdditionalData
func (a Action) Float(key string) (float64, bool) {
	v, ok := a.AdditionalData[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Summary describes the action in one line for previews and logs
func (a Action) Summary() string {
	x, y, hasPoint := a.Point()
	at := ""
	if hasPoint {
		at = fmt.Sprintf(" at (%d, %d)", x, y)
	}

	switch a.Type {
	case ActionMove:
		return "Move" + at
	case ActionClick:
		return fmt.Sprintf("Click %s%s", buttonName(a.Button), at)
	case ActionDoubleClick:
		return fmt.Sprintf("Double-click %s%s", buttonName(a.Button), at)
	case ActionDrag:
		fx, _ := a.Int("from_x")
		fy, _ := a.Int("from_y")
		tx, _ := a.Int("to_x")
		ty, _ := a.Int("to_y")
		return fmt.Sprintf("Drag (%d, %d) → (%d, %d)", fx, fy, tx, ty)
	case ActionScroll:
		dx, _ := a.Int("delta_x")
		dy, _ := a.Int("delta_y")
		return fmt.Sprintf("Scroll by (%d, %d)%s", dx, dy, at)
	case ActionKeyPress:
		return "Press " + keyChord(a.Key, a.Modifiers)
	case ActionKeyRelease:
		return "Release " + keyChord(a.Key, a.Modifiers)
	case ActionTypeText:
		return fmt.Sprintf("Type %q", a.Text)
	case ActionWait:
		d, _ := a.Float("duration")
		return fmt.Sprintf("Wait %dms", int(d*1000))
	default:
		return string(a.Type)
	}
}

func buttonName(b string) string {
	if b == "" {
		return "(no button)"
	}
	return b
}

func keyChord(key string, modifiers []string) string {
	if len(modifiers) == 0 {
		return key
	}
	return strings.Join(append(append([]string{}, modifiers...), key), "+")
}
