package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrEmptySequence is returned when a sequence has no actions to replay
var ErrEmptySequence = errors.New("sequence has no actions")

// Resolution is the screen size the sequence was recorded at
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Sequence is an ordered list of recorded actions plus recording metadata.
// It is treated as immutable once handed to the playback engine.
type Sequence struct {
	Version          string      `json:"version"`
	Duration         float64     `json:"duration"` // Seconds
	Platform         string      `json:"platform"`
	ScreenResolution *Resolution `json:"screen_resolution,omitempty"`
	Actions          []Action    `json:"actions"`
}

// ValidationError describes why a sequence was rejected
type ValidationError struct {
	Index  int // Action index, -1 for sequence-level problems
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid sequence: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid action %d: %s %s", e.Index, e.Field, e.Reason)
}

// Load reads and validates a sequence from a JSON file
func Load(path string) (*Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON sequence. Hyphenated action type names
// ("double-click") decode to their canonical form ("double_click").
func Parse(data []byte) (*Sequence, error) {
	var seq Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

// Validate checks the structural shape of the sequence. It does not reject
// actions with missing payload fields: those are skipped during playback.
// Action types are rewritten to their canonical spelling first.
func (s *Sequence) Validate() error {
	if s == nil || len(s.Actions) == 0 {
		return ErrEmptySequence
	}
	for i := range s.Actions {
		s.Actions[i].Type = s.Actions[i].Type.Canonical()
	}
	if s.Duration < 0 {
		return &ValidationError{Index: -1, Field: "duration", Reason: "must not be negative"}
	}
	if r := s.ScreenResolution; r != nil && (r.Width < 0 || r.Height < 0) {
		return &ValidationError{Index: -1, Field: "screen_resolution", Reason: "must not be negative"}
	}
	for i, a := range s.Actions {
		if a.Type == "" {
			return &ValidationError{Index: i, Field: "action_type", Reason: "is required"}
		}
		if !a.Type.Known() {
			return &ValidationError{Index: i, Field: "action_type", Reason: fmt.Sprintf("%q is not a known action", a.Type)}
		}
		if a.Timestamp < 0 {
			return &ValidationError{Index: i, Field: "timestamp", Reason: "must not be negative"}
		}
		if (a.X == nil) != (a.Y == nil) {
			return &ValidationError{Index: i, Field: "x/y", Reason: "must be given together"}
		}
	}
	return nil
}

// FirstTimestamp is the anchor all relative timing is computed from
func (s *Sequence) FirstTimestamp() float64 {
	if len(s.Actions) == 0 {
		return 0
	}
	return s.Actions[0].Timestamp
}

// Span is the time between the first and the last action, in seconds
func (s *Sequence) Span() float64 {
	if len(s.Actions) == 0 {
		return 0
	}
	return s.Actions[len(s.Actions)-1].Timestamp - s.FirstTimestamp()
}

// CountByType tallies actions per type
func (s *Sequence) CountByType() map[ActionType]int {
	counts := make(map[ActionType]int)
	for _, a := range s.Actions {
		counts[a.Type]++
	}
	return counts
}
