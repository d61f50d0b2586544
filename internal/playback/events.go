package playback

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the Event variants
type EventKind string

const (
	KindProgress      EventKind = "progress"
	KindActionPreview EventKind = "action_preview"
	KindStatus        EventKind = "status"
	KindComplete      EventKind = "complete"
)

// Event is one notification from a playback run. The concrete type is one of
// Progress, ActionPreview, Status or Complete.
type Event interface {
	Kind() EventKind
	isEvent()
}

// Progress follows every executed (or skipped) action
type Progress struct {
	RunID         string  `json:"run_id"`
	CurrentAction int     `json:"current_action"`
	TotalActions  int     `json:"total_actions"`
	CurrentLoop   int     `json:"current_loop"`
	TotalLoops    int     `json:"total_loops"`
	Progress      float64 `json:"progress"` // 0..1 across all loops
}

// ActionPreview is emitted right before an action is injected
type ActionPreview struct {
	RunID         string `json:"run_id"`
	Index         int    `json:"index"`
	ActionType    string `json:"action_type"`
	ActionSummary string `json:"action_summary"`
}

// Status values carried by Status events
const (
	StatusStarted            = "started"
	StatusPaused             = "paused"
	StatusResumed            = "resumed"
	StatusStopped            = "stopped"
	StatusRetrying           = "retrying"
	StatusSkipped            = "skipped"
	StatusCoordinatesClamped = "coordinates_clamped"
	StatusError              = "error"
)

// Status reports a control transition or a notable in-run condition
type Status struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Complete is the last event of every run
type Complete struct {
	RunID     string `json:"run_id"`
	Completed bool   `json:"completed"`
	Reason    string `json:"reason"`
	Statistics
}

func (Progress) Kind() EventKind      { return KindProgress }
func (ActionPreview) Kind() EventKind { return KindActionPreview }
func (Status) Kind() EventKind        { return KindStatus }
func (Complete) Kind() EventKind      { return KindComplete }

func (Progress) isEvent()      {}
func (ActionPreview) isEvent() {}
func (Status) isEvent()        {}
func (Complete) isEvent()      {}

type envelope struct {
	Type EventKind       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalEvent encodes an event as {"type": kind, "data": payload}
func MarshalEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	return json.Marshal(envelope{Type: ev.Kind(), Data: data})
}

// UnmarshalEvent decodes an envelope produced by MarshalEvent
func UnmarshalEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	var ev Event
	switch env.Type {
	case KindProgress:
		var p Progress
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case KindActionPreview:
		var p ActionPreview
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, err
		}
		ev = p
	case KindStatus:
		var s Status
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, err
		}
		ev = s
	case KindComplete:
		var c Complete
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, err
		}
		ev = c
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	return ev, nil
}
