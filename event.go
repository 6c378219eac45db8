package mosaic

import (
	"fmt"
	"time"
)

// EventKind enumerates the inputs the UI layer feeds into the engine.
type EventKind int

const (
	// EventLayout marks the view as laid out. The first one moves the
	// engine out of NotReady.
	EventLayout EventKind = iota
	// EventViewportChanged reports a new center and zoom on the current
	// scale, typically on every scroll tick.
	EventViewportChanged
	// EventGestureBegin starts a pinch at a focal point in map pixels of
	// the current scale.
	EventGestureBegin
	// EventGestureChange reports the center and zoom of a running pinch,
	// both relative to the scale the pinch started on.
	EventGestureChange
	EventGestureEnd
	// EventFadeComplete reports that the cross-fade animation finished.
	EventFadeComplete
	// EventScaleSwap requests a programmatic swap by Direction (-1 to the
	// next detailed scale, +1 to the next coarser one) at Zoom.
	EventScaleSwap
)

var eventKindNames = map[EventKind]string{
	EventLayout:          "layout",
	EventViewportChanged: "viewport_changed",
	EventGestureBegin:    "gesture_begin",
	EventGestureChange:   "gesture_change",
	EventGestureEnd:      "gesture_end",
	EventFadeComplete:    "fade_complete",
	EventScaleSwap:       "scale_swap",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, bool) {
	for k, name := range eventKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, ok := ParseEventKind(string(text))
	if !ok {
		return fmt.Errorf("unknown event kind %q", text)
	}
	*k = parsed
	return nil
}

// Event is one input from the UI layer. Only the fields of its Kind are
// read.
type Event struct {
	Kind      EventKind `json:"kind"`
	CenterX   float64   `json:"center_x,omitempty"`
	CenterY   float64   `json:"center_y,omitempty"`
	FocalX    float64   `json:"focal_x,omitempty"`
	FocalY    float64   `json:"focal_y,omitempty"`
	Zoom      float64   `json:"zoom,omitempty"`
	Direction int       `json:"direction,omitempty"`
	// Scale names the scale the center of a viewport change refers to.
	// Changes for a scale other than the current one are dropped; nil
	// means the current scale.
	Scale *int `json:"scale,omitempty"`
}

// OnScale returns ev bound to scale idx.
func (ev Event) OnScale(idx int) Event {
	ev.Scale = &idx
	return ev
}

// SignalKind enumerates the outputs the engine emits to the UI layer.
type SignalKind int

const (
	// SignalBatchReady means rendered tiles wait in the backlog.
	SignalBatchReady SignalKind = iota
	// SignalTransitionStarted hands the cross-fade to the UI.
	SignalTransitionStarted
	SignalTransitionEnded
	// SignalGestureSettled carries the zoom and center on the final scale
	// once a pinch ends.
	SignalGestureSettled
)

func (k SignalKind) String() string {
	switch k {
	case SignalBatchReady:
		return "batch_ready"
	case SignalTransitionStarted:
		return "transition_started"
	case SignalTransitionEnded:
		return "transition_ended"
	case SignalGestureSettled:
		return "gesture_settled"
	default:
		return "unknown"
	}
}

func (k SignalKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Signal is one output of the engine.
type Signal struct {
	Kind      SignalKind    `json:"kind"`
	Batch     string        `json:"batch,omitempty"`
	From      int           `json:"from"`
	To        int           `json:"to"`
	Transform Transform     `json:"transform"`
	Duration  time.Duration `json:"duration,omitempty"`
	Aborted   bool          `json:"aborted,omitempty"`
	Scale     int           `json:"scale"`
	Zoom      float64       `json:"zoom,omitempty"`
	CenterX   float64       `json:"center_x,omitempty"`
	CenterY   float64       `json:"center_y,omitempty"`
}

// SignalHandler receives signals on the goroutine that produced them,
// either the caller of Handle or the render worker. It must not block on
// the engine.
type SignalHandler func(Signal)
