package dom

// EventKind names a DOM event type.
type EventKind string

const (
	PointerOver EventKind = "mouseover"
	PointerOut  EventKind = "mouseout"
	Click       EventKind = "click"
	KeyDown     EventKind = "keydown"
)

// Key values as reported by KeyboardEvent.key.
const (
	KeyEscape    = "Escape"
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
	KeyTab       = "Tab"
)

// Event is one dispatched event.
type Event struct {
	Kind   EventKind
	Target Element
	// Key is set for KeyDown.
	Key string

	defaultPrevented   bool
	propagationStopped bool
}

// NewEvent builds an event for dispatch.
func NewEvent(kind EventKind, target Element, key string) *Event {
	return &Event{Kind: kind, Target: target, Key: key}
}

func (e *Event) PreventDefault()          { e.defaultPrevented = true }
func (e *Event) StopPropagation()         { e.propagationStopped = true }
func (e *Event) DefaultPrevented() bool   { return e.defaultPrevented }
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// MutationRecord mirrors the DOM record of the same name.
type MutationRecord struct {
	// Type is "childList" or "attributes".
	Type          string
	Target        Element
	Added         []Element
	Removed       []Element
	AttributeName string
}

// Rect is a DOMRect.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// NewRect derives every edge from an origin and a size.
func NewRect(x, y, width, height float64) Rect {
	return Rect{
		X: x, Y: y, Width: width, Height: height,
		Top: y, Right: x + width, Bottom: y + height, Left: x,
	}
}

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
