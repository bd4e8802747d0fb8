// Package dom defines the document capability the picker works against.
//
// A Document is either a live browser page (package browser) or an
// in-memory tree (package htmldom). Element identity is interface
// equality: a Document hands out exactly one handle per underlying node,
// so two handles for the same node compare equal with ==.
package dom

import "errors"

// ErrDetached is returned by geometry and style reads on an element that
// is no longer attached to its document.
var ErrDetached = errors.New("dom: element is detached")

// ErrCrossOrigin is returned when an element lives in a frame whose
// content the document is not allowed to read.
var ErrCrossOrigin = errors.New("dom: SecurityError: cross-origin frame access denied")

// ErrInvalidElement is returned when an operation receives a nil or
// foreign element handle.
var ErrInvalidElement = errors.New("dom: not an element")

// Element is a handle to one node of type element.
type Element interface {
	// TagName returns the lowercase tag name.
	TagName() string
	ID() string
	// ClassName returns the raw class attribute.
	ClassName() string
	// Parent returns the parent element, or nil at the root or when detached.
	Parent() Element
	Children() []Element
	// Connected reports whether the element is still in the document.
	Connected() bool
	// BoundingRect returns the viewport-relative border box.
	BoundingRect() (Rect, error)
	// ComputedStyle returns the computed value of each requested property.
	// Properties the document does not know are returned as "".
	ComputedStyle(props []string) (map[string]string, error)
	// InlineStyle returns the declarations of the element's style attribute.
	InlineStyle() (map[string]string, error)
}

// Overlay is a document node owned by the picker for visual feedback.
type Overlay interface {
	// Element returns the handle events carry when they target the overlay.
	Element() Element
	SetStyle(style map[string]string) error
	Remove() error
}

// Subscription cancels a listener or an observation.
type Subscription interface {
	Cancel() error
}

// Listener receives events dispatched at the document level.
type Listener func(ev *Event)

// ObserveOptions mirrors MutationObserverInit.
type ObserveOptions struct {
	ChildList       bool
	Subtree         bool
	Attributes      bool
	AttributeFilter []string
}

// Document is the page capability.
type Document interface {
	Body() (Element, error)
	// QuerySelector returns the first match, or nil when nothing matches.
	QuerySelector(selector string) (Element, error)
	// ScrollOffset returns the page scroll position.
	ScrollOffset() (Point, error)
	// AddEventListener registers fn for kind at the document level.
	// capture selects the capture phase.
	AddEventListener(kind EventKind, capture bool, fn Listener) (Subscription, error)
	// Observe reports mutations under root to fn.
	Observe(root Element, opts ObserveOptions, fn func([]MutationRecord)) (Subscription, error)
	// CreateOverlay appends a styled node to the body.
	CreateOverlay(id string, style map[string]string) (Overlay, error)
}
