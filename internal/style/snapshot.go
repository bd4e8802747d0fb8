// Package style extracts immutable style and geometry snapshots of elements.
package style

import "github.com/v0xg/pickmode/internal/dom"

// Snapshot is a point-in-time capture of an element's style and geometry.
type Snapshot struct {
	Element        dom.Element       `json:"-"`
	TagName        string            `json:"tagName"`
	ID             string            `json:"id,omitempty"`
	ClassName      string            `json:"className,omitempty"`
	Rect           dom.Rect          `json:"rect"`
	ComputedStyles map[string]string `json:"computedStyles"`
	InlineStyles   map[string]string `json:"inlineStyles"`
	BoxModel       *BoxModel         `json:"boxModel,omitempty"`
	Position       *Position         `json:"position,omitempty"`
	Visibility     Visibility        `json:"visibility"`
	ZIndex         *int              `json:"zIndex,omitempty"`
	Selector       string            `json:"selector"`
}

// Sides is a four-sided numeric record in pixels.
type Sides struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxModel holds content size and padding/border/margin widths.
type BoxModel struct {
	Content Size  `json:"content"`
	Padding Sides `json:"padding"`
	Border  Sides `json:"border"`
	Margin  Sides `json:"margin"`
}

// Position describes how the element is positioned.
type Position struct {
	Position  string    `json:"position"`
	Top       string    `json:"top,omitempty"`
	Right     string    `json:"right,omitempty"`
	Bottom    string    `json:"bottom,omitempty"`
	Left      string    `json:"left,omitempty"`
	Transform string    `json:"transform,omitempty"`
	Viewport  dom.Point `json:"viewport"`
	Scroll    dom.Point `json:"scroll"`
}

// Visibility is the part of a snapshot that decides whether the element
// can be seen.
type Visibility struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
	Overflow   string  `json:"overflow"`
	Clip       string  `json:"clip,omitempty"`
}

// DefaultVisibility is used when a stored record carries none.
func DefaultVisibility() Visibility {
	return Visibility{Display: "block", Visibility: "visible", Opacity: 1, Overflow: "visible"}
}
