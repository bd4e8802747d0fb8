// Package overlay renders picker feedback: the live highlight node in the
// page and highlight boxes drawn onto captured frames.
package overlay

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/v0xg/pickmode/internal/dom"
)

// Style is the fixed look of the highlight.
type Style struct {
	Color       string
	Opacity     float64
	BorderWidth float64
	ZIndex      int
}

// Geometry is the overlay box in page coordinates.
type Geometry struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Highlight owns the single overlay node.
type Highlight struct {
	doc    dom.Document
	node   dom.Overlay
	style  Style
	logger *slog.Logger

	mu      sync.Mutex
	visible bool
	geom    Geometry
	target  dom.Element
	removed bool
}

// NewHighlight appends the hidden overlay node to the body.
func NewHighlight(doc dom.Document, id string, st Style, logger *slog.Logger) (*Highlight, error) {
	if logger == nil {
		logger = slog.Default()
	}
	node, err := doc.CreateOverlay(id, baseStyle(st))
	if err != nil {
		return nil, fmt.Errorf("overlay: create: %w", err)
	}
	return &Highlight{doc: doc, node: node, style: st, logger: logger}, nil
}

func baseStyle(st Style) map[string]string {
	return map[string]string{
		"position":         "absolute",
		"pointer-events":   "none",
		"border":           px(st.BorderWidth) + " solid " + st.Color,
		"background-color": st.Color,
		"opacity":          strconv.FormatFloat(st.Opacity, 'f', -1, 64),
		"z-index":          strconv.Itoa(st.ZIndex),
		"display":          "none",
		"box-sizing":       "border-box",
	}
}

// Box computes the overlay geometry covering rect at the given scroll
// offset, grown by the border width on every side so the border sits
// outside the element. Width and height grow by 2*borderWidth; a box
// that only shifted left and top by borderWidth while keeping the rect's
// size would, under box-sizing: border-box, paint its border over the
// element's own edges and leave the right and bottom edges uncovered.
func Box(rect dom.Rect, scroll dom.Point, borderWidth float64) Geometry {
	return Geometry{
		Left:   rect.Left + scroll.X - borderWidth,
		Top:    rect.Top + scroll.Y - borderWidth,
		Width:  rect.Width + 2*borderWidth,
		Height: rect.Height + 2*borderWidth,
	}
}

// Show moves the overlay over el. Geometry failures are logged and
// reported as false.
func (h *Highlight) Show(el dom.Element) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed || el == nil {
		return false
	}
	rect, err := el.BoundingRect()
	if err != nil {
		h.logger.Warn("overlay: show failed", "tag", el.TagName(), "error", err)
		return false
	}
	scroll, err := h.doc.ScrollOffset()
	if err != nil {
		h.logger.Warn("overlay: show failed", "error", err)
		return false
	}
	g := Box(rect, scroll, h.style.BorderWidth)
	err = h.node.SetStyle(map[string]string{
		"display": "block",
		"left":    px(g.Left),
		"top":     px(g.Top),
		"width":   px(g.Width),
		"height":  px(g.Height),
	})
	if err != nil {
		h.logger.Warn("overlay: show failed", "error", err)
		return false
	}
	h.visible, h.geom, h.target = true, g, el
	return true
}

// Hide makes the overlay non-visible.
func (h *Highlight) Hide() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return
	}
	if err := h.node.SetStyle(map[string]string{"display": "none"}); err != nil {
		h.logger.Warn("overlay: hide failed", "error", err)
	}
	h.visible, h.target = false, nil
}

// Remove detaches the overlay node. Safe to call twice.
func (h *Highlight) Remove() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removed {
		return nil
	}
	h.removed, h.visible, h.target = true, false, nil
	if err := h.node.Remove(); err != nil {
		return fmt.Errorf("overlay: remove: %w", err)
	}
	return nil
}

// Is reports whether el is the overlay node itself.
func (h *Highlight) Is(el dom.Element) bool {
	return el != nil && el == h.node.Element()
}

// Visible reports whether the overlay is shown.
func (h *Highlight) Visible() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visible
}

// Geometry returns the last shown box and whether the overlay is visible.
func (h *Highlight) Geometry() (Geometry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.geom, h.visible
}

// Target returns the element the overlay currently covers.
func (h *Highlight) Target() dom.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.target
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
