package style

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/selector"
)

// Options controls what Extract captures.
type Options struct {
	IncludeComputed bool
	IncludeInline   bool
	IncludeBoxModel bool
	IncludePosition bool
	// Properties overrides RelevantProperties when non-empty.
	Properties []string
	// FormatValues rounds px/% values and rewrites rgb() colors as hex.
	FormatValues bool
}

// DefaultOptions captures everything with formatting on.
func DefaultOptions() Options {
	return Options{
		IncludeComputed: true,
		IncludeInline:   true,
		IncludeBoxModel: true,
		IncludePosition: true,
		FormatValues:    true,
	}
}

var relevantProperties = []string{
	// layout
	"display", "position", "float", "clear",
	"width", "height", "min-width", "min-height", "max-width", "max-height",
	"top", "right", "bottom", "left",
	"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
	"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
	// border
	"border", "border-width", "border-style", "border-color",
	"border-top", "border-right", "border-bottom", "border-left",
	"border-radius",
	// background
	"background", "background-color", "background-image", "background-size",
	"background-position", "background-repeat",
	// text
	"color", "font-family", "font-size", "font-weight", "font-style",
	"line-height", "text-align", "text-decoration", "text-transform",
	// visibility
	"visibility", "opacity", "z-index", "overflow",
	// transform
	"transform", "transform-origin", "transition", "animation",
}

// RelevantProperties returns the curated default property list.
func RelevantProperties() []string {
	return append([]string(nil), relevantProperties...)
}

// properties read for the structured parts of a snapshot
var structuralProperties = []string{
	"display", "visibility", "opacity", "overflow", "clip", "z-index",
	"position", "top", "right", "bottom", "left", "transform",
	"padding-top", "padding-right", "padding-bottom", "padding-left",
	"border-top-width", "border-right-width", "border-bottom-width", "border-left-width",
	"margin-top", "margin-right", "margin-bottom", "margin-left",
}

// Extractor builds snapshots with fixed options.
type Extractor struct {
	opts Options
}

// NewExtractor returns an Extractor for opts.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

var defaultExtractor = NewExtractor(DefaultOptions())

// Extract snapshots el with DefaultOptions.
func Extract(doc dom.Document, el dom.Element) (*Snapshot, error) {
	return defaultExtractor.Extract(doc, el)
}

// Options returns a copy of the extractor's options.
func (x *Extractor) Options() Options {
	o := x.opts
	o.Properties = append([]string(nil), x.opts.Properties...)
	return o
}

// Extract reads el and returns a new snapshot. doc supplies the scroll
// offset for position info and may be nil.
func (x *Extractor) Extract(doc dom.Document, el dom.Element) (*Snapshot, error) {
	if el == nil {
		return nil, dom.ErrInvalidElement
	}

	rect, err := el.BoundingRect()
	if err != nil {
		return nil, fmt.Errorf("style: bounding rect of <%s>: %w", el.TagName(), err)
	}

	props := x.opts.Properties
	if len(props) == 0 {
		props = relevantProperties
	}
	computed, err := el.ComputedStyle(union(props, structuralProperties))
	if err != nil {
		return nil, fmt.Errorf("style: computed style of <%s>: %w", el.TagName(), err)
	}

	snap := &Snapshot{
		Element:        el,
		TagName:        strings.ToLower(el.TagName()),
		ID:             el.ID(),
		ClassName:      el.ClassName(),
		Rect:           roundRect(rect),
		ComputedStyles: map[string]string{},
		InlineStyles:   map[string]string{},
		Visibility:     visibility(computed),
		ZIndex:         zIndex(computed["z-index"]),
		Selector:       selector.Synthesize(el),
	}

	if x.opts.IncludeComputed {
		for _, p := range props {
			p = strings.ToLower(strings.TrimSpace(p))
			v := strings.TrimSpace(computed[p])
			if v == "" || v == "auto" || v == "normal" {
				continue
			}
			snap.ComputedStyles[p] = x.formatCSS(p, v)
		}
	}

	if x.opts.IncludeInline {
		inline, err := el.InlineStyle()
		if err != nil {
			return nil, fmt.Errorf("style: inline style of <%s>: %w", el.TagName(), err)
		}
		for p, v := range inline {
			if v != "" {
				snap.InlineStyles[p] = x.formatCSS(p, v)
			}
		}
	}

	if x.opts.IncludeBoxModel {
		snap.BoxModel = &BoxModel{
			Content: Size{Width: round2(rect.Width), Height: round2(rect.Height)},
			Padding: sides(computed, "padding-%s"),
			Border:  sides(computed, "border-%s-width"),
			Margin:  sides(computed, "margin-%s"),
		}
	}

	if x.opts.IncludePosition {
		var scroll dom.Point
		if doc != nil {
			scroll, err = doc.ScrollOffset()
			if err != nil {
				return nil, fmt.Errorf("style: scroll offset: %w", err)
			}
		}
		snap.Position = &Position{
			Position:  computed["position"],
			Top:       unless(computed["top"], "auto"),
			Right:     unless(computed["right"], "auto"),
			Bottom:    unless(computed["bottom"], "auto"),
			Left:      unless(computed["left"], "auto"),
			Transform: unless(computed["transform"], "none"),
			Viewport:  dom.Point{X: round2(rect.X), Y: round2(rect.Y)},
			Scroll:    scroll,
		}
	}

	return snap, nil
}

func (x *Extractor) formatCSS(prop, value string) string {
	if !x.opts.FormatValues {
		return value
	}
	return FormatValue(prop, value)
}

func visibility(cs map[string]string) Visibility {
	v := Visibility{
		Display:    cs["display"],
		Visibility: cs["visibility"],
		Opacity:    1,
		Overflow:   cs["overflow"],
		Clip:       unless(cs["clip"], "auto"),
	}
	if f, ok := leadingFloat(cs["opacity"]); ok {
		v.Opacity = f
	}
	return v
}

func zIndex(v string) *int {
	v = strings.TrimSpace(v)
	if v == "" || v == "auto" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f, ok := leadingFloat(v)
		if !ok {
			return nil
		}
		n = int(f)
	}
	return &n
}

func sides(cs map[string]string, pattern string) Sides {
	px := func(side string) float64 {
		f, _ := leadingFloat(cs[fmt.Sprintf(pattern, side)])
		return round2(f)
	}
	return Sides{Top: px("top"), Right: px("right"), Bottom: px("bottom"), Left: px("left")}
}

func roundRect(r dom.Rect) dom.Rect {
	return dom.Rect{
		X: round2(r.X), Y: round2(r.Y),
		Width: round2(r.Width), Height: round2(r.Height),
		Top: round2(r.Top), Right: round2(r.Right),
		Bottom: round2(r.Bottom), Left: round2(r.Left),
	}
}

func unless(v, none string) string {
	if v == none {
		return ""
	}
	return v
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
