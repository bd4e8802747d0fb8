package htmldom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/v0xg/pickmode/internal/dom"
)

// Element is a handle to an element node. Handles are unique per node.
type Element struct {
	doc      *Document
	node     *html.Node
	rect     dom.Rect
	computed map[string]string
	fail     error
}

func (e *Element) TagName() string { return strings.ToLower(e.node.Data) }

func (e *Element) ID() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, "id")
}

func (e *Element) ClassName() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, "class")
}

// Attr returns an attribute value.
func (e *Element) Attr(key string) string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, key)
}

func (e *Element) Parent() dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	p := e.doc.element(e.node.Parent)
	if p == nil {
		return nil
	}
	return p
}

func (e *Element) Children() []dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.element(c))
		}
	}
	return out
}

func (e *Element) Connected() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.doc.connected(e.node)
}

func (e *Element) BoundingRect() (dom.Rect, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.fail != nil {
		return dom.Rect{}, e.fail
	}
	if !e.doc.connected(e.node) {
		return dom.Rect{}, dom.ErrDetached
	}
	return e.rect, nil
}

func (e *Element) ComputedStyle(props []string) (map[string]string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	if !e.doc.connected(e.node) {
		return nil, dom.ErrDetached
	}
	inline := parseDeclarations(attr(e.node, "style"))
	out := make(map[string]string, len(props))
	for _, p := range props {
		p = strings.ToLower(p)
		switch {
		case e.computed[p] != "":
			out[p] = e.computed[p]
		case inline[p] != "":
			out[p] = inline[p]
		default:
			out[p] = e.defaultValue(p, inline)
		}
	}
	return out, nil
}

func (e *Element) InlineStyle() (map[string]string, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	return parseDeclarations(attr(e.node, "style")), nil
}

// defaultValue approximates the user-agent computed value. Caller holds
// e.doc.mu.
func (e *Element) defaultValue(prop string, inline map[string]string) string {
	switch prop {
	case "display":
		return defaultDisplay(e.node.Data)
	case "position":
		return "static"
	case "visibility":
		return "visible"
	case "opacity":
		return "1"
	case "overflow":
		return "visible"
	case "z-index", "top", "right", "bottom", "left", "clip":
		return "auto"
	case "transform":
		return "none"
	case "float", "clear":
		return "none"
	case "color":
		return "rgb(0, 0, 0)"
	case "background-color":
		return "rgba(0, 0, 0, 0)"
	case "font-size":
		return "16px"
	case "font-weight":
		return "400"
	case "line-height", "font-style":
		return "normal"
	case "width":
		return pixels(e.rect.Width)
	case "height":
		return pixels(e.rect.Height)
	}
	if strings.HasPrefix(prop, "padding-") || strings.HasPrefix(prop, "margin-") ||
		(strings.HasPrefix(prop, "border-") && strings.HasSuffix(prop, "-width")) {
		return "0px"
	}
	return ""
}

func pixels(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

var inlineTags = map[string]bool{
	"a": true, "span": true, "b": true, "i": true, "em": true, "strong": true,
	"img": true, "code": true, "label": true, "small": true, "abbr": true,
	"input": true, "button": true, "select": true, "textarea": true,
}

func defaultDisplay(tag string) string {
	switch tag {
	case "head", "script", "style", "meta", "link", "title", "template":
		return "none"
	case "li":
		return "list-item"
	case "table":
		return "table"
	case "tr":
		return "table-row"
	case "td", "th":
		return "table-cell"
	}
	if tag == "button" || tag == "input" || tag == "select" || tag == "textarea" {
		return "inline-block"
	}
	if inlineTags[tag] {
		return "inline"
	}
	return "block"
}

// Overlay is the picker's feedback node.
type Overlay struct {
	el *Element
}

func (o *Overlay) Element() dom.Element { return o.el }

func (o *Overlay) SetStyle(style map[string]string) error {
	current := parseDeclarations(o.el.Attr("style"))
	for k, v := range style {
		current[k] = v
	}
	o.el.doc.SetAttribute(o.el, "style", FormatStyle(current))
	return nil
}

func (o *Overlay) Remove() error {
	if !o.el.Connected() {
		return nil
	}
	return o.el.doc.Remove(o.el)
}

// Style returns the overlay's current inline declarations.
func (o *Overlay) Style() map[string]string {
	return parseDeclarations(o.el.Attr("style"))
}
