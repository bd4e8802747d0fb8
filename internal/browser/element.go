package browser

import (
	"github.com/v0xg/pickmode/internal/dom"
)

// Element is a handle to a page element. Handles are unique per node.
type Element struct {
	doc *Document
	id  int
	tag string
}

func (e *Element) TagName() string { return e.tag }

func (e *Element) ID() string {
	return e.str("id", `(id) => window.__pickmode.node(id).id`)
}

func (e *Element) ClassName() string {
	return e.str("className", `(id) => {
		const n = window.__pickmode.node(id);
		return typeof n.className === 'string' ? n.className : (n.getAttribute('class') || '');
	}`)
}

func (e *Element) str(op, js string) string {
	res, err := e.doc.eval(op, js, e.id)
	if err != nil {
		e.doc.logger.Debug("browser: element read failed", "op", op, "tag", e.tag, "error", err)
		return ""
	}
	return res.Value.Str()
}

func (e *Element) Parent() dom.Element {
	el, err := e.doc.evalRef("parent", `(id) => JSON.stringify(window.__pickmode.ref(window.__pickmode.node(id).parentElement))`, e.id)
	if err != nil {
		return nil
	}
	return el
}

func (e *Element) Children() []dom.Element {
	var refs []ref
	if _, err := e.doc.evalJSON(&refs, "children", `(id) => JSON.stringify(Array.from(window.__pickmode.node(id).children).map(window.__pickmode.ref))`, e.id); err != nil {
		return nil
	}
	out := make([]dom.Element, 0, len(refs))
	for i := range refs {
		out = append(out, e.doc.handle(&refs[i]))
	}
	return out
}

func (e *Element) Connected() bool {
	res, err := e.doc.eval("isConnected", `(id) => window.__pickmode.node(id).isConnected`, e.id)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (e *Element) BoundingRect() (dom.Rect, error) {
	var r dom.Rect
	ok, err := e.doc.evalJSON(&r, "rect", `(id) => JSON.stringify(window.__pickmode.rect(id))`, e.id)
	if err != nil {
		return dom.Rect{}, err
	}
	if !ok {
		return dom.Rect{}, dom.ErrDetached
	}
	return r, nil
}

func (e *Element) ComputedStyle(props []string) (map[string]string, error) {
	out := make(map[string]string, len(props))
	ok, err := e.doc.evalJSON(&out, "computedStyle", `(id, props) => JSON.stringify(window.__pickmode.computed(id, props))`, e.id, props)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dom.ErrDetached
	}
	return out, nil
}

func (e *Element) InlineStyle() (map[string]string, error) {
	out := make(map[string]string)
	if _, err := e.doc.evalJSON(&out, "inlineStyle", `(id) => JSON.stringify(window.__pickmode.inline(id))`, e.id); err != nil {
		return nil, err
	}
	return out, nil
}

// Overlay is the picker's feedback node in the page.
type Overlay struct {
	el *Element
}

func (o *Overlay) Element() dom.Element { return o.el }

func (o *Overlay) SetStyle(style map[string]string) error {
	_, err := o.el.doc.eval("overlay style", `(id, style) => window.__pickmode.setStyle(id, style)`, o.el.id, style)
	return err
}

func (o *Overlay) Remove() error {
	_, err := o.el.doc.eval("overlay remove", `(id) => window.__pickmode.node(id).remove()`, o.el.id)
	return err
}
