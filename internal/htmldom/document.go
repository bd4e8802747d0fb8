// Package htmldom is an in-memory dom.Document backed by golang.org/x/net/html.
//
// There is no layout engine: geometry and computed style come from the
// element's inline style, a small table of user-agent defaults, and
// values set explicitly with SetRect / SetComputedStyle. Events are
// dispatched synchronously by Dispatch and mutation observers are
// notified synchronously by the mutating methods.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/v0xg/pickmode/internal/dom"
)

// Document is an in-memory page.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	elems  map[*html.Node]*Element
	scroll dom.Point

	nextID     int
	listeners  []*listener
	observers  []*observer
	listenErrs map[dom.EventKind]error
}

type listener struct {
	id      int
	kind    dom.EventKind
	capture bool
	fn      dom.Listener
}

type observer struct {
	id   int
	root *Element
	opts dom.ObserveOptions
	fn   func([]dom.MutationRecord)
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	return &Document{
		root:       root,
		elems:      make(map[*html.Node]*Element),
		listenErrs: make(map[dom.EventKind]error),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// MustParse is ParseString that panics on error. For tests and fixtures.
func MustParse(s string) *Document {
	d, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// element returns the unique handle for n. Caller holds d.mu.
func (d *Document) element(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if el, ok := d.elems[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n, computed: make(map[string]string)}
	d.elems[n] = el
	return el
}

// Body implements dom.Document.
func (d *Document) Body() (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := findTag(d.root, "body")
	if n == nil {
		return nil, fmt.Errorf("htmldom: document has no body")
	}
	return d.element(n), nil
}

// QuerySelector implements dom.Document.
func (d *Document) QuerySelector(selector string) (dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	n := sel.first(d.root)
	if n == nil {
		return nil, nil
	}
	return d.element(n), nil
}

// QuerySelectorAll returns every match in document order.
func (d *Document) QuerySelectorAll(selector string) ([]*Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []*Element
	for _, n := range sel.all(d.root) {
		out = append(out, d.element(n))
	}
	return out, nil
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return d.element(found)
}

// ScrollOffset implements dom.Document.
func (d *Document) ScrollOffset() (dom.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scroll, nil
}

// SetScroll sets the page scroll position.
func (d *Document) SetScroll(x, y float64) {
	d.mu.Lock()
	d.scroll = dom.Point{X: x, Y: y}
	d.mu.Unlock()
}

// FailListen makes the next AddEventListener calls for kind return err.
// A nil err clears the failure.
func (d *Document) FailListen(kind dom.EventKind, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.listenErrs, kind)
		return
	}
	d.listenErrs[kind] = err
}

// AddEventListener implements dom.Document.
func (d *Document) AddEventListener(kind dom.EventKind, capture bool, fn dom.Listener) (dom.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.listenErrs[kind]; err != nil {
		return nil, err
	}
	d.nextID++
	l := &listener{id: d.nextID, kind: kind, capture: capture, fn: fn}
	d.listeners = append(d.listeners, l)
	return cancelFunc(func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, x := range d.listeners {
			if x.id == l.id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				break
			}
		}
		return nil
	}), nil
}

// ListenerCount returns the number of registered document listeners.
func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Dispatch fires an event at target: capture listeners first, then
// bubble listeners unless a capture listener stopped propagation.
func (d *Document) Dispatch(kind dom.EventKind, target dom.Element, key string) *dom.Event {
	ev := dom.NewEvent(kind, target, key)

	d.mu.Lock()
	var capture, bubble []dom.Listener
	for _, l := range d.listeners {
		if l.kind != kind {
			continue
		}
		if l.capture {
			capture = append(capture, l.fn)
		} else {
			bubble = append(bubble, l.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range capture {
		fn(ev)
	}
	if ev.PropagationStopped() {
		return ev
	}
	for _, fn := range bubble {
		fn(ev)
	}
	return ev
}

// Observe implements dom.Document.
func (d *Document) Observe(root dom.Element, opts dom.ObserveOptions, fn func([]dom.MutationRecord)) (dom.Subscription, error) {
	r, ok := root.(*Element)
	if !ok || r == nil || r.doc != d {
		return nil, fmt.Errorf("htmldom: observe: root is not an element of this document")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	o := &observer{id: d.nextID, root: r, opts: opts, fn: fn}
	d.observers = append(d.observers, o)
	return cancelFunc(func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, x := range d.observers {
			if x.id == o.id {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				break
			}
		}
		return nil
	}), nil
}

// observersFor picks observers interested in a mutation at target.
// Caller holds d.mu.
func (d *Document) observersFor(target *html.Node, attrName string) []*observer {
	var out []*observer
	for _, o := range d.observers {
		if attrName == "" && !o.opts.ChildList {
			continue
		}
		if attrName != "" {
			if !o.opts.Attributes {
				continue
			}
			if len(o.opts.AttributeFilter) > 0 && !contains(o.opts.AttributeFilter, attrName) {
				continue
			}
		}
		if target == o.root.node || (o.opts.Subtree && isAncestor(o.root.node, target)) {
			out = append(out, o)
		}
	}
	return out
}

func notify(obs []*observer, rec dom.MutationRecord) {
	for _, o := range obs {
		o.fn([]dom.MutationRecord{rec})
	}
}

// Remove detaches el from its parent and notifies observers.
func (d *Document) Remove(el *Element) error {
	d.mu.Lock()
	parent := el.node.Parent
	if parent == nil {
		d.mu.Unlock()
		return fmt.Errorf("htmldom: remove: %w", dom.ErrDetached)
	}
	obs := d.observersFor(parent, "")
	rec := dom.MutationRecord{Type: "childList", Target: d.element(parent), Removed: []dom.Element{el}}
	parent.RemoveChild(el.node)
	d.mu.Unlock()

	notify(obs, rec)
	return nil
}

// Append creates a child element under parent and notifies observers.
func (d *Document) Append(parent *Element, tag string, attrs map[string]string) (*Element, error) {
	d.mu.Lock()
	if !d.connected(parent.node) {
		d.mu.Unlock()
		return nil, fmt.Errorf("htmldom: append: %w", dom.ErrDetached)
	}
	n := &html.Node{Type: html.ElementNode, Data: strings.ToLower(tag)}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Attr = append(n.Attr, html.Attribute{Key: k, Val: attrs[k]})
	}
	parent.node.AppendChild(n)
	el := d.element(n)
	obs := d.observersFor(parent.node, "")
	rec := dom.MutationRecord{Type: "childList", Target: parent, Added: []dom.Element{el}}
	d.mu.Unlock()

	notify(obs, rec)
	return el, nil
}

// SetAttribute sets or replaces an attribute and notifies observers.
func (d *Document) SetAttribute(el *Element, name, value string) {
	d.mu.Lock()
	setAttr(el.node, name, value)
	var obs []*observer
	if d.connected(el.node) {
		obs = d.observersFor(el.node, name)
	}
	d.mu.Unlock()

	notify(obs, dom.MutationRecord{Type: "attributes", Target: el, AttributeName: name})
}

// SetRect sets the viewport-relative geometry of el.
func (d *Document) SetRect(el *Element, r dom.Rect) {
	d.mu.Lock()
	el.rect = r
	d.mu.Unlock()
}

// SetComputedStyle overrides one computed property of el.
func (d *Document) SetComputedStyle(el *Element, prop, value string) {
	d.mu.Lock()
	el.computed[strings.ToLower(prop)] = value
	d.mu.Unlock()
}

// Fail makes geometry and style reads on el return err until cleared
// with a nil err.
func (d *Document) Fail(el *Element, err error) {
	d.mu.Lock()
	el.fail = err
	d.mu.Unlock()
}

// CreateOverlay implements dom.Document.
func (d *Document) CreateOverlay(id string, style map[string]string) (dom.Overlay, error) {
	body, err := d.Body()
	if err != nil {
		return nil, err
	}
	el, err := d.Append(body.(*Element), "div", map[string]string{
		"id":    id,
		"style": FormatStyle(style),
	})
	if err != nil {
		return nil, err
	}
	return &Overlay{el: el}, nil
}

// HTML renders the document.
func (d *Document) HTML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	_ = html.Render(&buf, d.root)
	return buf.String()
}

// connected reports whether n is reachable from the document root.
// Caller holds d.mu.
func (d *Document) connected(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

type cancelFunc func() error

func (f cancelFunc) Cancel() error { return f() }

func isAncestor(anc, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == anc {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findTag(root *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
