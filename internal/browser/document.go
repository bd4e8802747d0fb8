package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/pickmode/internal/dom"
)

//go:embed picker.js
var pickerJS string

const bindingName = "__pickmode_emit"

var _ dom.Document = (*Document)(nil)

var crossOriginPattern = regexp.MustCompile(`(?i)cross-?origin|SecurityError|Blocked a frame`)

// ref is how the page script names an element.
type ref struct {
	ID  int    `json:"id"`
	Tag string `json:"tag"`
}

type jsRecord struct {
	Type          string `json:"type"`
	Target        *ref   `json:"target"`
	Added         []ref  `json:"added"`
	Removed       []ref  `json:"removed"`
	AttributeName string `json:"attributeName"`
}

// message is one binding call from the page script.
type message struct {
	Kind     string     `json:"kind"`
	Type     string     `json:"type"`
	Target   *ref       `json:"target"`
	Key      string     `json:"key"`
	Observer int        `json:"observer"`
	Records  []jsRecord `json:"records"`
	// Dropped names nodes that left the document in this batch.
	Dropped []int `json:"dropped"`
}

type listener struct {
	id      int
	capture bool
	fn      dom.Listener
}

// Document is a live page seen through the injected picker script.
// Events and mutation records arrive through a Runtime binding and are
// dispatched in order on one goroutine.
type Document struct {
	page   *rod.Page
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	elems     map[int]*Element
	listeners map[dom.EventKind][]*listener
	observers map[int]func([]dom.MutationRecord)
	nextID    int

	msgs         chan message
	removeScript func() error
}

// NewDocument injects the picker script into page, now and on every
// future navigation, and starts dispatching its messages.
func NewDocument(ctx context.Context, page *rod.Page, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &Document{
		page:      page,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		elems:     make(map[int]*Element),
		listeners: make(map[dom.EventKind][]*listener),
		observers: make(map[int]func([]dom.MutationRecord)),
		msgs:      make(chan message, 1024),
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}
	remove, err := page.EvalOnNewDocument(pickerJS)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("browser: register picker script: %w", err)
	}
	d.removeScript = remove
	if _, err := page.Eval("() => {" + pickerJS + "}"); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: inject picker script: %w", err)
	}

	go d.listenBinding()
	go d.loop()
	logger.Debug("browser: picker script injected")
	return d, nil
}

// listenBinding receives calls from the page script.
func (d *Document) listenBinding() {
	d.page.Context(d.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var m message
		if err := json.Unmarshal([]byte(e.Payload), &m); err != nil {
			d.logger.Warn("browser: parse binding payload", "error", err)
			return
		}
		select {
		case d.msgs <- m:
		case <-d.ctx.Done():
		}
	})()
}

// loop dispatches messages off the CDP event goroutine so listeners may
// call back into the page.
func (d *Document) loop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case m := <-d.msgs:
			switch m.Kind {
			case "event":
				d.dispatch(m)
			case "mutation":
				d.deliver(m)
			}
		}
	}
}

func (d *Document) dispatch(m message) {
	kind := dom.EventKind(m.Type)
	ev := dom.NewEvent(kind, d.handle(m.Target), m.Key)

	d.mu.Lock()
	var capture, bubble []dom.Listener
	for _, l := range d.listeners[kind] {
		if l.capture {
			capture = append(capture, l.fn)
		} else {
			bubble = append(bubble, l.fn)
		}
	}
	d.mu.Unlock()

	// Default actions were already suppressed in the page.
	for _, fn := range capture {
		fn(ev)
	}
	if ev.PropagationStopped() {
		return
	}
	for _, fn := range bubble {
		fn(ev)
	}
}

func (d *Document) deliver(m message) {
	defer d.forget(m.Dropped)

	d.mu.Lock()
	fn := d.observers[m.Observer]
	d.mu.Unlock()
	if fn == nil {
		return
	}

	recs := make([]dom.MutationRecord, 0, len(m.Records))
	for _, r := range m.Records {
		rec := dom.MutationRecord{
			Type:          r.Type,
			Target:        d.handle(r.Target),
			AttributeName: r.AttributeName,
		}
		for i := range r.Added {
			rec.Added = append(rec.Added, d.handle(&r.Added[i]))
		}
		for i := range r.Removed {
			rec.Removed = append(rec.Removed, d.handle(&r.Removed[i]))
		}
		recs = append(recs, rec)
	}
	if len(recs) > 0 {
		fn(recs)
	}
}

// forget releases the handles of nodes that left the document. A node
// inserted again later gets a fresh handle.
func (d *Document) forget(ids []int) {
	if len(ids) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		delete(d.elems, id)
	}
}

// handle returns the unique handle for r, or nil.
func (d *Document) handle(r *ref) dom.Element {
	if r == nil || r.ID == 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elems[r.ID]
	if !ok {
		el = &Element{doc: d, id: r.ID, tag: r.Tag}
		d.elems[r.ID] = el
	}
	return el
}

func (d *Document) eval(op, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := d.page.Context(d.ctx).Eval(js, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	return res, nil
}

// evalJSON runs a script returning JSON.stringify(...) and decodes it.
// A null result leaves out untouched and reports false.
func (d *Document) evalJSON(out any, op, js string, args ...any) (bool, error) {
	res, err := d.eval(op, js, args...)
	if err != nil {
		return false, err
	}
	s := res.Value.Str()
	if s == "" || s == "null" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return false, fmt.Errorf("browser: %s: decode: %w", op, err)
	}
	return true, nil
}

func (d *Document) evalRef(op, js string, args ...any) (dom.Element, error) {
	var r ref
	ok, err := d.evalJSON(&r, op, js, args...)
	if err != nil || !ok {
		return nil, err
	}
	return d.handle(&r), nil
}

func wrap(op string, err error) error {
	msg := err.Error()
	switch {
	case crossOriginPattern.MatchString(msg):
		return fmt.Errorf("browser: %s: %w: %w", op, dom.ErrCrossOrigin, err)
	case strings.Contains(msg, "pickmode: unknown node"):
		return fmt.Errorf("browser: %s: %w: %w", op, dom.ErrInvalidElement, err)
	}
	return fmt.Errorf("browser: %s: %w", op, err)
}

// Body implements dom.Document.
func (d *Document) Body() (dom.Element, error) {
	el, err := d.evalRef("body", `() => JSON.stringify(window.__pickmode.ref(document.body))`)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, errors.New("browser: body: document has no body")
	}
	return el, nil
}

// QuerySelector implements dom.Document.
func (d *Document) QuerySelector(selector string) (dom.Element, error) {
	return d.evalRef("querySelector", `(s) => JSON.stringify(window.__pickmode.ref(document.querySelector(s)))`, selector)
}

// ScrollOffset implements dom.Document.
func (d *Document) ScrollOffset() (dom.Point, error) {
	var p dom.Point
	_, err := d.evalJSON(&p, "scroll", `() => JSON.stringify({x: window.scrollX, y: window.scrollY})`)
	return p, err
}

// AddEventListener implements dom.Document. The page listens for kind
// while at least one subscription exists.
func (d *Document) AddEventListener(kind dom.EventKind, capture bool, fn dom.Listener) (dom.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.listeners[kind]) == 0 {
		if _, err := d.eval("listen "+string(kind), `(t) => window.__pickmode.listen(t)`, string(kind)); err != nil {
			return nil, err
		}
	}
	d.nextID++
	l := &listener{id: d.nextID, capture: capture, fn: fn}
	d.listeners[kind] = append(d.listeners[kind], l)

	return cancelFunc(func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		ls := d.listeners[kind]
		for i, x := range ls {
			if x.id == l.id {
				d.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
		if len(d.listeners[kind]) > 0 {
			return nil
		}
		delete(d.listeners, kind)
		_, err := d.eval("unlisten "+string(kind), `(t) => window.__pickmode.unlisten(t)`, string(kind))
		return err
	}), nil
}

type observeInit struct {
	ChildList       bool     `json:"childList"`
	Subtree         bool     `json:"subtree"`
	Attributes      bool     `json:"attributes"`
	AttributeFilter []string `json:"attributeFilter,omitempty"`
}

// Observe implements dom.Document with a page MutationObserver.
func (d *Document) Observe(root dom.Element, opts dom.ObserveOptions, fn func([]dom.MutationRecord)) (dom.Subscription, error) {
	r, ok := root.(*Element)
	if !ok || r == nil || r.doc != d {
		return nil, fmt.Errorf("browser: observe: %w", dom.ErrInvalidElement)
	}
	res, err := d.eval("observe", `(id, opts) => window.__pickmode.observe(id, opts)`, r.id, observeInit{
		ChildList:       opts.ChildList,
		Subtree:         opts.Subtree,
		Attributes:      opts.Attributes,
		AttributeFilter: opts.AttributeFilter,
	})
	if err != nil {
		return nil, err
	}
	id := res.Value.Int()

	d.mu.Lock()
	d.observers[id] = fn
	d.mu.Unlock()

	return cancelFunc(func() error {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
		_, err := d.eval("disconnect", `(id) => window.__pickmode.disconnect(id)`, id)
		return err
	}), nil
}

// CreateOverlay implements dom.Document.
func (d *Document) CreateOverlay(id string, style map[string]string) (dom.Overlay, error) {
	el, err := d.evalRef("overlay", `(id, style) => JSON.stringify(window.__pickmode.overlay(id, style))`, id, style)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, errors.New("browser: overlay: not created")
	}
	return &Overlay{el: el.(*Element)}, nil
}

// Close stops dispatching and removes the picker script from future
// navigations. Listeners and observers already in the page stay until
// their subscriptions are cancelled or the page goes away.
func (d *Document) Close() {
	d.cancel()
	if d.removeScript != nil {
		if err := d.removeScript(); err != nil {
			d.logger.Debug("browser: remove picker script", "error", err)
		}
	}
}

type cancelFunc func() error

func (f cancelFunc) Cancel() error { return f() }
