// Package picker is the element selection engine: it turns pointer and
// keyboard events on a document into an ordered, bounded selection of
// elements, renders hover feedback, prunes elements that leave the
// document and persists the selection across reloads.
package picker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/overlay"
	"github.com/v0xg/pickmode/internal/persist"
	"github.com/v0xg/pickmode/internal/style"
	"github.com/v0xg/pickmode/internal/watch"
)

// ErrDestroyed is returned by queries on a destroyed engine.
var ErrDestroyed = errors.New("picker: engine destroyed")

// Hooks receive engine notifications. Each hook runs synchronously before
// the triggering method returns, never while the engine lock is held, so
// hooks may call back into the engine.
type Hooks struct {
	OnSelectionChange     func(selected []dom.Element)
	OnActiveElementChange func(active dom.Element)
	OnSelectionModeChange func(mode Mode)
	OnError               func(err *Error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithHooks sets the notification hooks.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStore sets where the selection is persisted. Defaults to an
// in-memory store.
func WithStore(s *persist.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithExtractor sets the extractor used by ElementInfo.
func WithExtractor(x *style.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithClock replaces time.Now for hover throttling.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the selection state machine. It is safe for concurrent use;
// transitions are applied one at a time.
type Engine struct {
	id        string
	doc       dom.Document
	cfg       Config
	logger    *slog.Logger
	store     *persist.Store
	extractor *style.Extractor
	highlight *overlay.Highlight
	watcher   *watch.Watcher
	limiter   *rate.Limiter
	now       func() time.Time

	hmu   sync.RWMutex
	hooks Hooks

	mu        sync.Mutex
	state     State
	listeners registry
	destroyed bool
}

// New builds an engine on doc: it creates the highlight overlay, starts
// watching the body for mutations and, when persistence is on, restores
// a saved selection. Initialization failures are reported through
// OnError; the returned engine is always usable.
func New(doc dom.Document, cfg Config, opts ...Option) *Engine {
	cfg = cfg.normalize()
	e := &Engine{
		doc:       doc,
		cfg:       cfg,
		logger:    slog.Default(),
		extractor: style.NewExtractor(style.DefaultOptions()),
		now:       time.Now,
		state:     State{Mode: cfg.initialMode()},
	}
	for _, o := range opts {
		o(e)
	}
	e.id = newID()
	e.logger = e.logger.With("engine", e.id)
	if e.store == nil {
		e.store = persist.New(persist.NewMemoryStorage(), persist.WithLogger(e.logger))
	}
	e.limiter = rate.NewLimiter(rate.Every(cfg.HoverThrottle), 1)

	e.init()
	return e
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (e *Engine) init() {
	var errs []error

	hl, err := overlay.NewHighlight(e.doc, e.cfg.OverlayID, overlay.Style{
		Color:       e.cfg.HighlightColor,
		Opacity:     e.cfg.HighlightOpacity,
		BorderWidth: e.cfg.BorderWidth,
		ZIndex:      e.cfg.ZIndex,
	}, e.logger)
	if err != nil {
		errs = append(errs, err)
	} else {
		e.highlight = hl
	}

	e.watcher = watch.New(e.doc, watch.Config{
		Window: e.cfg.MutationDebounce,
		Ignore: e.ignoreMutation,
	}, e.onMutations, e.logger)
	if body, err := e.doc.Body(); err != nil {
		errs = append(errs, fmt.Errorf("picker: body: %w", err))
	} else if err := e.watcher.Start(body); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		e.report(Normalize(errors.Join(errs...), CodeInitialization, nil))
	}
	e.logger.Debug("picker: initialized", "mode", e.state.Mode, "persist", e.cfg.PersistSelection)

	if e.cfg.PersistSelection {
		e.restore(CodeInitialization)
	}
}

// ID identifies the engine in logs.
func (e *Engine) ID() string { return e.id }

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// Highlight returns the overlay, or nil when it could not be created.
func (e *Engine) Highlight() *overlay.Highlight { return e.highlight }

// SetHooks replaces the notification hooks.
func (e *Engine) SetHooks(h Hooks) {
	e.hmu.Lock()
	e.hooks = h
	e.hmu.Unlock()
}

// Enable attaches the pointer and keyboard listeners. No-op when enabled.
func (e *Engine) Enable() {
	e.do(CodeEnable, nil, func(t *txn) error {
		return e.transition(t, action{kind: actEnable})
	})
}

// Disable detaches listeners, hides the overlay and clears the active
// element. The selection is kept.
func (e *Engine) Disable() {
	e.do(CodeDisable, nil, func(t *txn) error {
		return e.transition(t, action{kind: actDisable})
	})
}

// Toggle disables when enabled and enables otherwise.
func (e *Engine) Toggle() {
	if e.Enabled() {
		e.Disable()
		return
	}
	e.Enable()
}

// Select toggles el in the selection, subject to the mode and capacity
// rules. It works whether or not the engine is enabled.
func (e *Engine) Select(el dom.Element) {
	e.do(CodeClick, el, func(t *txn) error {
		return e.transition(t, action{kind: actSelect, el: el})
	})
}

// ClearSelection empties the selection and clears the active element.
func (e *Engine) ClearSelection() {
	e.do(CodeClear, nil, func(t *txn) error {
		return e.transition(t, action{kind: actClear})
	})
}

// SetSelectionMode switches modes. Switching to single keeps only the
// first selected element.
func (e *Engine) SetSelectionMode(m Mode) {
	e.do(CodeMode, nil, func(t *txn) error {
		return e.transition(t, action{kind: actSetMode, mode: m})
	})
}

// SelectedElements returns a copy of the selection, oldest first.
func (e *Engine) SelectedElements() []dom.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]dom.Element(nil), e.state.Selected...)
}

// ActiveElement returns the last hovered element, or nil.
func (e *Engine) ActiveElement() dom.Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Active
}

// Enabled reports whether pick mode is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Enabled
}

// Mode returns the selection mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Mode
}

// State returns a copy of the selection state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// ElementInfo snapshots el. The result is not cached. Failures are
// reported through OnError and returned.
func (e *Engine) ElementInfo(el dom.Element) (snap *style.Snapshot, err error) {
	if e.isDestroyed() {
		return nil, ErrDestroyed
	}
	defer func() {
		if r := recover(); r != nil {
			pe := &Error{Code: CodeInfo, Element: el, Err: fmt.Errorf("picker: panic: %v", r)}
			e.report(pe)
			snap, err = nil, pe
		}
	}()
	if el == nil {
		pe := Normalize(dom.ErrInvalidElement, CodeInvalidElement, nil)
		e.report(pe)
		return nil, pe
	}
	snap, xerr := e.extractor.Extract(e.doc, el)
	if xerr != nil {
		pe := Normalize(xerr, CodeStyleExtract, el)
		e.report(pe)
		return nil, pe
	}
	return snap, nil
}

// FlushMutations processes buffered mutations now instead of waiting for
// the debounce window.
func (e *Engine) FlushMutations() {
	if e.watcher != nil {
		e.watcher.Flush()
	}
}

// Destroy disables the engine, stops the mutation watcher and removes the
// overlay. Later calls do nothing.
func (e *Engine) Destroy() {
	e.do(CodeUnknown, nil, func(t *txn) error {
		var errs []error
		if err := e.transition(t, action{kind: actDisable}); err != nil {
			errs = append(errs, err)
		}
		if e.watcher != nil {
			if err := e.watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if e.highlight != nil {
			if err := e.highlight.Remove(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := e.listeners.detach(); err != nil {
			errs = append(errs, err)
		}
		e.destroyed = true
		e.logger.Debug("picker: destroyed")
		return errors.Join(errs...)
	})
}

func (e *Engine) isDestroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

func (e *Engine) bindings() []binding {
	return []binding{
		{kind: dom.PointerOver, fn: e.onPointerOver},
		{kind: dom.PointerOut, fn: e.onPointerOut},
		{kind: dom.Click, fn: e.onClick},
		{kind: dom.KeyDown, fn: e.onKeyDown},
	}
}

func (e *Engine) isOverlay(el dom.Element) bool {
	return e.highlight != nil && e.highlight.Is(el)
}

func (e *Engine) onPointerOver(ev *dom.Event) {
	if ev.Target == nil || e.isOverlay(ev.Target) {
		return
	}
	if !e.limiter.AllowN(e.now(), 1) {
		return
	}
	e.do(CodeMouseover, ev.Target, func(t *txn) error {
		return e.transition(t, action{kind: actHover, el: ev.Target})
	})
}

// onPointerOut keeps the highlight on the last hovered element until a
// new one is hovered.
func (e *Engine) onPointerOut(*dom.Event) {}

func (e *Engine) onClick(ev *dom.Event) {
	if !e.Enabled() {
		return
	}
	ev.PreventDefault()
	ev.StopPropagation()
	if ev.Target == nil || e.isOverlay(ev.Target) {
		return
	}
	e.do(CodeClick, ev.Target, func(t *txn) error {
		return e.transition(t, action{kind: actClick, el: ev.Target})
	})
}

func (e *Engine) onKeyDown(ev *dom.Event) {
	if !e.Enabled() {
		return
	}
	code := CodeUnknown
	switch ev.Key {
	case dom.KeyEscape:
		code = CodeDisable
	case dom.KeyDelete, dom.KeyBackspace:
		code = CodeClear
	case dom.KeyTab:
		ev.PreventDefault()
		code = CodeMode
	default:
		return
	}
	e.do(code, nil, func(t *txn) error {
		return e.transition(t, action{kind: actKey, key: ev.Key})
	})
}

func (e *Engine) ignoreMutation(r dom.MutationRecord) bool {
	return e.isOverlay(r.Target)
}

// onMutations prunes selected elements that left the document.
func (e *Engine) onMutations(b watch.Batch) {
	e.do(CodeMutation, nil, func(t *txn) error {
		gone := append([]dom.Element(nil), b.Removed...)
		for _, el := range e.state.Selected {
			if !contains(gone, el) && !el.Connected() {
				gone = append(gone, el)
			}
		}
		if a := e.state.Active; a != nil && !contains(gone, a) && !a.Connected() {
			gone = append(gone, a)
		}
		if len(gone) == 0 {
			return nil
		}
		return e.transition(t, action{kind: actPrune, els: gone})
	})
}

// note is a notification waiting to be delivered.
type note struct {
	kind     effectKind
	selected []dom.Element
	active   dom.Element
	mode     Mode
}

// txn collects what one locked operation produced.
type txn struct {
	notes []note
	errs  []*Error
}

// do runs fn under the engine lock, then delivers the notifications and
// errors it produced. A panic in fn is reported with code.
func (e *Engine) do(code Code, el dom.Element, fn func(*txn) error) {
	t := &txn{}
	if err := e.locked(t, fn); err != nil {
		t.errs = append(t.errs, Normalize(err, code, el))
	}
	e.deliver(t)
}

// locked runs fn holding e.mu. A panic in fn rolls the state back to what
// it was before the call and drops the notifications fn queued.
func (e *Engine) locked(t *txn, fn func(*txn) error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		e.logger.Debug("picker: ignoring call on destroyed engine")
		return nil
	}
	saved := e.state.clone()
	defer func() {
		if r := recover(); r != nil {
			e.state = saved
			t.notes = nil
			e.syncListeners()
			err = fmt.Errorf("picker: panic: %v", r)
		}
	}()
	return fn(t)
}

// syncListeners makes the registry agree with state.Enabled after a
// rollback. Caller holds e.mu.
func (e *Engine) syncListeners() {
	switch {
	case !e.state.Enabled && e.listeners.attached():
		if err := e.listeners.detach(); err != nil {
			e.logger.Warn("picker: detach after rollback", "error", err)
		}
	case e.state.Enabled && !e.listeners.attached():
		e.state.Enabled = false
		e.state.Active = nil
	}
}

// transition applies one action. Caller holds e.mu.
func (e *Engine) transition(t *txn, a action) error {
	prev := e.state
	next, effs, err := reduce(e.state, e.cfg.MaxSelectionCount, a)
	if err != nil {
		return err
	}
	e.state = next

	for _, ef := range effs {
		switch ef.kind {
		case effAttach:
			if err := e.listeners.attach(e.doc, e.bindings()); err != nil {
				e.state = prev
				return err
			}
		case effDetach:
			if err := e.listeners.detach(); err != nil {
				t.errs = append(t.errs, Normalize(err, CodeDisable, nil))
			}
		case effShow:
			if e.highlight != nil {
				e.highlight.Show(ef.el)
			}
		case effHide:
			if e.highlight != nil {
				e.highlight.Hide()
			}
		case effPersist:
			if !e.cfg.PersistSelection {
				continue
			}
			if err := e.store.SaveErr(e.recordsLocked()); err != nil {
				t.errs = append(t.errs, Normalize(err, CodeSave, nil))
			}
		case effNotifySelection:
			t.notes = append(t.notes, note{kind: ef.kind, selected: append([]dom.Element{}, e.state.Selected...)})
		case effNotifyActive:
			t.notes = append(t.notes, note{kind: ef.kind, active: e.state.Active})
		case effNotifyMode:
			t.notes = append(t.notes, note{kind: ef.kind, mode: e.state.Mode})
		}
	}
	return nil
}

func (e *Engine) currentHooks() Hooks {
	e.hmu.RLock()
	defer e.hmu.RUnlock()
	return e.hooks
}

func (e *Engine) deliver(t *txn) {
	if len(t.notes) > 0 {
		h := e.currentHooks()
		for _, n := range t.notes {
			e.notify(h, n)
		}
	}
	for _, err := range t.errs {
		e.report(err)
	}
}

func (e *Engine) notify(h Hooks, n note) {
	defer func() {
		if r := recover(); r != nil {
			e.report(&Error{Code: CodeUnknown, Err: fmt.Errorf("picker: hook panic: %v", r)})
		}
	}()
	switch n.kind {
	case effNotifySelection:
		if h.OnSelectionChange != nil {
			h.OnSelectionChange(n.selected)
		}
	case effNotifyActive:
		if h.OnActiveElementChange != nil {
			h.OnActiveElementChange(n.active)
		}
	case effNotifyMode:
		if h.OnSelectionModeChange != nil {
			h.OnSelectionModeChange(n.mode)
		}
	}
}

// report logs err and forwards it to OnError.
func (e *Engine) report(err *Error) {
	if err == nil {
		return
	}
	attrs := []any{"code", err.Code, "error", err.Err}
	if err.Element != nil {
		attrs = append(attrs, "tag", err.Element.TagName())
	}
	e.logger.Error("picker: operation failed", attrs...)

	h := e.currentHooks()
	if h.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("picker: error hook panicked", "panic", r)
		}
	}()
	h.OnError(err)
}
