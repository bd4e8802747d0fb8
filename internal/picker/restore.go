package picker

import (
	"fmt"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/persist"
	"github.com/v0xg/pickmode/internal/selector"
	"github.com/v0xg/pickmode/internal/style"
)

// persisted records only need geometry and visibility
var recordExtractor = style.NewExtractor(style.Options{Properties: []string{"display"}})

// Save writes the current selection regardless of PersistSelection.
func (e *Engine) Save() bool {
	ok := false
	e.do(CodeSave, nil, func(*txn) error {
		if err := e.store.SaveErr(e.recordsLocked()); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok
}

// Load restores the stored selection into the engine and returns how
// many stored records resolved to elements.
func (e *Engine) Load() (n int) {
	if e.isDestroyed() {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			e.report(&Error{Code: CodeLoad, Err: fmt.Errorf("picker: panic: %v", r)})
			n = 0
		}
	}()
	return e.restore(CodeLoad)
}

// Records returns the persistable records of the current selection.
func (e *Engine) Records() []persist.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordsLocked()
}

// Store returns the persistence store.
func (e *Engine) Store() *persist.Store { return e.store }

// restore resolves stored selectors and adds the matches to the
// selection. Expired state is cleared. Elements already selected count
// as resolved but are not added twice.
// Storage read failures are reported as CodeLoad.
func (e *Engine) restore(code Code) int {
	has, err := e.store.HasSavedStateErr()
	if err != nil {
		e.report(Normalize(err, CodeLoad, nil))
		return 0
	}
	if !has {
		return 0
	}
	if !e.store.IsValid(e.cfg.PersistMaxAge) {
		e.logger.Info("picker: discarding expired selection", "timestamp", e.store.Timestamp())
		if err := e.store.Clear(); err != nil {
			e.report(Normalize(err, CodeLoad, nil))
		}
		return 0
	}

	stored, err := e.store.LoadErr()
	if err != nil {
		e.report(Normalize(err, CodeLoad, nil))
		return 0
	}

	var els []dom.Element
	for _, rec := range stored {
		if rec.Selector == "" {
			continue
		}
		el, err := selector.Resolve(e.doc, rec.Selector)
		if err != nil {
			e.logger.Warn("picker: stored selector failed", "selector", rec.Selector, "error", err)
			continue
		}
		if el == nil {
			e.logger.Debug("picker: stored selector matched nothing", "selector", rec.Selector)
			continue
		}
		if !contains(els, el) {
			els = append(els, el)
		}
	}
	if len(els) == 0 {
		return 0
	}

	e.do(code, nil, func(t *txn) error {
		return e.transition(t, action{kind: actRestore, els: els})
	})
	e.logger.Info("picker: restored selection", "count", len(els))
	return len(els)
}

// recordsLocked builds records for the selection. Caller holds e.mu.
func (e *Engine) recordsLocked() []persist.Record {
	out := make([]persist.Record, 0, len(e.state.Selected))
	for _, el := range e.state.Selected {
		out = append(out, e.record(el))
	}
	return out
}

// record falls back to identity fields when the element cannot be read.
func (e *Engine) record(el dom.Element) persist.Record {
	snap, err := recordExtractor.Extract(e.doc, el)
	if err != nil {
		e.logger.Warn("picker: snapshot for persistence failed", "tag", el.TagName(), "error", err)
		vis := style.DefaultVisibility()
		return persist.Record{
			Selector:   selector.Synthesize(el),
			ID:         el.ID(),
			TagName:    el.TagName(),
			ClassName:  el.ClassName(),
			Visibility: &vis,
		}
	}
	return persist.RecordFromSnapshot(snap)
}
