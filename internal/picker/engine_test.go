package picker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/htmldom"
	"github.com/v0xg/pickmode/internal/overlay"
	"github.com/v0xg/pickmode/internal/persist"
)

const page = `<html><body>
<div id="a" class="box">A</div>
<p class="b">B</p>
<span>C</span>
<section><em>D</em></section>
</body></html>`

type fixture struct {
	doc        *htmldom.Document
	a, b, c, d *htmldom.Element
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := htmldom.MustParse(page)
	f := &fixture{doc: doc, a: doc.ByID("a")}
	for sel, dst := range map[string]**htmldom.Element{"p.b": &f.b, "span": &f.c, "em": &f.d} {
		els, err := doc.QuerySelectorAll(sel)
		if err != nil || len(els) != 1 {
			t.Fatalf("fixture %s: %v %v", sel, els, err)
		}
		*dst = els[0]
	}
	return f
}

type recorder struct {
	mu         sync.Mutex
	selections [][]dom.Element
	actives    []dom.Element
	modes      []Mode
	errs       []*Error
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnSelectionChange: func(sel []dom.Element) {
			r.mu.Lock()
			r.selections = append(r.selections, sel)
			r.mu.Unlock()
		},
		OnActiveElementChange: func(el dom.Element) {
			r.mu.Lock()
			r.actives = append(r.actives, el)
			r.mu.Unlock()
		},
		OnSelectionModeChange: func(m Mode) {
			r.mu.Lock()
			r.modes = append(r.modes, m)
			r.mu.Unlock()
		},
		OnError: func(err *Error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.selections, r.actives, r.modes, r.errs = nil, nil, nil, nil
	r.mu.Unlock()
}

func (r *recorder) selectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.selections)
}

func (r *recorder) codes() []Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Code
	for _, e := range r.errs {
		out = append(out, e.Code)
	}
	return out
}

// ticking advances by more than the hover throttle on every read.
func ticking() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(50 * time.Millisecond)
		return now
	}
}

func newEngine(t *testing.T, doc dom.Document, cfg Config, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithHooks(rec.hooks()), WithClock(ticking())}, opts...)
	e := New(doc, cfg, opts...)
	t.Cleanup(e.Destroy)
	return e, rec
}

func sameElements[T dom.Element](got []dom.Element, want ...T) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != dom.Element(want[i]) {
			return false
		}
	}
	return true
}

func TestSelectCapacityEvictsOldest(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MaxSelectionCount = 2
	e, rec := newEngine(t, f.doc, cfg)

	steps := []struct {
		el   *htmldom.Element
		want []*htmldom.Element
	}{
		{f.a, []*htmldom.Element{f.a}},
		{f.b, []*htmldom.Element{f.a, f.b}},
		{f.c, []*htmldom.Element{f.b, f.c}},
		{f.d, []*htmldom.Element{f.c, f.d}},
	}
	for i, s := range steps {
		e.Select(s.el)
		if got := e.SelectedElements(); !sameElements(got, s.want...) {
			t.Fatalf("step %d: selection = %v, want %v", i, got, s.want)
		}
		if n := rec.selectionCount(); n != i+1 {
			t.Fatalf("step %d: %d notifications", i, n)
		}
		if !sameElements(rec.selections[i], s.want...) {
			t.Errorf("step %d: notified %v", i, rec.selections[i])
		}
	}
}

func TestSelectTogglesOff(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())

	e.Select(f.a)
	e.Select(f.a)
	if got := e.SelectedElements(); len(got) != 0 {
		t.Fatalf("selection = %v, want empty", got)
	}
	if len(rec.selections) != 2 || len(rec.selections[1]) != 0 {
		t.Errorf("notifications = %v", rec.selections)
	}
}

func TestSelectNotificationIsCopy(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())
	e.Select(f.a)
	rec.selections[0][0] = f.b
	if got := e.SelectedElements(); !sameElements(got, f.a) {
		t.Errorf("engine state changed through notification: %v", got)
	}
}

func TestSelectNil(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())
	e.Select(nil)
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeInvalidElement {
		t.Errorf("codes = %v", codes)
	}
	if rec.selectionCount() != 0 {
		t.Error("selection notification on invalid element")
	}
}

func TestSingleModeKeepsFirstSelected(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())

	e.Select(f.a)
	e.Select(f.b)
	e.Select(f.c)
	rec.reset()

	e.SetSelectionMode(ModeSingle)
	if got := e.SelectedElements(); !sameElements(got, f.a) {
		t.Fatalf("selection = %v, want [a]", got)
	}
	if len(rec.modes) != 1 || rec.modes[0] != ModeSingle {
		t.Errorf("mode notifications = %v", rec.modes)
	}
	if len(rec.selections) != 1 {
		t.Errorf("selection notifications = %d", len(rec.selections))
	}

	e.SetSelectionMode(ModeSingle)
	if len(rec.modes) != 1 {
		t.Error("unchanged mode notified")
	}

	e.Select(f.b)
	if got := e.SelectedElements(); !sameElements(got, f.b) {
		t.Errorf("single mode select = %v, want [b]", got)
	}

	e.SetSelectionMode(ModeMultiple)
	e.Select(f.c)
	if got := e.SelectedElements(); !sameElements(got, f.b, f.c) {
		t.Errorf("multiple mode select = %v", got)
	}

	e.SetSelectionMode(Mode("bogus"))
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeMode {
		t.Errorf("codes = %v", codes)
	}
}

func TestInitialModeFromConfig(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.EnableMultiSelect = false
	e, _ := newEngine(t, f.doc, cfg)
	if e.Mode() != ModeSingle {
		t.Errorf("mode = %v", e.Mode())
	}
}

func TestHoverClickScenario(t *testing.T) {
	f := newFixture(t)
	f.doc.SetRect(f.a, dom.NewRect(10, 20, 100, 40))
	cfg := DefaultConfig()
	cfg.MaxSelectionCount = 2
	e, rec := newEngine(t, f.doc, cfg)

	e.Enable()
	if !e.Enabled() || len(rec.modes) != 1 {
		t.Fatalf("enable: enabled=%v modes=%v", e.Enabled(), rec.modes)
	}

	f.doc.Dispatch(dom.PointerOver, f.a, "")
	if e.ActiveElement() != dom.Element(f.a) {
		t.Fatal("hover did not set the active element")
	}
	g, visible := e.Highlight().Geometry()
	if want := (overlay.Geometry{Left: 8, Top: 18, Width: 104, Height: 44}); !visible || g != want {
		t.Errorf("overlay = %+v visible=%v, want %+v", g, visible, want)
	}
	if len(rec.actives) != 1 || rec.actives[0] != dom.Element(f.a) {
		t.Errorf("active notifications = %v", rec.actives)
	}

	ev := f.doc.Dispatch(dom.Click, f.a, "")
	if !ev.DefaultPrevented() || !ev.PropagationStopped() {
		t.Error("click not suppressed")
	}
	if got := e.SelectedElements(); !sameElements(got, f.a) {
		t.Fatalf("after click = %v", got)
	}
	if last := rec.selections[len(rec.selections)-1]; !sameElements(last, f.a) {
		t.Errorf("notified %v", last)
	}

	f.doc.Dispatch(dom.Click, f.a, "")
	if got := e.SelectedElements(); len(got) != 0 {
		t.Fatalf("second click = %v", got)
	}

	f.doc.Dispatch(dom.Click, f.b, "")
	f.doc.Dispatch(dom.Click, f.c, "")
	if got := e.SelectedElements(); !sameElements(got, f.b, f.c) {
		t.Errorf("selection = %v, want [b c]", got)
	}

	f.doc.Dispatch(dom.PointerOut, f.a, "")
	if e.ActiveElement() != dom.Element(f.a) || !e.Highlight().Visible() {
		t.Error("pointerout changed the highlight")
	}

	e.Disable()
	if ev := f.doc.Dispatch(dom.Click, f.d, ""); ev.DefaultPrevented() {
		t.Error("click suppressed while disabled")
	}
}

func TestOverlayIsTransparent(t *testing.T) {
	f := newFixture(t)
	e, _ := newEngine(t, f.doc, DefaultConfig())
	e.Enable()

	ov := f.doc.ByID(DefaultConfig().OverlayID)
	if ov == nil {
		t.Fatal("overlay missing")
	}
	f.doc.Dispatch(dom.PointerOver, ov, "")
	if e.ActiveElement() != nil {
		t.Error("overlay became active")
	}
	ev := f.doc.Dispatch(dom.Click, ov, "")
	if !ev.DefaultPrevented() {
		t.Error("click on overlay not suppressed")
	}
	if len(e.SelectedElements()) != 0 {
		t.Error("overlay selected")
	}
}

func TestDisableKeepsSelection(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())

	e.Enable()
	f.doc.Dispatch(dom.PointerOver, f.a, "")
	e.Select(f.b)
	rec.reset()

	e.Disable()
	if e.Enabled() || e.ActiveElement() != nil || e.Highlight().Visible() {
		t.Fatal("disable left pick mode state behind")
	}
	if got := e.SelectedElements(); !sameElements(got, f.b) {
		t.Errorf("selection = %v", got)
	}
	if len(rec.actives) != 1 || rec.actives[0] != nil {
		t.Errorf("active notifications = %v", rec.actives)
	}
	if f.doc.ListenerCount() != 0 {
		t.Errorf("%d listeners after disable", f.doc.ListenerCount())
	}

	e.Disable()
	if len(rec.actives) != 1 {
		t.Error("second disable notified")
	}

	e.Enable()
	if e.ActiveElement() != nil {
		t.Error("re-enable restored the active element")
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())
	e.Enable()
	e.Enable()
	if n := f.doc.ListenerCount(); n != 4 {
		t.Errorf("listeners = %d, want 4", n)
	}
	if len(rec.modes) != 1 {
		t.Errorf("mode notifications = %d", len(rec.modes))
	}

	e.Toggle()
	if e.Enabled() {
		t.Error("toggle did not disable")
	}
	e.Toggle()
	if !e.Enabled() {
		t.Error("toggle did not enable")
	}
}

func TestEnableIsTransactional(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())

	f.doc.FailListen(dom.KeyDown, errors.New("listener quota"))
	e.Enable()
	if e.Enabled() {
		t.Error("enabled despite failed attach")
	}
	if n := f.doc.ListenerCount(); n != 0 {
		t.Errorf("%d listeners left half-attached", n)
	}
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeEnable {
		t.Errorf("codes = %v", codes)
	}
	if len(rec.modes) != 0 {
		t.Error("mode notified on failed enable")
	}

	f.doc.FailListen(dom.KeyDown, nil)
	e.Enable()
	if !e.Enabled() || f.doc.ListenerCount() != 4 {
		t.Errorf("retry: enabled=%v listeners=%d", e.Enabled(), f.doc.ListenerCount())
	}
}

// panicListenDoc panics on the nth AddEventListener call once armed.
type panicListenDoc struct {
	*htmldom.Document
	mu    sync.Mutex
	calls int
	nth   int
}

func (d *panicListenDoc) arm(nth int) {
	d.mu.Lock()
	d.calls, d.nth = 0, nth
	d.mu.Unlock()
}

func (d *panicListenDoc) AddEventListener(kind dom.EventKind, capture bool, fn dom.Listener) (dom.Subscription, error) {
	d.mu.Lock()
	d.calls++
	boom := d.nth > 0 && d.calls == d.nth
	d.mu.Unlock()
	if boom {
		panic("listener table corrupted")
	}
	return d.Document.AddEventListener(kind, capture, fn)
}

func TestEnablePanicRollsBack(t *testing.T) {
	f := newFixture(t)
	doc := &panicListenDoc{Document: f.doc}
	e, rec := newEngine(t, doc, DefaultConfig())

	doc.arm(3)
	e.Enable()
	if e.Enabled() {
		t.Error("enabled after panicking attach")
	}
	if n := f.doc.ListenerCount(); n != 0 {
		t.Errorf("%d listeners left half-attached", n)
	}
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeEnable {
		t.Errorf("codes = %v", codes)
	}
	if len(rec.modes) != 0 {
		t.Error("mode notified on failed enable")
	}

	doc.arm(0)
	e.Disable()
	e.Enable()
	if !e.Enabled() || f.doc.ListenerCount() != 4 {
		t.Fatalf("retry: enabled=%v listeners=%d", e.Enabled(), f.doc.ListenerCount())
	}

	f.doc.Dispatch(dom.Click, f.a, "")
	if !sameElements(e.SelectedElements(), f.a) {
		t.Errorf("one click selected %v", e.SelectedElements())
	}
}

func TestKeyboard(t *testing.T) {
	f := newFixture(t)
	e, _ := newEngine(t, f.doc, DefaultConfig())
	e.Enable()
	e.Select(f.a)
	e.Select(f.b)

	ev := f.doc.Dispatch(dom.KeyDown, nil, dom.KeyTab)
	if !ev.DefaultPrevented() {
		t.Error("Tab not prevented")
	}
	if e.Mode() != ModeSingle || !sameElements(e.SelectedElements(), f.a) {
		t.Errorf("after Tab: mode %v selection %v", e.Mode(), e.SelectedElements())
	}
	f.doc.Dispatch(dom.KeyDown, nil, dom.KeyTab)
	if e.Mode() != ModeMultiple {
		t.Errorf("second Tab mode = %v", e.Mode())
	}

	if ev := f.doc.Dispatch(dom.KeyDown, nil, "a"); ev.DefaultPrevented() {
		t.Error("unrelated key prevented")
	}

	f.doc.Dispatch(dom.KeyDown, nil, dom.KeyDelete)
	if len(e.SelectedElements()) != 0 {
		t.Error("Delete did not clear")
	}
	e.Select(f.c)
	f.doc.Dispatch(dom.KeyDown, nil, dom.KeyBackspace)
	if len(e.SelectedElements()) != 0 {
		t.Error("Backspace did not clear")
	}

	f.doc.Dispatch(dom.KeyDown, nil, dom.KeyEscape)
	if e.Enabled() {
		t.Error("Escape did not disable")
	}
}

func TestClearSelection(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())
	e.Enable()
	f.doc.Dispatch(dom.PointerOver, f.a, "")
	e.Select(f.a)
	rec.reset()

	e.ClearSelection()
	if len(e.SelectedElements()) != 0 || e.ActiveElement() != nil || e.Highlight().Visible() {
		t.Error("clear left state behind")
	}
	if len(rec.selections) != 1 || len(rec.actives) != 1 {
		t.Errorf("notifications: %d selection, %d active", len(rec.selections), len(rec.actives))
	}
	if !e.Enabled() {
		t.Error("clear disabled the engine")
	}
}

func TestHoverThrottle(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, rec := newEngine(t, f.doc, DefaultConfig(), WithClock(func() time.Time { return now }))
	e.Enable()

	f.doc.Dispatch(dom.PointerOver, f.a, "")
	f.doc.Dispatch(dom.PointerOver, f.b, "")
	if e.ActiveElement() != dom.Element(f.a) || len(rec.actives) != 1 {
		t.Fatalf("burst not throttled: active=%v notifications=%d", e.ActiveElement(), len(rec.actives))
	}

	now = now.Add(20 * time.Millisecond)
	f.doc.Dispatch(dom.PointerOver, f.b, "")
	if e.ActiveElement() != dom.Element(f.b) {
		t.Error("hover after the interval dropped")
	}
}

func TestMutationPrunesSelection(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MutationDebounce = time.Hour
	e, rec := newEngine(t, f.doc, cfg)

	e.Enable()
	f.doc.Dispatch(dom.PointerOver, f.a, "")
	e.Select(f.a)
	e.Select(f.b)
	e.Select(f.d)
	rec.reset()

	if err := f.doc.Remove(f.a); err != nil {
		t.Fatal(err)
	}
	section, _ := f.doc.QuerySelector("section")
	if err := f.doc.Remove(section.(*htmldom.Element)); err != nil {
		t.Fatal(err)
	}
	if rec.selectionCount() != 0 {
		t.Fatal("pruned before the debounce window")
	}

	e.FlushMutations()
	if got := e.SelectedElements(); !sameElements(got, f.b) {
		t.Fatalf("selection = %v, want [b]", got)
	}
	if rec.selectionCount() != 1 {
		t.Errorf("%d selection notifications, want 1", rec.selectionCount())
	}
	if e.ActiveElement() != nil || len(rec.actives) != 1 || e.Highlight().Visible() {
		t.Error("removed active element not cleared")
	}
}

func TestMutationPruneAfterDebounce(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MutationDebounce = 10 * time.Millisecond
	e, rec := newEngine(t, f.doc, cfg)
	e.Select(f.a)
	e.Select(f.b)
	rec.reset()

	_ = f.doc.Remove(f.a)
	deadline := time.Now().Add(2 * time.Second)
	for rec.selectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := e.SelectedElements(); !sameElements(got, f.b) {
		t.Fatalf("selection = %v, want [b]", got)
	}
	time.Sleep(50 * time.Millisecond)
	if n := rec.selectionCount(); n != 1 {
		t.Errorf("%d selection notifications, want 1", n)
	}
}

func TestUnrelatedMutationsDoNotNotify(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MutationDebounce = time.Hour
	e, rec := newEngine(t, f.doc, cfg)
	e.Select(f.a)
	rec.reset()

	_ = f.doc.Remove(f.c)
	f.doc.SetAttribute(f.b, "class", "b changed")
	e.FlushMutations()
	if rec.selectionCount() != 0 {
		t.Error("notified for unrelated mutations")
	}
}

func TestPersistAndRestore(t *testing.T) {
	f := newFixture(t)
	store := persist.New(persist.NewMemoryStorage())

	e1 := New(f.doc, DefaultConfig(), WithStore(store), WithClock(ticking()))
	e1.Select(f.a)
	e1.Select(f.b)
	loaded := store.Load()
	if len(loaded) != 2 || loaded[0].Selector != "#a" || loaded[1].Selector != "p.b" {
		t.Fatalf("stored = %+v", loaded)
	}
	e1.Destroy()

	e2, rec := newEngine(t, f.doc, DefaultConfig(), WithStore(store))
	if got := e2.SelectedElements(); !sameElements(got, f.a, f.b) {
		t.Fatalf("restored = %v", got)
	}
	if !e2.Enabled() || e2.ActiveElement() != dom.Element(f.a) {
		t.Errorf("restored enabled=%v active=%v", e2.Enabled(), e2.ActiveElement())
	}
	if f.doc.ListenerCount() != 4 {
		t.Errorf("restore attached %d listeners", f.doc.ListenerCount())
	}
	if len(rec.selections) != 1 || len(rec.actives) != 1 || len(rec.modes) != 1 {
		t.Errorf("restore notifications: %d/%d/%d", len(rec.selections), len(rec.actives), len(rec.modes))
	}
}

func TestRestoreDiscardsExpired(t *testing.T) {
	f := newFixture(t)
	mem := persist.NewMemoryStorage()
	old := persist.New(mem, persist.WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) }))
	old.Save([]persist.Record{{Selector: "#a"}})

	e, _ := newEngine(t, f.doc, DefaultConfig(), WithStore(persist.New(mem)))
	if len(e.SelectedElements()) != 0 || e.Enabled() {
		t.Error("expired state restored")
	}
	if mem.Len() != 0 {
		t.Error("expired state not cleared")
	}
}

func TestExplicitLoadAndSave(t *testing.T) {
	f := newFixture(t)
	mem := persist.NewMemoryStorage()
	store := persist.New(mem)
	store.Save([]persist.Record{{Selector: "#missing"}, {Selector: "#a"}, {Selector: "div:hover"}})

	cfg := DefaultConfig()
	cfg.PersistSelection = false
	e, _ := newEngine(t, f.doc, cfg, WithStore(store))
	if len(e.SelectedElements()) != 0 {
		t.Fatal("restored with persistence off")
	}

	if n := e.Load(); n != 1 {
		t.Fatalf("Load = %d, want 1", n)
	}
	if !sameElements(e.SelectedElements(), f.a) || !e.Enabled() {
		t.Errorf("after Load: %v enabled=%v", e.SelectedElements(), e.Enabled())
	}

	e.Select(f.b)
	if got := store.Load(); len(got) != 3 {
		t.Errorf("persistence off still saved: %d records", len(got))
	}
	if !e.Save() {
		t.Fatal("Save failed")
	}
	if got := store.Load(); len(got) != 2 || got[1].Selector != "p.b" {
		t.Errorf("saved = %+v", got)
	}
	if recs := e.Records(); len(recs) != 2 || recs[0].ID != "a" || recs[0].Visibility == nil {
		t.Errorf("records = %+v", recs)
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	f := newFixture(t)
	mem := persist.NewMemoryStorage()
	e, rec := newEngine(t, f.doc, DefaultConfig(), WithStore(persist.New(mem)))
	mem.FailWith = errors.New("QuotaExceededError: storage full")

	e.Select(f.a)
	if !sameElements(e.SelectedElements(), f.a) {
		t.Error("selection not applied")
	}
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeSave {
		t.Errorf("codes = %v", codes)
	}
	if e.Save() {
		t.Error("Save reported success")
	}

	e.Select(f.b)
	if !sameElements(e.SelectedElements(), f.a, f.b) {
		t.Error("engine unusable after save failure")
	}
}

func TestLoadFailureIsReported(t *testing.T) {
	f := newFixture(t)
	mem := persist.NewMemoryStorage()
	store := persist.New(mem)
	store.Save([]persist.Record{{Selector: "#a"}})

	cfg := DefaultConfig()
	cfg.PersistSelection = false
	e, rec := newEngine(t, f.doc, cfg, WithStore(store))

	mem.FailWith = errors.New("SecurityError: The operation is insecure.")
	if n := e.Load(); n != 0 {
		t.Errorf("Load = %d on denied storage", n)
	}
	mem.FailWith = errors.New("storage backend offline")
	e.Load()
	if codes := rec.codes(); len(codes) != 2 || codes[0] != CodeCrossOrigin || codes[1] != CodeLoad {
		t.Errorf("codes = %v", codes)
	}
	if len(e.SelectedElements()) != 0 || e.Enabled() {
		t.Error("failed load changed state")
	}

	mem.FailWith = nil
	if n := e.Load(); n != 1 {
		t.Errorf("Load after recovery = %d, want 1", n)
	}
}

func TestInitRestoreFailureIsReported(t *testing.T) {
	f := newFixture(t)
	mem := persist.NewMemoryStorage()
	mem.FailWith = errors.New("backend offline")
	e, rec := newEngine(t, f.doc, DefaultConfig(), WithStore(persist.New(mem)))
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeLoad {
		t.Errorf("codes = %v", codes)
	}
	if e.Enabled() {
		t.Error("enabled without restored state")
	}
}

func TestElementInfo(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())

	info, err := e.ElementInfo(f.a)
	if err != nil {
		t.Fatal(err)
	}
	if info.Selector != "#a" || info.TagName != "div" {
		t.Errorf("info = %+v", info)
	}

	tests := []struct {
		name string
		el   dom.Element
		fail error
		want Code
	}{
		{"nil", nil, nil, CodeInvalidElement},
		{"cross-origin", f.b, dom.ErrCrossOrigin, CodeCrossOrigin},
		{"security message", f.c, errors.New("Blocked a frame with origin \"https://x\""), CodeCrossOrigin},
		{"other", f.d, errors.New("layout exploded"), CodeStyleExtract},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.reset()
			if tt.fail != nil {
				f.doc.Fail(tt.el.(*htmldom.Element), tt.fail)
			}
			_, err := e.ElementInfo(tt.el)
			var pe *Error
			if !errors.As(err, &pe) || pe.Code != tt.want {
				t.Fatalf("err = %v, want code %s", err, tt.want)
			}
			if tt.el != nil && pe.Element != tt.el {
				t.Error("error does not carry the element")
			}
			if codes := rec.codes(); len(codes) != 1 || codes[0] != tt.want {
				t.Errorf("reported %v", codes)
			}
		})
	}
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, f.doc, DefaultConfig())
	e.Enable()
	e.Select(f.a)

	e.Destroy()
	if f.doc.ByID(DefaultConfig().OverlayID) != nil {
		t.Error("overlay left in document")
	}
	if f.doc.ListenerCount() != 0 {
		t.Errorf("%d listeners after destroy", f.doc.ListenerCount())
	}
	e.Destroy()

	rec.reset()
	e.Select(f.b)
	e.Enable()
	_ = f.doc.Remove(f.a)
	e.FlushMutations()
	if rec.selectionCount() != 0 || len(rec.modes) != 0 || len(rec.errs) != 0 {
		t.Error("destroyed engine still reacts")
	}
	if _, err := e.ElementInfo(f.c); !errors.Is(err, ErrDestroyed) {
		t.Errorf("ElementInfo after destroy = %v", err)
	}
}

func TestHookPanicIsContained(t *testing.T) {
	f := newFixture(t)
	var got []*Error
	e := New(f.doc, DefaultConfig(), WithHooks(Hooks{
		OnSelectionChange: func([]dom.Element) { panic("consumer bug") },
		OnError:           func(err *Error) { got = append(got, err) },
	}))
	t.Cleanup(e.Destroy)

	e.Select(f.a)
	if !sameElements(e.SelectedElements(), f.a) {
		t.Error("selection lost")
	}
	if len(got) != 1 || got[0].Code != CodeUnknown {
		t.Errorf("errors = %v", got)
	}
}

type noOverlayDoc struct {
	*htmldom.Document
}

func (noOverlayDoc) CreateOverlay(string, map[string]string) (dom.Overlay, error) {
	return nil, errors.New("append failed")
}

func TestInitializationFailureIsReported(t *testing.T) {
	f := newFixture(t)
	e, rec := newEngine(t, noOverlayDoc{f.doc}, DefaultConfig())
	if codes := rec.codes(); len(codes) != 1 || codes[0] != CodeInitialization {
		t.Fatalf("codes = %v", codes)
	}
	if e.Highlight() != nil {
		t.Error("highlight set despite failure")
	}

	e.Enable()
	f.doc.Dispatch(dom.PointerOver, f.a, "")
	f.doc.Dispatch(dom.Click, f.a, "")
	if e.ActiveElement() != dom.Element(f.a) || !sameElements(e.SelectedElements(), f.a) {
		t.Error("engine unusable without overlay")
	}
}

func TestConfigNormalize(t *testing.T) {
	c := Config{MaxSelectionCount: -1, HighlightOpacity: 3, BorderWidth: -2}.normalize()
	if c.MaxSelectionCount != 10 || c.HighlightOpacity != 1 || c.BorderWidth != 0 {
		t.Errorf("normalized = %+v", c)
	}
	if c.OverlayID != "element-selector-highlight" || c.HoverThrottle != 16*time.Millisecond {
		t.Errorf("defaults not applied: %+v", c)
	}
	if _, err := ParseMode("Multiple"); err != nil {
		t.Error(err)
	}
	if _, err := ParseMode("many"); err == nil {
		t.Error("ParseMode accepted junk")
	}
}
