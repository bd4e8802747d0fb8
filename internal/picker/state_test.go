package picker

import (
	"errors"
	"testing"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/htmldom"
)

func kinds(effs []effect) []effectKind {
	out := make([]effectKind, 0, len(effs))
	for _, e := range effs {
		out = append(out, e.kind)
	}
	return out
}

func equalKinds(a, b []effectKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReduce(t *testing.T) {
	doc := htmldom.MustParse(`<body><i id="x"></i><i id="y"></i><i id="z"></i></body>`)
	x, y, z := dom.Element(doc.ByID("x")), dom.Element(doc.ByID("y")), dom.Element(doc.ByID("z"))

	tests := []struct {
		name     string
		state    State
		action   action
		selected []dom.Element
		active   dom.Element
		enabled  bool
		effects  []effectKind
	}{
		{
			name:    "enable",
			state:   State{Mode: ModeMultiple},
			action:  action{kind: actEnable},
			enabled: true,
			effects: []effectKind{effAttach, effNotifyMode},
		},
		{
			name:     "disable keeps selection",
			state:    State{Mode: ModeMultiple, Enabled: true, Active: x, Selected: []dom.Element{y}},
			action:   action{kind: actDisable},
			selected: []dom.Element{y},
			effects:  []effectKind{effDetach, effHide, effNotifyActive},
		},
		{
			name:   "hover while disabled",
			state:  State{Mode: ModeMultiple},
			action: action{kind: actHover, el: x},
		},
		{
			name:    "hover",
			state:   State{Mode: ModeMultiple, Enabled: true},
			action:  action{kind: actHover, el: x},
			active:  x,
			enabled: true,
			effects: []effectKind{effShow, effNotifyActive},
		},
		{
			name:   "click while disabled",
			state:  State{Mode: ModeMultiple},
			action: action{kind: actClick, el: x},
		},
		{
			name:     "select while disabled",
			state:    State{Mode: ModeMultiple},
			action:   action{kind: actSelect, el: x},
			selected: []dom.Element{x},
			effects:  []effectKind{effPersist, effNotifySelection},
		},
		{
			name:     "single mode replaces",
			state:    State{Mode: ModeSingle, Selected: []dom.Element{x}},
			action:   action{kind: actSelect, el: y},
			selected: []dom.Element{y},
			effects:  []effectKind{effPersist, effNotifySelection},
		},
		{
			name:     "prune selected and active",
			state:    State{Mode: ModeMultiple, Enabled: true, Active: x, Selected: []dom.Element{x, y, z}},
			action:   action{kind: actPrune, els: []dom.Element{x, z}},
			selected: []dom.Element{y},
			enabled:  true,
			effects:  []effectKind{effNotifySelection, effHide, effNotifyActive},
		},
		{
			name:     "prune unrelated",
			state:    State{Mode: ModeMultiple, Selected: []dom.Element{y}},
			action:   action{kind: actPrune, els: []dom.Element{x}},
			selected: []dom.Element{y},
		},
		{
			name:     "restore enables",
			state:    State{Mode: ModeMultiple},
			action:   action{kind: actRestore, els: []dom.Element{y, x}},
			selected: []dom.Element{y, x},
			active:   y,
			enabled:  true,
			effects:  []effectKind{effAttach, effNotifySelection, effNotifyActive, effNotifyMode},
		},
		{
			name:     "restore skips present",
			state:    State{Mode: ModeMultiple, Enabled: true, Selected: []dom.Element{x}},
			action:   action{kind: actRestore, els: []dom.Element{x}},
			selected: []dom.Element{x},
			enabled:  true,
		},
		{
			name:     "escape",
			state:    State{Mode: ModeMultiple, Enabled: true, Active: x, Selected: []dom.Element{x}},
			action:   action{kind: actKey, key: dom.KeyEscape},
			selected: []dom.Element{x},
			effects:  []effectKind{effDetach, effHide, effNotifyActive},
		},
		{
			name:     "tab truncates",
			state:    State{Mode: ModeMultiple, Enabled: true, Selected: []dom.Element{z, x}},
			action:   action{kind: actKey, key: dom.KeyTab},
			selected: []dom.Element{z},
			enabled:  true,
			effects:  []effectKind{effPersist, effNotifySelection, effNotifyMode},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.state.clone()
			got, effs, err := reduce(tt.state, 2, tt.action)
			if err != nil {
				t.Fatal(err)
			}
			if !sameElements(got.Selected, tt.selected...) {
				t.Errorf("selected = %v, want %v", got.Selected, tt.selected)
			}
			if got.Active != tt.active || got.Enabled != tt.enabled {
				t.Errorf("active=%v enabled=%v", got.Active, got.Enabled)
			}
			if k := kinds(effs); !equalKinds(k, tt.effects) {
				t.Errorf("effects = %v, want %v", k, tt.effects)
			}
			if !sameElements(tt.state.Selected, before.Selected...) {
				t.Error("input state mutated")
			}
		})
	}
}

func TestReduceErrors(t *testing.T) {
	if _, _, err := reduce(State{Mode: ModeMultiple}, 2, action{kind: actSelect}); !errors.Is(err, dom.ErrInvalidElement) {
		t.Errorf("nil select: %v", err)
	}
	if _, _, err := reduce(State{Mode: ModeMultiple}, 2, action{kind: actSetMode, mode: "both"}); err == nil {
		t.Error("invalid mode accepted")
	}
	if _, _, err := reduce(State{}, 2, action{}); err == nil {
		t.Error("zero action accepted")
	}
}

func TestAddCapacity(t *testing.T) {
	doc := htmldom.MustParse(`<body><b></b><b></b><b></b></body>`)
	els, _ := doc.QuerySelectorAll("b")
	var sel []dom.Element
	for _, el := range els {
		sel = add(sel, el, ModeMultiple, 2)
	}
	if !sameElements(sel, els[1], els[2]) {
		t.Errorf("sel = %v", sel)
	}
}
