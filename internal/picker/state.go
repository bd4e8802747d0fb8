package picker

import (
	"fmt"

	"github.com/v0xg/pickmode/internal/dom"
)

// State is the engine's selection state.
type State struct {
	// Selected is ordered oldest first and holds no duplicates.
	Selected []dom.Element
	Active   dom.Element
	Enabled  bool
	Mode     Mode
}

func (s State) clone() State {
	s.Selected = append([]dom.Element(nil), s.Selected...)
	return s
}

func (s State) index(el dom.Element) int {
	for i, x := range s.Selected {
		if x == el {
			return i
		}
	}
	return -1
}

type actionKind int

const (
	actEnable actionKind = iota + 1
	actDisable
	actSelect
	actClick
	actClear
	actSetMode
	actHover
	actKey
	actPrune
	actRestore
)

type action struct {
	kind actionKind
	el   dom.Element
	mode Mode
	key  string
	// elements gone from the document (actPrune) or resolved from
	// storage (actRestore)
	els []dom.Element
}

type effectKind int

const (
	effAttach effectKind = iota + 1
	effDetach
	effShow
	effHide
	effPersist
	effNotifySelection
	effNotifyActive
	effNotifyMode
)

type effect struct {
	kind effectKind
	el   dom.Element
}

// reduce computes the next state and the side effects a transition
// requires. It never touches the document. The returned state shares
// nothing with s.
func reduce(s State, maxCount int, a action) (State, []effect, error) {
	s = s.clone()
	switch a.kind {
	case actEnable:
		if s.Enabled {
			return s, nil, nil
		}
		s.Enabled = true
		return s, []effect{{kind: effAttach}, {kind: effNotifyMode}}, nil

	case actDisable:
		if !s.Enabled {
			return s, nil, nil
		}
		s.Enabled = false
		s.Active = nil
		return s, []effect{{kind: effDetach}, {kind: effHide}, {kind: effNotifyActive}}, nil

	case actClick:
		if !s.Enabled {
			return s, nil, nil
		}
		fallthrough
	case actSelect:
		if a.el == nil {
			return s, nil, fmt.Errorf("picker: select: %w", dom.ErrInvalidElement)
		}
		if i := s.index(a.el); i >= 0 {
			s.Selected = append(s.Selected[:i], s.Selected[i+1:]...)
		} else {
			s.Selected = add(s.Selected, a.el, s.Mode, maxCount)
		}
		return s, []effect{{kind: effPersist}, {kind: effNotifySelection}}, nil

	case actClear:
		s.Selected = nil
		s.Active = nil
		return s, []effect{
			{kind: effHide},
			{kind: effPersist},
			{kind: effNotifySelection},
			{kind: effNotifyActive},
		}, nil

	case actSetMode:
		if !a.mode.valid() {
			return s, nil, fmt.Errorf("picker: invalid selection mode %q", a.mode)
		}
		if s.Mode == a.mode {
			return s, nil, nil
		}
		s.Mode = a.mode
		var effs []effect
		if a.mode == ModeSingle && len(s.Selected) > 1 {
			s.Selected = s.Selected[:1]
			effs = append(effs, effect{kind: effPersist}, effect{kind: effNotifySelection})
		}
		return s, append(effs, effect{kind: effNotifyMode}), nil

	case actHover:
		if !s.Enabled || a.el == nil {
			return s, nil, nil
		}
		s.Active = a.el
		return s, []effect{{kind: effShow, el: a.el}, {kind: effNotifyActive}}, nil

	case actKey:
		if !s.Enabled {
			return s, nil, nil
		}
		switch a.key {
		case dom.KeyEscape:
			return reduce(s, maxCount, action{kind: actDisable})
		case dom.KeyDelete, dom.KeyBackspace:
			return reduce(s, maxCount, action{kind: actClear})
		case dom.KeyTab:
			return reduce(s, maxCount, action{kind: actSetMode, mode: s.Mode.flip()})
		}
		return s, nil, nil

	case actPrune:
		var effs []effect
		pruned := false
		for _, gone := range a.els {
			if i := s.index(gone); i >= 0 {
				s.Selected = append(s.Selected[:i], s.Selected[i+1:]...)
				pruned = true
			}
		}
		if pruned {
			effs = append(effs, effect{kind: effNotifySelection})
		}
		if s.Active != nil && contains(a.els, s.Active) {
			s.Active = nil
			effs = append(effs, effect{kind: effHide}, effect{kind: effNotifyActive})
		}
		return s, effs, nil

	case actRestore:
		added := 0
		for _, el := range a.els {
			if el == nil || s.index(el) >= 0 {
				continue
			}
			s.Selected = add(s.Selected, el, s.Mode, maxCount)
			added++
		}
		if added == 0 {
			return s, nil, nil
		}
		var effs []effect
		if !s.Enabled {
			s.Enabled = true
			effs = append(effs, effect{kind: effAttach})
		}
		s.Active = s.Selected[0]
		return s, append(effs,
			effect{kind: effNotifySelection},
			effect{kind: effNotifyActive},
			effect{kind: effNotifyMode},
		), nil
	}
	return s, nil, fmt.Errorf("picker: unknown action %d", a.kind)
}

// add appends el under the mode and capacity rules, evicting oldest first.
func add(sel []dom.Element, el dom.Element, mode Mode, maxCount int) []dom.Element {
	if mode == ModeSingle {
		return []dom.Element{el}
	}
	for len(sel) >= maxCount && len(sel) > 0 {
		sel = sel[1:]
	}
	return append(sel, el)
}

func contains(list []dom.Element, el dom.Element) bool {
	for _, x := range list {
		if x == el {
			return true
		}
	}
	return false
}
