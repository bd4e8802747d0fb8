package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/v0xg/pickmode/internal/dom"
)

// newOffline builds a Document without a page; only message handling
// is exercised.
func newOffline() *Document {
	ctx, cancel := context.WithCancel(context.Background())
	return &Document{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:       ctx,
		cancel:    cancel,
		elems:     make(map[int]*Element),
		listeners: make(map[dom.EventKind][]*listener),
		observers: make(map[int]func([]dom.MutationRecord)),
		msgs:      make(chan message, 1),
	}
}

func TestHandleIdentity(t *testing.T) {
	d := newOffline()
	a := d.handle(&ref{ID: 3, Tag: "div"})
	b := d.handle(&ref{ID: 3, Tag: "div"})
	if a != b {
		t.Error("same node yielded two handles")
	}
	if a.TagName() != "div" {
		t.Errorf("tag = %q", a.TagName())
	}
	if d.handle(nil) != nil || d.handle(&ref{}) != nil {
		t.Error("null ref yielded a handle")
	}
}

func TestDispatchOrder(t *testing.T) {
	d := newOffline()
	var order []string
	d.listeners[dom.Click] = []*listener{
		{id: 1, capture: false, fn: func(*dom.Event) { order = append(order, "bubble") }},
		{id: 2, capture: true, fn: func(ev *dom.Event) {
			order = append(order, "capture")
			if ev.Target.TagName() != "a" || ev.Key != "" {
				t.Errorf("event = %+v", ev)
			}
		}},
	}
	d.dispatch(message{Kind: "event", Type: "click", Target: &ref{ID: 1, Tag: "a"}})
	if len(order) != 2 || order[0] != "capture" || order[1] != "bubble" {
		t.Errorf("order = %v", order)
	}

	order = nil
	d.listeners[dom.Click][1].fn = func(ev *dom.Event) { ev.StopPropagation(); order = append(order, "capture") }
	d.dispatch(message{Kind: "event", Type: "click", Target: &ref{ID: 1, Tag: "a"}})
	if len(order) != 1 {
		t.Errorf("stopped propagation still bubbled: %v", order)
	}
}

func TestDeliverMutations(t *testing.T) {
	d := newOffline()
	var got []dom.MutationRecord
	d.observers[7] = func(recs []dom.MutationRecord) { got = recs }

	d.deliver(message{Kind: "mutation", Observer: 7, Records: []jsRecord{
		{Type: "childList", Target: &ref{ID: 1, Tag: "body"}, Removed: []ref{{ID: 2, Tag: "p"}}},
		{Type: "attributes", Target: &ref{ID: 3, Tag: "div"}, AttributeName: "class"},
	}})
	if len(got) != 2 {
		t.Fatalf("records = %v", got)
	}
	if got[0].Removed[0] != d.handle(&ref{ID: 2}) {
		t.Error("removed element handle not shared")
	}
	if got[1].AttributeName != "class" || got[1].Target.TagName() != "div" {
		t.Errorf("attribute record = %+v", got[1])
	}

	got = nil
	d.deliver(message{Kind: "mutation", Observer: 99, Records: []jsRecord{{Type: "childList"}}})
	if got != nil {
		t.Error("delivered to unknown observer")
	}
}

func TestDeliverForgetsDroppedNodes(t *testing.T) {
	d := newOffline()
	kept := d.handle(&ref{ID: 4, Tag: "li"})
	var removed dom.Element
	d.observers[1] = func(recs []dom.MutationRecord) {
		removed = recs[0].Removed[0]
		if removed != d.handle(&ref{ID: 2, Tag: "ul"}) {
			t.Error("handle pruned before delivery")
		}
	}

	d.deliver(message{Kind: "mutation", Observer: 1, Records: []jsRecord{
		{Type: "childList", Target: &ref{ID: 1, Tag: "body"}, Removed: []ref{{ID: 2, Tag: "ul"}}},
	}, Dropped: []int{2, 3}})

	if len(d.elems) != 1 || d.elems[4] != kept {
		t.Errorf("handles after drop = %v", d.elems)
	}
	if d.handle(&ref{ID: 2, Tag: "ul"}) == removed {
		t.Error("dropped handle still cached")
	}

	d.deliver(message{Kind: "mutation", Observer: 99, Dropped: []int{4}})
	if _, ok := d.elems[4]; ok {
		t.Error("batch for an unknown observer kept its dropped handle")
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"SecurityError: Failed to read a named property from 'Window'", dom.ErrCrossOrigin},
		{"Error: pickmode: unknown node 12", dom.ErrInvalidElement},
	}
	for _, tt := range tests {
		err := wrap("op", errors.New(tt.msg))
		if !errors.Is(err, tt.want) {
			t.Errorf("wrap(%q) = %v, want %v", tt.msg, err, tt.want)
		}
	}
	plain := errors.New("timeout")
	if err := wrap("op", plain); !errors.Is(err, plain) || errors.Is(err, dom.ErrCrossOrigin) {
		t.Errorf("plain = %v", err)
	}
}
