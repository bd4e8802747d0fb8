package picker

import (
	"errors"
	"fmt"

	"github.com/v0xg/pickmode/internal/dom"
)

type binding struct {
	kind dom.EventKind
	fn   dom.Listener
}

// registry tracks document listeners. Listeners count as attached only
// once every binding succeeded.
type registry struct {
	subs map[dom.EventKind]dom.Subscription
}

func (r *registry) attached() bool { return len(r.subs) > 0 }

// attach registers every binding in the capture phase, or none of them.
func (r *registry) attach(doc dom.Document, bindings []binding) error {
	if r.attached() {
		return nil
	}
	subs := make(map[dom.EventKind]dom.Subscription, len(bindings))
	done := false
	defer func() {
		if done {
			return
		}
		for _, s := range subs {
			_ = s.Cancel()
		}
	}()
	for _, b := range bindings {
		sub, err := doc.AddEventListener(b.kind, true, b.fn)
		if err != nil {
			return fmt.Errorf("picker: listen %s: %w", b.kind, err)
		}
		subs[b.kind] = sub
	}
	r.subs = subs
	done = true
	return nil
}

// detach cancels every listener. The registry is empty afterwards even
// when a cancellation fails.
func (r *registry) detach() error {
	var errs []error
	for kind, s := range r.subs {
		if err := s.Cancel(); err != nil {
			errs = append(errs, fmt.Errorf("picker: unlisten %s: %w", kind, err))
		}
	}
	r.subs = nil
	return errors.Join(errs...)
}
