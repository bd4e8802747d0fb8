package watch

import (
	"testing"
	"time"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/htmldom"
)

const page = `<html><body><ul><li id="a">a</li><li id="b">b</li><li id="c">c</li></ul></body></html>`

func start(t *testing.T, d *htmldom.Document, cfg Config) (*Watcher, chan Batch) {
	t.Helper()
	ch := make(chan Batch, 8)
	w := New(d, cfg, func(b Batch) { ch <- b }, nil)
	body, err := d.Body()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(body); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w, ch
}

func TestDebounceCoalesces(t *testing.T) {
	d := htmldom.MustParse(page)
	_, ch := start(t, d, Config{Window: 20 * time.Millisecond})

	for _, id := range []string{"a", "b"} {
		if err := d.Remove(d.ByID(id)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case b := <-ch:
		if len(b.Removed) != 2 {
			t.Fatalf("removed = %d, want 2", len(b.Removed))
		}
	case <-time.After(time.Second):
		t.Fatal("no batch")
	}

	select {
	case b := <-ch:
		t.Fatalf("unexpected second batch: %+v", b)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestMaxBufferFlushesImmediately(t *testing.T) {
	d := htmldom.MustParse(page)
	w, ch := start(t, d, Config{Window: time.Hour, MaxBuffer: 2})

	_ = d.Remove(d.ByID("a"))
	if w.Pending() != 1 {
		t.Fatalf("pending = %d", w.Pending())
	}
	_ = d.Remove(d.ByID("b"))

	select {
	case b := <-ch:
		if len(b.Records) != 2 {
			t.Errorf("records = %d", len(b.Records))
		}
	default:
		t.Fatal("buffer limit did not flush synchronously")
	}
	if w.Pending() != 0 {
		t.Errorf("pending after flush = %d", w.Pending())
	}
}

func TestFlushAndIgnore(t *testing.T) {
	d := htmldom.MustParse(page)
	skip := d.ByID("c")
	w, ch := start(t, d, Config{
		Window: time.Hour,
		Ignore: func(r dom.MutationRecord) bool { return r.Target == dom.Element(skip) },
	})

	d.SetAttribute(skip, "class", "x")
	d.SetAttribute(d.ByID("a"), "data-ignored", "1")
	if w.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", w.Pending())
	}

	d.SetAttribute(d.ByID("a"), "class", "hot")
	w.Flush()
	select {
	case b := <-ch:
		if len(b.Records) != 1 || b.Records[0].AttributeName != "class" || len(b.Removed) != 0 {
			t.Errorf("batch = %+v", b)
		}
	default:
		t.Fatal("Flush emitted nothing")
	}
}

func TestStopDropsPending(t *testing.T) {
	d := htmldom.MustParse(page)
	w, ch := start(t, d, Config{Window: 10 * time.Millisecond})

	_ = d.Remove(d.ByID("a"))
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}
	_ = d.Remove(d.ByID("b"))

	select {
	case b := <-ch:
		t.Fatalf("batch after stop: %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
