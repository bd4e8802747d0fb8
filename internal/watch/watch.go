// Package watch observes a document subtree and reports mutations in
// debounced batches.
package watch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/v0xg/pickmode/internal/dom"
)

// Config controls batching.
type Config struct {
	// Window is the quiet period before a batch is emitted. Default: 100ms.
	Window time.Duration
	// MaxBuffer flushes immediately when this many records accumulate. Default: 1000.
	MaxBuffer int
	// Attributes lists the attributes whose changes are observed.
	// Default: class, id, style.
	Attributes []string
	// Ignore drops records before they are buffered.
	Ignore func(dom.MutationRecord) bool
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = 100 * time.Millisecond
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = 1000
	}
	if len(c.Attributes) == 0 {
		c.Attributes = []string{"class", "id", "style"}
	}
}

// Batch is every record collected during one debounce window.
type Batch struct {
	Records []dom.MutationRecord
	// Removed lists each removed element once, in removal order.
	Removed []dom.Element
}

// Watcher is a debounced mutation observer.
type Watcher struct {
	doc     dom.Document
	cfg     Config
	onBatch func(Batch)
	logger  *slog.Logger

	mu      sync.Mutex
	records []dom.MutationRecord
	timer   *time.Timer
	gen     uint64
	sub     dom.Subscription
	stopped bool
}

// New returns a stopped Watcher. onBatch runs on the goroutine that
// triggered the flush: the timer goroutine, or the observer callback
// when MaxBuffer is reached.
func New(doc dom.Document, cfg Config, onBatch func(Batch), logger *slog.Logger) *Watcher {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		doc:     doc,
		cfg:     cfg,
		onBatch: onBatch,
		logger:  logger,
	}
}

// Start observes root's subtree. Starting a running watcher is a no-op.
func (w *Watcher) Start(root dom.Element) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		return nil
	}
	sub, err := w.doc.Observe(root, dom.ObserveOptions{
		ChildList:       true,
		Subtree:         true,
		Attributes:      true,
		AttributeFilter: w.cfg.Attributes,
	}, w.add)
	if err != nil {
		return fmt.Errorf("watch: observe: %w", err)
	}
	w.sub = sub
	w.stopped = false
	w.logger.Debug("watch: started", "window", w.cfg.Window)
	return nil
}

func (w *Watcher) add(recs []dom.MutationRecord) {
	w.mu.Lock()
	if w.stopped || w.sub == nil {
		w.mu.Unlock()
		return
	}
	added := 0
	for _, r := range recs {
		if w.cfg.Ignore != nil && w.cfg.Ignore(r) {
			continue
		}
		w.records = append(w.records, r)
		added++
	}
	if added == 0 {
		w.mu.Unlock()
		return
	}
	if len(w.records) >= w.cfg.MaxBuffer {
		batch := w.takeLocked()
		w.mu.Unlock()
		w.emit(batch)
		return
	}

	// (Re)start the window timer.
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.cfg.Window, func() { w.fire(gen) })
	w.mu.Unlock()
}

func (w *Watcher) fire(gen uint64) {
	w.mu.Lock()
	if w.stopped || gen != w.gen {
		w.mu.Unlock()
		return
	}
	batch := w.takeLocked()
	w.mu.Unlock()
	w.emit(batch)
}

// Flush emits buffered records now.
func (w *Watcher) Flush() {
	w.mu.Lock()
	batch := w.takeLocked()
	w.mu.Unlock()
	w.emit(batch)
}

// Pending returns the number of buffered records.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// takeLocked drains the buffer. Caller holds w.mu.
func (w *Watcher) takeLocked() Batch {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	if len(w.records) == 0 {
		return Batch{}
	}
	b := Batch{Records: w.records}
	w.records = nil

	seen := make(map[dom.Element]bool)
	for _, r := range b.Records {
		for _, el := range r.Removed {
			if el != nil && !seen[el] {
				seen[el] = true
				b.Removed = append(b.Removed, el)
			}
		}
	}
	return b
}

func (w *Watcher) emit(b Batch) {
	if len(b.Records) == 0 || w.onBatch == nil {
		return
	}
	w.logger.Debug("watch: batch", "records", len(b.Records), "removed", len(b.Removed))
	w.onBatch(b)
}

// Stop disconnects the observer and drops buffered records. A timer
// already firing finds the watcher stopped and does nothing.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.records = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	if w.sub == nil {
		return nil
	}
	sub := w.sub
	w.sub = nil
	if err := sub.Cancel(); err != nil {
		return fmt.Errorf("watch: disconnect: %w", err)
	}
	w.logger.Debug("watch: stopped")
	return nil
}
