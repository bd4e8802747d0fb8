// Package persist saves and restores the picker's selection as a list of
// minimal records keyed by synthesized selectors.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/style"
)

// Storage keys. TimestampKey duplicates the payload timestamp for cheap
// existence checks.
const (
	StateKey     = "element_selector_state"
	TimestampKey = "element_selector_timestamp"
)

// DefaultMaxAge is the validity window used when IsValid gets zero.
const DefaultMaxAge = 24 * time.Hour

// timestamps are written like Date.toISOString
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is the durable subset of a snapshot.
type Record struct {
	Selector   string            `json:"selector"`
	ID         string            `json:"id"`
	TagName    string            `json:"tagName"`
	ClassName  string            `json:"className"`
	Rect       dom.Rect          `json:"rect"`
	Visibility *style.Visibility `json:"visibility,omitempty"`
}

// RecordFromSnapshot keeps only what survives a reload.
func RecordFromSnapshot(s *style.Snapshot) Record {
	vis := s.Visibility
	return Record{
		Selector:   s.Selector,
		ID:         s.ID,
		TagName:    s.TagName,
		ClassName:  s.ClassName,
		Rect:       s.Rect,
		Visibility: &vis,
	}
}

// Payload is the JSON document stored under StateKey.
type Payload struct {
	Selections []Record `json:"selections"`
	Timestamp  string   `json:"timestamp"`
}

// Info summarizes stored state.
type Info struct {
	HasState       bool   `json:"hasState"`
	Timestamp      string `json:"timestamp,omitempty"`
	IsValid        bool   `json:"isValid"`
	SelectionCount int    `json:"selectionCount"`
}

// Store reads and writes selection state through a Storage.
type Store struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store over storage.
func New(storage Storage, opts ...Option) *Store {
	s := &Store{storage: storage, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save writes records and a fresh timestamp. Failures are logged and
// reported as false.
func (s *Store) Save(records []Record) bool {
	return s.SaveErr(records) == nil
}

// SaveErr is Save returning the underlying error.
func (s *Store) SaveErr(records []Record) error {
	if err := s.save(records); err != nil {
		s.logger.Error("persist: save failed", "error", err, "count", len(records))
		return err
	}
	return nil
}

func (s *Store) save(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	ts := s.now().UTC().Format(timeLayout)
	data, err := json.Marshal(Payload{Selections: records, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("persist: encode: %w", err)
	}
	if err := s.storage.Set(StateKey, string(data)); err != nil {
		return err
	}
	if err := s.storage.Set(TimestampKey, ts); err != nil {
		return err
	}
	return nil
}

type storedPayload struct {
	Selections *[]json.RawMessage `json:"selections"`
}

// Load returns the stored selection as snapshots with empty style maps.
// Absent state yields nil; malformed state is cleared and yields nil.
// Storage failures are logged and yield nil.
func (s *Store) Load() []style.Snapshot {
	out, _ := s.LoadErr()
	return out
}

// LoadErr is Load returning the storage error.
func (s *Store) LoadErr() ([]style.Snapshot, error) {
	raw, ok, err := s.storage.Get(StateKey)
	if err != nil {
		s.logger.Error("persist: load failed", "error", err)
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var p storedPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Selections == nil {
		s.logger.Warn("persist: discarding malformed state", "error", err)
		s.clearQuiet()
		return nil, nil
	}

	out := make([]style.Snapshot, 0, len(*p.Selections))
	for i, item := range *p.Selections {
		var r Record
		if err := json.Unmarshal(item, &r); err != nil {
			s.logger.Warn("persist: skipping malformed record", "index", i, "error", err)
			continue
		}
		vis := style.DefaultVisibility()
		if r.Visibility != nil {
			vis = *r.Visibility
		}
		out = append(out, style.Snapshot{
			TagName:        r.TagName,
			ID:             r.ID,
			ClassName:      r.ClassName,
			Rect:           r.Rect,
			ComputedStyles: map[string]string{},
			InlineStyles:   map[string]string{},
			Visibility:     vis,
			Selector:       r.Selector,
		})
	}
	return out, nil
}

// HasSavedState reports whether both the payload and its timestamp exist.
// A storage failure reads as false.
func (s *Store) HasSavedState() bool {
	ok, _ := s.HasSavedStateErr()
	return ok
}

// HasSavedStateErr is HasSavedState returning the storage error.
func (s *Store) HasSavedStateErr() (bool, error) {
	state, ok, err := s.storage.Get(StateKey)
	if err != nil {
		return false, err
	}
	if !ok || state == "" {
		return false, nil
	}
	ts, ok, err := s.storage.Get(TimestampKey)
	if err != nil {
		return false, err
	}
	return ok && ts != "", nil
}

// Timestamp returns the last save time as stored, or "".
func (s *Store) Timestamp() string {
	ts, ok, err := s.storage.Get(TimestampKey)
	if err != nil || !ok {
		return ""
	}
	return ts
}

// IsValid reports whether stored state is younger than maxAge. Zero
// means DefaultMaxAge.
func (s *Store) IsValid(maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	ts := s.Timestamp()
	if ts == "" {
		return false
	}
	saved, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return false
	}
	return s.now().Sub(saved) <= maxAge
}

// Clear removes every persisted key.
func (s *Store) Clear() error {
	var first error
	for _, k := range []string{StateKey, TimestampKey} {
		if err := s.storage.Remove(k); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		s.logger.Error("persist: clear failed", "error", first)
	}
	return first
}

func (s *Store) clearQuiet() {
	_ = s.Clear()
}

// Info summarizes the stored state using DefaultMaxAge.
func (s *Store) Info() Info {
	return Info{
		HasState:       s.HasSavedState(),
		Timestamp:      s.Timestamp(),
		IsValid:        s.IsValid(DefaultMaxAge),
		SelectionCount: len(s.Load()),
	}
}
