package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/v0xg/pickmode/internal/browser"
	"github.com/v0xg/pickmode/internal/config"
	"github.com/v0xg/pickmode/internal/dom"
	"github.com/v0xg/pickmode/internal/persist"
	"github.com/v0xg/pickmode/internal/picker"
	"github.com/v0xg/pickmode/internal/selector"
)

// pageSession is a browser page with a picker engine attached.
type pageSession struct {
	cfg     *config.Config
	browser *browser.Session
	doc     *browser.Document
	engine  *picker.Engine
	closers []func()
}

func openPage(ctx context.Context, cfg *config.Config, url string, hooks picker.Hooks) (*pageSession, error) {
	b := cfg.Browser
	step("Opening %s... ", url)
	sess, err := browser.Open(ctx, url, browser.Options{
		Remote:     b.Remote,
		Headless:   b.Headless,
		Stealth:    b.Stealth,
		Width:      b.Width,
		Height:     b.Height,
		Timeout:    b.Timeout,
		ProfileDir: b.ProfileDir,
		Logger:     slog.Default(),
	})
	stepDone(err)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	ps := &pageSession{cfg: cfg, browser: sess}

	doc, err := sess.Document(ctx)
	if err != nil {
		ps.Close()
		return nil, fmt.Errorf("attach failed: %w", err)
	}
	ps.doc = doc

	store, err := ps.openStore()
	if err != nil {
		ps.Close()
		return nil, err
	}

	ps.engine = picker.New(doc, cfg.PickerConfig(),
		picker.WithHooks(hooks),
		picker.WithStore(store),
		picker.WithLogger(slog.Default()),
	)
	logVerbose("  engine %s, storage %s", ps.engine.ID(), cfg.Storage.Backend)
	return ps, nil
}

func (ps *pageSession) openStore() (*persist.Store, error) {
	var storage persist.Storage
	switch ps.cfg.Storage.Backend {
	case "localstorage":
		storage = ps.browser.LocalStorage()
	case "sqlite":
		origin, err := ps.browser.Origin()
		if err != nil {
			return nil, err
		}
		sq, err := persist.OpenSQLite(ps.cfg.Storage.Path, origin)
		if err != nil {
			return nil, err
		}
		ps.closers = append(ps.closers, func() { sq.Close() })
		storage = sq
	case "memory":
		storage = persist.NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", ps.cfg.Storage.Backend)
	}
	return persist.New(storage, persist.WithLogger(slog.Default())), nil
}

// Close destroys the engine and closes the browser.
func (ps *pageSession) Close() {
	if ps.engine != nil {
		ps.engine.Destroy()
	}
	for i := len(ps.closers) - 1; i >= 0; i-- {
		ps.closers[i]()
	}
	ps.browser.Close()
}

// selectedRects returns the bounding rects, skipping elements that
// cannot be measured.
func selectedRects(els []dom.Element) []dom.Rect {
	var rects []dom.Rect
	for _, el := range els {
		r, err := el.BoundingRect()
		if err != nil {
			slog.Warn("pickmode: skipping element", "selector", selector.Synthesize(el), "error", err)
			continue
		}
		rects = append(rects, r)
	}
	return rects
}

// notifier writes engine notifications as JSON lines.
type notifier struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type notification struct {
	Event    string   `json:"event"`
	Selected []string `json:"selected,omitempty"`
	Element  string   `json:"element,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Code     string   `json:"code,omitempty"`
	Message  string   `json:"message,omitempty"`
}

func newNotifier(w io.Writer) *notifier {
	return &notifier{enc: json.NewEncoder(w)}
}

func (n *notifier) emit(v notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.enc.Encode(v); err != nil {
		slog.Error("pickmode: write notification", "error", err)
	}
}

func (n *notifier) hooks() picker.Hooks {
	return picker.Hooks{
		OnSelectionChange: func(sel []dom.Element) {
			names := make([]string, 0, len(sel))
			for _, el := range sel {
				names = append(names, selector.Synthesize(el))
			}
			n.emit(notification{Event: "selection", Selected: names})
		},
		OnActiveElementChange: func(el dom.Element) {
			n.emit(notification{Event: "active", Element: selector.Synthesize(el)})
		},
		OnSelectionModeChange: func(m picker.Mode) {
			n.emit(notification{Event: "mode", Mode: string(m)})
		},
		OnError: func(err *picker.Error) {
			n.emit(notification{
				Event:   "error",
				Code:    string(err.Code),
				Element: selector.Synthesize(err.Element),
				Message: picker.Humanize(err),
			})
		},
	}
}
