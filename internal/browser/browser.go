// Package browser drives a Chromium page over CDP and exposes it as a
// dom.Document for the picker.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Options configures the browser session.
type Options struct {
	// Remote is the WebSocket URL of a running Chrome. Empty launches one.
	Remote     string
	Headless   bool
	Stealth    bool
	Width      int
	Height     int
	Timeout    time.Duration
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	Logger     *slog.Logger
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Session wraps the Rod browser and the page being picked on.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	logger  *slog.Logger
	doc     *Document
}

// Open launches (or connects to) Chrome and navigates to url.
func Open(ctx context.Context, url string, opts Options) (*Session, error) {
	opts.defaults()
	log := opts.Logger

	s := &Session{logger: log}
	wsURL := opts.Remote
	if wsURL == "" {
		path, _ := launcher.LookPath()
		l := launcher.New().Bin(path).Headless(opts.Headless)
		if opts.ProfileDir != "" {
			l = l.UserDataDir(opts.ProfileDir)
		}
		if opts.Stealth {
			l = l.Set("disable-blink-features", "AutomationControlled")
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("browser: launched local chrome", "headless", opts.Headless, "stealth", opts.Stealth)
	} else {
		log.Info("browser: connecting to remote", "url", wsURL)
	}

	s.browser = rod.New().ControlURL(wsURL)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		s.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	var err error
	if opts.Stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("browser: set viewport failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := s.page.Context(navCtx).Navigate(url); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := s.page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", url, "error", err)
	}

	// Don't hang on persistent connections.
	s.page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return s, nil
}

// Page returns the underlying Rod page.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Document returns the page as a dom.Document, injecting the picker
// script on first use.
func (s *Session) Document(ctx context.Context) (*Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	d, err := NewDocument(ctx, s.page, s.logger)
	if err != nil {
		return nil, err
	}
	s.doc = d
	return d, nil
}

// Origin returns window.location.origin.
func (s *Session) Origin() (string, error) {
	res, err := s.page.Eval(`() => window.location.origin`)
	if err != nil {
		return "", fmt.Errorf("browser: origin: %w", err)
	}
	return res.Value.Str(), nil
}

// LocalStorage returns the page's window.localStorage.
func (s *Session) LocalStorage() *LocalStorage {
	return &LocalStorage{page: s.page}
}

// Screenshot captures the viewport.
func (s *Session) Screenshot() (image.Image, error) {
	data, err := s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("browser: decode screenshot: %w", err)
	}
	return img, nil
}

// Close cleans up browser resources.
func (s *Session) Close() {
	if s.doc != nil {
		s.doc.Close()
	}
	if s.page != nil {
		s.page.Close()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
}
