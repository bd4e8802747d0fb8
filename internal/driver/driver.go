package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Options configures pointer animation.
type Options struct {
	// FPS sets how many pointer positions per second a move produces.
	FPS int
	// StepDelay is the pause after each step. Default: 300ms.
	StepDelay time.Duration
	// FindTimeout bounds the wait for a selector to match. Default: 5s.
	FindTimeout time.Duration
	// OnFrame runs after every intermediate pointer position.
	OnFrame func(cursor proto.Point)
	Logger  *slog.Logger
}

func (o *Options) defaults() {
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if o.StepDelay <= 0 {
		o.StepDelay = 300 * time.Millisecond
	}
	if o.FindTimeout <= 0 {
		o.FindTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Driver replays steps against a page with the real CDP mouse and keyboard.
type Driver struct {
	page   *rod.Page
	opts   Options
	cursor proto.Point
}

// New returns a Driver whose pointer starts at the viewport centre.
func New(page *rod.Page, width, height int, opts Options) *Driver {
	opts.defaults()
	return &Driver{
		page:   page,
		opts:   opts,
		cursor: proto.Point{X: float64(width) / 2, Y: float64(height) / 2},
	}
}

// Cursor returns the current pointer position.
func (d *Driver) Cursor() proto.Point { return d.cursor }

// Run executes steps in order. A failing hover or click is logged and
// skipped; a cancelled context stops the run.
func (d *Driver) Run(ctx context.Context, steps []Step) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.opts.Logger.Debug("driver: step", "index", i+1, "of", len(steps), "step", s.String())

		var err error
		switch s.Kind {
		case StepHover:
			err = d.Hover(ctx, s.Selector)
		case StepClick:
			err = d.Click(ctx, s.Selector)
		case StepKey:
			err = d.Press(s.Key)
		case StepWait:
			err = sleep(ctx, s.Wait)
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			d.opts.Logger.Warn("driver: step failed", "step", s.String(), "error", err)
			continue
		}
		if err := sleep(ctx, d.opts.StepDelay); err != nil {
			return err
		}
	}
	return nil
}

// Hover glides the pointer to the centre of the first element matching
// selector.
func (d *Driver) Hover(ctx context.Context, selector string) error {
	target, err := d.center(selector)
	if err != nil {
		return err
	}
	return d.glide(ctx, target)
}

// Click hovers selector, then presses and releases the left button.
func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := d.Hover(ctx, selector); err != nil {
		return err
	}
	if err := d.page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("driver: click %s: %w", selector, err)
	}
	return nil
}

// Press types one key.
func (d *Driver) Press(key string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("driver: unsupported key %q", key)
	}
	if err := d.page.Keyboard.Press(k); err != nil {
		return fmt.Errorf("driver: press %s: %w", key, err)
	}
	return nil
}

func (d *Driver) glide(ctx context.Context, to proto.Point) error {
	frameInterval := time.Second / time.Duration(d.opts.FPS)
	// Movement takes about half a second.
	for _, p := range path(d.cursor, to, d.opts.FPS/2) {
		if err := d.page.Mouse.MoveTo(p); err != nil {
			return fmt.Errorf("driver: move: %w", err)
		}
		d.cursor = p
		if d.opts.OnFrame != nil {
			d.opts.OnFrame(p)
		}
		if err := sleep(ctx, frameInterval/2); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) center(selector string) (proto.Point, error) {
	el, err := d.page.Timeout(d.opts.FindTimeout).Element(selector)
	if err != nil {
		return proto.Point{}, fmt.Errorf("driver: element not found: %s", selector)
	}
	box, err := el.Shape()
	if err != nil {
		return proto.Point{}, fmt.Errorf("driver: shape of %s: %w", selector, err)
	}
	if len(box.Quads) == 0 {
		return proto.Point{}, fmt.Errorf("driver: element has no shape: %s", selector)
	}
	return quadCenter(box.Quads[0]), nil
}

func quadCenter(q proto.DOMQuad) proto.Point {
	return proto.Point{
		X: (q[0] + q[2] + q[4] + q[6]) / 4,
		Y: (q[1] + q[3] + q[5] + q[7]) / 4,
	}
}

// path interpolates from one point to another with ease-in-out timing.
// It has at least 5 steps and always ends exactly on to.
func path(from, to proto.Point, steps int) []proto.Point {
	if steps < 5 {
		steps = 5
	}
	out := make([]proto.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := easeInOutQuad(float64(i) / float64(steps))
		out = append(out, proto.Point{
			X: from.X + t*(to.X-from.X),
			Y: from.Y + t*(to.Y-from.Y),
		})
	}
	out[len(out)-1] = to
	return out
}

// easeInOutQuad provides smooth acceleration/deceleration
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - (-2*t+2)*(-2*t+2)/2
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
