// Package driver moves the real browser pointer and keyboard through a
// scripted sequence of steps.
package driver

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/input"
)

// StepKind is the action of one step.
type StepKind string

const (
	StepHover StepKind = "hover"
	StepClick StepKind = "click"
	StepKey   StepKind = "key"
	StepWait  StepKind = "wait"
)

// Step is one scripted action.
type Step struct {
	Kind     StepKind      `json:"action"`
	Selector string        `json:"selector,omitempty"` // for hover and click
	Key      string        `json:"key,omitempty"`      // KeyboardEvent.key value
	Wait     time.Duration `json:"wait,omitempty"`
}

func (s Step) String() string {
	switch s.Kind {
	case StepHover, StepClick:
		return string(s.Kind) + ":" + s.Selector
	case StepKey:
		return "key:" + s.Key
	case StepWait:
		return "wait:" + strconv.FormatInt(s.Wait.Milliseconds(), 10)
	}
	return string(s.Kind)
}

var keys = map[string]input.Key{
	"Escape":    input.Escape,
	"Tab":       input.Tab,
	"Delete":    input.Delete,
	"Backspace": input.Backspace,
	"Enter":     input.Enter,
}

// ParseSteps parses a script such as
//
//	hover:#nav; click:.card:nth-of-type(2); key:Tab; wait:250
//
// Steps are separated by semicolons or newlines. Selectors may contain
// colons; only the first one splits.
func ParseSteps(script string) ([]Step, error) {
	var steps []Step
	fields := strings.FieldsFunc(script, func(r rune) bool { return r == ';' || r == '\n' })
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		kind, arg, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("driver: step %q: missing ':'", f)
		}
		arg = strings.TrimSpace(arg)
		step := Step{Kind: StepKind(strings.ToLower(strings.TrimSpace(kind)))}
		switch step.Kind {
		case StepHover, StepClick:
			if arg == "" {
				return nil, fmt.Errorf("driver: step %q: empty selector", f)
			}
			step.Selector = arg
		case StepKey:
			if _, ok := keys[arg]; !ok {
				return nil, fmt.Errorf("driver: step %q: unsupported key %q", f, arg)
			}
			step.Key = arg
		case StepWait:
			ms, err := strconv.Atoi(arg)
			if err != nil || ms < 0 {
				return nil, fmt.Errorf("driver: step %q: wait wants milliseconds", f)
			}
			step.Wait = time.Duration(ms) * time.Millisecond
		default:
			return nil, fmt.Errorf("driver: step %q: unknown action %q", f, kind)
		}
		steps = append(steps, step)
	}
	return steps, nil
}
