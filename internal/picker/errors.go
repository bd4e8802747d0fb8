package picker

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/v0xg/pickmode/internal/dom"
)

// Code is a stable error code for programmatic handling.
type Code string

const (
	CodeInitialization Code = "INITIALIZATION_ERROR"
	CodeEnable         Code = "ENABLE_ERROR"
	CodeDisable        Code = "DISABLE_ERROR"
	CodeMode           Code = "MODE_ERROR"
	CodeInfo           Code = "INFO_ERROR"
	CodeClear          Code = "CLEAR_ERROR"
	CodeSave           Code = "SAVE_ERROR"
	CodeLoad           Code = "LOAD_ERROR"
	CodeStyleExtract   Code = "STYLE_EXTRACT_ERROR"
	CodeCrossOrigin    Code = "CROSS_ORIGIN_IFRAME"
	CodeInvalidElement Code = "INVALID_ELEMENT"
	CodeClick          Code = "CLICK_ERROR"
	CodeMouseover      Code = "MOUSEOVER_ERROR"
	CodeMutation       Code = "MUTATION_ERROR"
	CodeUnknown        Code = "UNKNOWN_ERROR"
)

// Error is what the engine reports through Hooks.OnError.
type Error struct {
	Code Code
	// Element is the element the failing operation was working on, if any.
	Element dom.Element
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var crossOriginPattern = regexp.MustCompile(`(?i)cross-?origin|permission denied|Blocked a frame with origin|SecurityError`)

// IsCrossOrigin reports whether err looks like a denied cross-origin access.
func IsCrossOrigin(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, dom.ErrCrossOrigin) {
		return true
	}
	return crossOriginPattern.MatchString(err.Error())
}

// Normalize converts err into an *Error. An *Error anywhere in the chain
// is returned as is; cross-origin failures get CodeCrossOrigin, nil or
// foreign element handles get CodeInvalidElement, everything else gets
// fallback.
func Normalize(err error, fallback Code, el dom.Element) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if fallback == "" {
		fallback = CodeUnknown
	}
	code := fallback
	switch {
	case IsCrossOrigin(err):
		code = CodeCrossOrigin
	case errors.Is(err, dom.ErrInvalidElement):
		code = CodeInvalidElement
	}
	return &Error{Code: code, Element: el, Err: err}
}

// Humanize returns a user-facing message for err.
func Humanize(err error) string {
	if err == nil {
		return ""
	}
	e := Normalize(err, CodeUnknown, nil)
	switch e.Code {
	case CodeCrossOrigin:
		return "Cannot access content inside a cross-origin frame. Work on a same-origin page or an allowed context."
	case CodeStyleExtract:
		return "Could not extract the element's styles. Try again or check that the element is accessible."
	case CodeInvalidElement:
		return "The target is not a valid element. Pick an element on the page."
	case CodeEnable:
		return "Could not enable pick mode. Reload the page and try again."
	case CodeDisable:
		return "Something went wrong while disabling pick mode. Try again."
	case CodeMode:
		return "Could not change the selection mode. Check the mode value."
	case CodeInfo:
		return "Could not read element information. Try again or pick another element."
	case CodeClear:
		return "Could not clear the selection. Try again."
	case CodeSave:
		return "Could not save the selection. Try again."
	case CodeLoad:
		return "Could not load the saved selection. The stored state may be stale."
	case CodeInitialization:
		return "Could not initialize the picker. Check the page environment."
	}
	return e.Error()
}
