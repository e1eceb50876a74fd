// Package taskerr defines the error taxonomy shared across the runtime, as
// specified in spec.md §7. Each Kind propagates differently: device and UI
// errors are recovered locally by the agent loop, planning/profile/budget
// errors are fatal to the task, and LLM transient errors are retried once
// against a configured fallback.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a task-level error.
type Kind string

const (
	// KindDeviceUnavailable: no device found, ADB/xcrun missing, bridge unreachable.
	KindDeviceUnavailable Kind = "device_unavailable"
	// KindDeviceCommand: shell/bridge returned non-success for a tool call.
	KindDeviceCommand Kind = "device_command"
	// KindUIElementNotFound: tap/input could not locate a target.
	KindUIElementNotFound Kind = "ui_element_not_found"
	// KindLLMFailure: provider error, timeout, or empty/invalid structured output.
	KindLLMFailure Kind = "llm_failure"
	// KindPlanningError: Planner produced an empty/invalid plan.
	KindPlanningError Kind = "planning_error"
	// KindBudgetExhausted: remaining_steps reached 0.
	KindBudgetExhausted Kind = "budget_exhausted"
	// KindProfileNotFound: requested LLM profile absent.
	KindProfileNotFound Kind = "profile_not_found"
	// KindCancelled: user or replacing task requested cancellation.
	KindCancelled Kind = "cancelled"
	// KindPackageNotFound: Hopper could not resolve an app name to a package id.
	KindPackageNotFound Kind = "package_not_found"
)

// Error is a taxonomy-tagged error. Carries the last-tried locator
// description for UI/device errors so failures stay actionable (spec.md §9
// "Fallback chains ... always log the last attempted locator").
type Error struct {
	Kind    Kind
	Locator string
	Err     error
}

func (e *Error) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("%s: %s (last locator: %s)", e.Kind, e.Err, e.Locator)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given Kind.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds an Error from a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithLocator attaches the last-tried locator description to the error.
func (e *Error) WithLocator(locator string) *Error {
	return &Error{Kind: e.Kind, Locator: locator, Err: e.Err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

// Fatal reports whether a Kind is fatal to the owning task, as opposed to
// being recoverable locally by feeding the failure back into the agent loop.
func Fatal(kind Kind) bool {
	switch kind {
	case KindPlanningError, KindProfileNotFound, KindBudgetExhausted, KindCancelled:
		return true
	default:
		return false
	}
}
