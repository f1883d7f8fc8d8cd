// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fault defines the error kinds shared by the tracker core and the
// sink that steady-state failures are reported to.
package fault

import "errors"

var (
	// ErrInvalidArgument rejects bad caller input before any side effect.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotInitialized is returned by operations on an unprepared component.
	ErrNotInitialized = errors.New("not initialized")
	// ErrResourceExhausted reports a hardware or runtime resource that could not be created.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrTimeout reports a bounded wait that expired.
	ErrTimeout = errors.New("timeout")
	// ErrInconsistentState means an enum value outside its declared range reached a switch.
	ErrInconsistentState = errors.New("inconsistent state")
	// ErrUnsupported marks a feature a given transport does not implement.
	ErrUnsupported = errors.New("unsupported")
	// ErrLinkFailure is raised when the radio stack reports an error event.
	ErrLinkFailure = errors.New("link failure")
)

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as fatal regardless of its kind. The radio uses it for
// error events, which leave the link in an unknown state.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err belongs to a kind that indicates a logic defect
// or lost hardware resource, or was marked with Fatal. Fatal errors are
// reported, never recovered here.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.Is(err, ErrInconsistentState) || errors.Is(err, ErrResourceExhausted) || errors.As(err, &f)
}

// Severity is the label attached to reported errors.
func Severity(err error) string {
	if IsFatal(err) {
		return "fatal"
	}
	return "error"
}
