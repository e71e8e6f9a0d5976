package phasez

import "errors"

// Registration Errors
//
// These errors are returned when managing the hook list.

// ErrAlreadyUnregistered is returned when unregistering a handle that was
// already unregistered or was never valid.
var ErrAlreadyUnregistered = errors.New("hook already unregistered")

// ErrHookNotFound is returned when the hook behind a handle is no longer in
// the runner. This can occur when the runner was closed in between.
var ErrHookNotFound = errors.New("hook not found")

// ErrNoCapabilities is returned when registering a value that implements
// none of the phase interfaces, Initializer or Resetter.
var ErrNoCapabilities = errors.New("hook implements no capability")

// ErrTooManyHooks is returned when a registration would exceed maxHooks.
var ErrTooManyHooks = errors.New("hook limit exceeded")

// ErrNilHook is returned when registering a nil value.
var ErrNilHook = errors.New("hook is nil")

// Runner Lifecycle Errors

// ErrRunnerClosed is returned when using a runner after Close.
var ErrRunnerClosed = errors.New("runner is closed")

// ErrAlreadyClosed is returned when calling Close twice.
var ErrAlreadyClosed = errors.New("runner already closed")

// Hook Execution Errors
//
// These errors never leave a phase method. They are logged and counted.

// ErrHookPanicked wraps the value of a recovered hook panic.
var ErrHookPanicked = errors.New("hook panicked during execution")

// ErrInvalidConfig is returned by ParseConfig for unusable values.
var ErrInvalidConfig = errors.New("invalid config")
