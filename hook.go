package phasez

// Registration is a handle to a hook registered with a Runner.
// It provides a way to remove the hook before a later phase.
//
// Thread Safety:
// Registration methods are safe for concurrent use, but each handle should
// only be used to unregister once. Further calls return ErrAlreadyUnregistered.
//
// Example:
//
//	reg, err := runner.Register(&Bidder{})
//	if err != nil {
//	    return err
//	}
//
//	// Later, stop calling the bidder
//	if err := reg.Unregister(); err != nil {
//	    log.Printf("Failed to unregister: %v", err)
//	}
type Registration struct {
	id    string
	label string

	// unregister performs the actual removal. Cleared after first use.
	unregister func() error
}

// ID returns the unique identifier assigned at registration.
func (r *Registration) ID() string {
	return r.id
}

// Label returns the telemetry label used in operation ids.
func (r *Registration) Label() string {
	return r.label
}

// Unregister removes the hook from its runner.
//
// Calls already dispatched to the hook are not affected; phases started
// afterwards no longer select it.
//
// Returns:
//   - nil: Hook successfully removed
//   - ErrAlreadyUnregistered: Handle was already used or is invalid
//   - ErrHookNotFound: Hook no longer exists in the runner
func (r *Registration) Unregister() error {
	if r.unregister == nil {
		return ErrAlreadyUnregistered
	}
	err := r.unregister()
	r.unregister = nil
	return err
}
