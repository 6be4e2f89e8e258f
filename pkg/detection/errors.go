package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a detection is already in flight.
	ErrBusy = errors.New("detection: previous call still in flight")

	// ErrModelInit is returned when the model cannot be created. It is
	// fatal to the capture mode.
	ErrModelInit = errors.New("detection: model initialization failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("detection: detector closed")

	// ErrUnexpectedShape is returned when a model yields a landmark set
	// whose length does not match the configured topology.
	ErrUnexpectedShape = errors.New("detection: unexpected landmark count")
)

// ModelError wraps a model initialization failure with a message meant
// for the user.
type ModelError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("could not start the %s landmark model: %v", e.Backend, e.Err)
}

// Unwrap lets errors.Is match ErrModelInit as well as the cause.
func (e *ModelError) Unwrap() []error {
	return []error{ErrModelInit, e.Err}
}
