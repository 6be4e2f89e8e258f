package capture

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrPermissionDenied is returned when the camera or microphone device
	// exists but cannot be opened by this user.
	ErrPermissionDenied = errors.New("capture permission denied")

	// ErrNoDevice is returned when the configured device does not exist.
	ErrNoDevice = errors.New("capture device not found")

	// ErrAlreadyOpen is returned by Open on an open manager.
	ErrAlreadyOpen = errors.New("capture already open")

	// ErrClosed is returned by Open after Close.
	ErrClosed = errors.New("capture closed")
)

// classify maps filesystem errors from device probing onto the capture
// sentinels, keeping the original error in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNoDevice):
		return err
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNoDevice, err)
	default:
		return err
	}
}
