package pipeline

import (
	"errors"

	"github.com/teslashibe/go-facefx/pkg/avatar"
	"github.com/teslashibe/go-facefx/pkg/capture"
	"github.com/teslashibe/go-facefx/pkg/detection"
)

var (
	// ErrNotOpen is returned by operations that need an open controller.
	ErrNotOpen = errors.New("pipeline not open")

	// ErrClosed is returned by Open after Close.
	ErrClosed = errors.New("pipeline closed")

	// ErrAlreadyOpen is returned by a second Open.
	ErrAlreadyOpen = errors.New("pipeline already open")

	// ErrInvalidSettings is returned by ApplySettings.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrNotRecording is returned by StopRecording without a session.
	ErrNotRecording = errors.New("not recording")

	// ErrUnknownMode is returned for a mode other than overlay or avatar.
	ErrUnknownMode = errors.New("unknown mode")
)

// IsFatal reports whether err ends the current capture mode and must be
// shown to the user: model or avatar initialization failure, or unusable
// devices. Everything else is handled inside the pipeline.
func IsFatal(err error) bool {
	return errors.Is(err, detection.ErrModelInit) ||
		errors.Is(err, avatar.ErrNotFound) ||
		errors.Is(err, avatar.ErrInvalidAvatar) ||
		errors.Is(err, capture.ErrPermissionDenied) ||
		errors.Is(err, capture.ErrNoDevice)
}
