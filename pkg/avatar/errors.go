package avatar

import "errors"

var (
	// ErrNotFound is returned when an embedded avatar is not found.
	ErrNotFound = errors.New("avatar not found")

	// ErrInvalidAvatar is returned when an avatar document is malformed.
	ErrInvalidAvatar = errors.New("invalid avatar data")

	// ErrUnknownJoint is returned when a rig has no joint of that name.
	ErrUnknownJoint = errors.New("unknown joint")

	// ErrUnknownBlendshape is returned when a rig has no blendshape of that name.
	ErrUnknownBlendshape = errors.New("unknown blendshape")

	// ErrAlreadyRunning is returned when starting a running blinker.
	ErrAlreadyRunning = errors.New("blinker already running")
)
