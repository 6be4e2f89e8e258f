package recorder

import "errors"

var (
	// ErrEmptyRecording is returned by Stop when no bytes were produced.
	// The caller must not offer a download.
	ErrEmptyRecording = errors.New("recording is empty")

	// ErrRecorderInit is returned when the muxer cannot be constructed.
	ErrRecorderInit = errors.New("recorder initialization failed")

	// ErrFinalize is returned by Stop when the muxer fails to flush.
	ErrFinalize = errors.New("recording finalization failed")

	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrSessionClosed is returned when stopping or modifying a finished
	// session.
	ErrSessionClosed = errors.New("recording session closed")

	// ErrNoAudioTrack is returned by SetAux on a session without audio.
	ErrNoAudioTrack = errors.New("session has no audio track")

	// ErrMixerClosed is returned when connecting to a closed mixer.
	ErrMixerClosed = errors.New("mixer closed")

	// ErrNilSource is returned when connecting a nil source.
	ErrNilSource = errors.New("nil audio source")

	// ErrSourceStopped is returned when connecting a source that is not
	// running.
	ErrSourceStopped = errors.New("audio source not running")
)

// IsIntegrityError reports whether err means the recording must not be
// delivered.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrEmptyRecording) ||
		errors.Is(err, ErrRecorderInit) ||
		errors.Is(err, ErrFinalize)
}
