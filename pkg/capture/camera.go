package capture

import (
	"image"
)

// Camera produces video frames. ReadFrame blocks until the next frame and
// must return promptly with an error once Close has been called.
type Camera interface {
	ReadFrame() (*image.RGBA, error)
	Size() (width, height int)
	Name() string
	Close() error
}

// CameraOpener creates a camera from config.
type CameraOpener func(cfg Config) (Camera, error)

// OpenCamera creates the camera for cfg.Backend.
func OpenCamera(cfg Config) (Camera, error) {
	switch cfg.Backend {
	case BackendMock:
		return NewMockCamera(cfg), nil
	case BackendGoCV:
		return OpenGoCVCamera(cfg)
	default:
		return nil, ErrNoDevice
	}
}
