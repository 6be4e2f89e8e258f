package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-facefx/pkg/avatar"
	"github.com/teslashibe/go-facefx/pkg/capture"
	"github.com/teslashibe/go-facefx/pkg/detection"
	"github.com/teslashibe/go-facefx/pkg/landmark"
	"github.com/teslashibe/go-facefx/pkg/presence"
	"github.com/teslashibe/go-facefx/pkg/recorder"
)

// Mode selects what is drawn on the canvas.
type Mode string

const (
	// ModeOverlay composites a 2D filter over the camera.
	ModeOverlay Mode = "overlay"
	// ModeAvatar retargets the face onto an avatar rig.
	ModeAvatar Mode = "avatar"
)

// Detector backends.
const (
	BackendYuNet  = "yunet"
	BackendRemote = "remote"
	BackendMock   = "mock"
)

// DetectorConfig selects and configures the landmark model.
type DetectorConfig struct {
	Backend   string                 `yaml:"backend" json:"backend"`
	RemoteURL string                 `yaml:"remote_url" json:"remote_url"`
	Options   detection.ModelOptions `yaml:"options" json:"options"`
}

// AvatarConfig configures avatar mode.
type AvatarConfig struct {
	// Avatar is an embedded avatar name or a path to a .json file.
	Avatar string             `yaml:"avatar" json:"avatar"`
	Blink  avatar.BlinkConfig `yaml:"blink" json:"blink"`
}

// Config holds the full pipeline configuration.
type Config struct {
	Mode           Mode    `yaml:"mode" json:"mode"`
	DisplayRate    int     `yaml:"display_rate" json:"display_rate"`       // ticks per second
	SmoothingAlpha float64 `yaml:"smoothing_alpha" json:"smoothing_alpha"` // weight of each new detection

	Capture  capture.Config  `yaml:"capture" json:"capture"`
	Detector DetectorConfig  `yaml:"detector" json:"detector"`
	Presence presence.Config `yaml:"presence" json:"presence"`
	Recorder recorder.Config `yaml:"recorder" json:"recorder"`
	Avatar   AvatarConfig    `yaml:"avatar" json:"avatar"`
	Settings Settings        `yaml:"settings" json:"settings"`
}

// DefaultConfig returns overlay mode on the default camera with YuNet.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeOverlay,
		DisplayRate:    60,
		SmoothingAlpha: landmark.DefaultAlpha,
		Capture:        capture.DefaultConfig(),
		Detector: DetectorConfig{
			Backend: BackendYuNet,
			Options: detection.DefaultModelOptions(),
		},
		Presence: presence.DefaultConfig(),
		Recorder: recorder.DefaultConfig(),
		Avatar: AvatarConfig{
			Avatar: avatar.DefaultAvatar,
			Blink:  avatar.DefaultBlinkConfig(),
		},
		Settings: DefaultSettings(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeOverlay, ModeAvatar:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode))
	}
	if c.DisplayRate <= 0 {
		errs = append(errs, fmt.Errorf("display_rate must be positive, got %d", c.DisplayRate))
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1 {
		errs = append(errs, fmt.Errorf("smoothing_alpha must be in (0,1], got %v", c.SmoothingAlpha))
	}
	if problems := c.Capture.Validate(); len(problems) > 0 {
		errs = append(errs, fmt.Errorf("capture: %s", strings.Join(problems, "; ")))
	}
	switch c.Detector.Backend {
	case BackendYuNet, BackendMock:
	case BackendRemote:
		if c.Detector.RemoteURL == "" {
			errs = append(errs, errors.New("detector: remote backend needs remote_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("detector: unknown backend %q", c.Detector.Backend))
	}
	if err := c.Detector.Options.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detector: %w", err))
	}
	if err := c.Presence.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("presence: %w", err))
	}
	if err := c.Recorder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recorder: %w", err))
	}
	if c.Mode == ModeAvatar && (c.Avatar.Blink.Interval <= 0 || c.Avatar.Blink.Duration <= 0) {
		errs = append(errs, errors.New("avatar: blink interval and duration must be positive"))
	}
	return errors.Join(errs...)
}
