// Package capture owns the camera and microphone for a pipeline instance.
// Devices are acquired together by Manager.Open and released together by
// Manager.Close, on every path.
package capture

import (
	"fmt"

	"github.com/teslashibe/go-facefx/pkg/audioio"
)

// Backend selects the camera implementation.
type Backend string

const (
	BackendGoCV Backend = "gocv"
	BackendMock Backend = "mock"
)

// Config holds camera and microphone settings.
type Config struct {
	// === Camera ===
	Backend   Backend `yaml:"backend" json:"backend"`
	Device    string  `yaml:"device" json:"device"`       // index ("0") or path ("/dev/video2")
	Width     int     `yaml:"width" json:"width"`         // Frame width in pixels
	Height    int     `yaml:"height" json:"height"`       // Frame height in pixels
	Framerate int     `yaml:"framerate" json:"framerate"` // Target FPS
	Mirror    bool    `yaml:"mirror" json:"mirror"`       // Flip horizontally, selfie view

	// === Microphone ===
	Microphone bool           `yaml:"microphone" json:"microphone"`
	Audio      audioio.Config `yaml:"audio" json:"audio"`
}

// Limits for webcam-class devices.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 640x480 at 30 fps with the microphone enabled.
// Landmark models run at well under this resolution, so larger frames
// only cost compositing time.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendGoCV,
		Device:     "0",
		Width:      640,
		Height:     480,
		Framerate:  30,
		Mirror:     true,
		Microphone: true,
		Audio:      audioio.DefaultConfig(),
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Backend {
	case BackendGoCV, BackendMock:
	default:
		errors = append(errors, "backend must be gocv or mock")
	}
	if c.Backend == BackendGoCV && c.Device == "" {
		errors = append(errors, "device is required for the gocv backend")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Microphone {
		if err := c.Audio.Validate(); err != nil {
			errors = append(errors, "audio: "+err.Error())
		}
	}

	return errors
}

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetSilent  = "silent"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	low := DefaultConfig()
	low.Width, low.Height, low.Framerate = 320, 240, 15

	hd := DefaultConfig()
	hd.Width, hd.Height = 1280, 720

	fhd := DefaultConfig()
	fhd.Width, fhd.Height = 1920, 1080

	silent := DefaultConfig()
	silent.Microphone = false

	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLow:     low,
		Preset720p:    hd,
		Preset1080p:   fhd,
		PresetSilent:  silent,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}
