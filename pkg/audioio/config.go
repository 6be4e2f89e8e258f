// Package audioio captures PCM16 audio for the recording graph.
//
// Backends:
//   - ALSA (Linux) - microphone capture through arecord
//   - Mock - synthetic tone or silence for tests and demos
//   - Clip - real-time playback of a decoded track
//
// NewSource opens the microphone; NewPlayback starts a clip so the
// recorder can mix a background track the same way it mixes the mic.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects ALSA on Linux and the mock elsewhere.
	BackendAuto Backend = "auto"
	// BackendALSA captures through the ALSA arecord utility.
	BackendALSA Backend = "alsa"
	// BackendMock generates synthetic audio.
	BackendMock Backend = "mock"
	// BackendClip plays decoded samples. Only NewPlayback creates it.
	BackendClip Backend = "clip"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 48000 (Opus native rate)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the size of audio buffers.
	// Default: 20ms (960 samples at 48kHz, one Opus frame)
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is the ALSA device, e.g. "default" or "plughw:1,0".
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     48000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		Device:         "",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendALSA, BackendMock, BackendClip:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per channel per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
