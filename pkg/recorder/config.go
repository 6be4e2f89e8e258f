// Package recorder captures the output canvas and a mixed audio track into
// a single media file.
//
// A Session samples the canvas at a fixed frame rate and pulls 20ms PCM
// frames from a Mixer that sums the microphone and an optional auxiliary
// track. Both streams go to a Muxer, whose output chunks accumulate in
// memory until Stop seals them into a Blob.
package recorder

import (
	"fmt"
	"time"
)

// Config holds recorder settings.
type Config struct {
	// Framerate is the canvas sampling rate in frames per second.
	// Default: 30
	Framerate int `yaml:"framerate" json:"framerate"`

	// SampleRate is the mixed audio rate in Hz.
	// Default: 48000
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FrameDuration is the audio frame length.
	// Default: 20ms
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`

	// MicGain scales the microphone input.
	// Default: 1.0
	MicGain float64 `yaml:"mic_gain" json:"mic_gain"`

	// AuxGain scales the auxiliary (background) input.
	// Default: 0.5
	AuxGain float64 `yaml:"aux_gain" json:"aux_gain"`

	// VideoBitrate is the VP8 target bitrate, e.g. "1M".
	VideoBitrate string `yaml:"video_bitrate" json:"video_bitrate"`

	// AudioBitrate is the Opus target bitrate in bits per second.
	// Default: 64000
	AudioBitrate int `yaml:"audio_bitrate" json:"audio_bitrate"`

	// FFmpegPath is the ffmpeg binary.
	// Default: "ffmpeg"
	FFmpegPath string `yaml:"ffmpeg_path" json:"ffmpeg_path"`
}

// DefaultConfig returns the standard 30fps, 48kHz configuration.
func DefaultConfig() Config {
	return Config{
		Framerate:     30,
		SampleRate:    48000,
		FrameDuration: 20 * time.Millisecond,
		MicGain:       1.0,
		AuxGain:       0.5,
		VideoBitrate:  "1M",
		AudioBitrate:  64000,
		FFmpegPath:    "ffmpeg",
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Framerate <= 0 {
		return fmt.Errorf("framerate must be positive, got %d", c.Framerate)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %v", c.FrameDuration)
	}
	if c.MicGain < 0 || c.AuxGain < 0 {
		return fmt.Errorf("gains must not be negative")
	}
	return nil
}

// FrameSize returns the number of samples per audio frame.
func (c Config) FrameSize() int {
	return int(int64(c.SampleRate) * int64(c.FrameDuration) / int64(time.Second))
}
