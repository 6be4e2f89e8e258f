package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Resolve maps BackendAuto to the microphone backend for this platform.
func (b Backend) Resolve() Backend {
	if b != BackendAuto {
		return b
	}
	if runtime.GOOS == "linux" {
		return BackendALSA
	}
	return BackendMock
}

// NewSource opens a microphone source. If cfg.Backend is BackendAuto, ALSA
// is used on Linux and the mock elsewhere.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend.Resolve()
	logger.Info("opening microphone",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendALSA:
		return newALSASource(cfg, logger)
	case BackendClip:
		return nil, fmt.Errorf("backend %s is not a microphone; use NewPlayback", backend)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewPlayback starts real-time playback of mono samples at rate. The
// source runs until ctx is done or it is closed.
func NewPlayback(ctx context.Context, samples []int16, rate int, loop bool, logger *slog.Logger) (*ClipSource, error) {
	cfg := DefaultConfig()
	cfg.Backend = BackendClip
	cfg.SampleRate = rate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid playback config: %w", err)
	}

	src := NewClipSource(samples, cfg, loop, logger)
	if err := src.Start(ctx); err != nil {
		return nil, err
	}
	src.logger.Debug("clip playback started", "samples", len(samples), "sample_rate", rate, "loop", loop)
	return src, nil
}
