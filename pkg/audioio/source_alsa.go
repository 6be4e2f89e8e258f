//go:build linux

package audioio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// alsaDeviceDir is checked before spawning arecord so permission problems
// surface as os.ErrPermission instead of an opaque exit status.
var alsaDeviceDir = "/dev/snd"

// ALSASource captures audio by running arecord and reading raw PCM16
// from its stdout.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger
	device string

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	streamCh chan AudioChunk

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// newALSASource creates a new ALSA audio source.
func newALSASource(cfg Config, logger *slog.Logger) (Source, error) {
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("arecord not found: %w", err)
	}

	device := cfg.Device
	if device == "" {
		device = "default"
	}

	ch := make(chan AudioChunk)
	close(ch)

	return &ALSASource{
		cfg:      cfg,
		logger:   logger,
		device:   device,
		streamCh: ch,
	}, nil
}

// Start spawns arecord and begins reading.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	f, err := os.Open(alsaDeviceDir)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("open %s: %w", alsaDeviceDir, os.ErrPermission)
		}
		return fmt.Errorf("open %s: %w", alsaDeviceDir, err)
	}
	f.Close()

	cmd := exec.CommandContext(ctx, "arecord",
		"-D", s.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
		"-q",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("arecord stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.running = true
	s.streamCh = make(chan AudioChunk, 10)
	go s.captureLoop(bufio.NewReader(stdout), s.streamCh, cmd)

	s.logger.Info("ALSA audio source started", "device", s.device)
	return nil
}

// captureLoop is the only sender on out and closes it on exit.
func (s *ALSASource) captureLoop(r io.Reader, out chan AudioChunk, cmd *exec.Cmd) {
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			s.mu.Lock()
			stopped := !s.running || s.cmd != cmd
			s.mu.Unlock()
			if !stopped {
				s.logger.Warn("ALSA capture ended", "device", s.device, "error", err)
			}
			cmd.Wait()
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)
		select {
		case out <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			s.overruns.Add(1)
			s.logger.Debug("ALSA source: buffer full, dropping chunk")
		}
	}
}

// Stop kills arecord. The capture loop drains and closes the stream.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}

	s.logger.Info("ALSA audio source stopped")
	return nil
}

// Read reads the next audio chunk.
func (s *ALSASource) Read(ctx context.Context) (AudioChunk, error) {
	ch := s.Stream()
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *ALSASource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *ALSASource) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASource) Name() string {
	return "alsa"
}

// Close releases resources.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *ALSASource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "alsa",
	}
}

var _ SourceWithStats = (*ALSASource)(nil)
