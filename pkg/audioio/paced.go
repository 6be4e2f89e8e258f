package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// paced emits generated chunks at the configured buffer rate. fill writes
// one buffer of interleaved samples and returns false once the generator
// is exhausted, which ends the stream.
type paced struct {
	cfg    Config
	logger *slog.Logger
	name   string
	fill   func(samples []int16) bool

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newPaced(cfg Config, logger *slog.Logger, name string) paced {
	if logger == nil {
		logger = slog.Default()
	}
	ch := make(chan AudioChunk)
	close(ch)
	return paced{
		cfg:      cfg,
		logger:   logger,
		name:     name,
		streamCh: ch,
		stopCh:   make(chan struct{}),
	}
}

// Start begins generating audio.
func (p *paced) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}

	p.running = true
	p.stopCh = make(chan struct{})
	p.streamCh = make(chan AudioChunk, 10)

	go p.generateLoop(ctx, p.streamCh, p.stopCh)

	p.logger.Debug("audio source started", "backend", p.name, "sample_rate", p.cfg.SampleRate)
	return nil
}

// generateLoop is the only sender on out and closes it on exit.
func (p *paced) generateLoop(ctx context.Context, out chan AudioChunk, stop chan struct{}) {
	defer close(out)

	ticker := time.NewTicker(p.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.markStopped(stop)
			return
		case <-stop:
			return
		case <-ticker.C:
			samples := make([]int16, p.cfg.BufferSize()*p.cfg.Channels)
			if !p.fill(samples) {
				p.markStopped(stop)
				return
			}
			chunk := AudioChunk{Samples: samples, SampleRate: p.cfg.SampleRate, Channels: p.cfg.Channels}
			select {
			case out <- chunk:
				p.chunksRead.Add(1)
				p.samplesRead.Add(int64(len(samples)))
			default:
				p.overruns.Add(1)
				p.logger.Debug("audio source: buffer full, dropping chunk", "backend", p.name)
			}
		}
	}
}

// markStopped clears running if stop still belongs to the current run.
func (p *paced) markStopped(stop chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.stopCh == stop {
		p.running = false
		close(stop)
	}
}

// Stop halts audio generation.
func (p *paced) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	close(p.stopCh)

	p.logger.Debug("audio source stopped", "backend", p.name)
	return nil
}

// Read reads the next audio chunk.
func (p *paced) Read(ctx context.Context) (AudioChunk, error) {
	ch := p.Stream()
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
func (p *paced) Stream() <-chan AudioChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCh
}

// Config returns the audio configuration.
func (p *paced) Config() Config {
	return p.cfg
}

// Name returns the backend name.
func (p *paced) Name() string {
	return p.name
}

// Close releases resources.
func (p *paced) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.Stop()
}

// Stats returns source statistics.
func (p *paced) Stats() SourceStats {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	return SourceStats{
		ChunksRead:  p.chunksRead.Load(),
		SamplesRead: p.samplesRead.Load(),
		Overruns:    p.overruns.Load(),
		Running:     running,
		Backend:     p.name,
	}
}
