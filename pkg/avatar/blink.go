package avatar

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// BlinkConfig configures the periodic blink.
type BlinkConfig struct {
	Interval   time.Duration `yaml:"interval" json:"interval"`
	Duration   time.Duration `yaml:"duration" json:"duration"`
	Blendshape string        `yaml:"blendshape" json:"blendshape"`
}

// DefaultBlinkConfig blinks for 200ms every 3s.
func DefaultBlinkConfig() BlinkConfig {
	return BlinkConfig{
		Interval:   3 * time.Second,
		Duration:   200 * time.Millisecond,
		Blendshape: "eyeBlink",
	}
}

// Blinker closes the avatar's eyes on a free-running timer, regardless of
// whether anyone is detected.
type Blinker struct {
	rig    Rig
	cfg    BlinkConfig
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	blinks atomic.Uint64
}

// NewBlinker creates a stopped blinker.
func NewBlinker(rig Rig, cfg BlinkConfig, logger *slog.Logger) *Blinker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Blinker{rig: rig, cfg: cfg, logger: logger}
}

// Start begins blinking until Stop or ctx is done.
func (b *Blinker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(ctx, b.done)
	return nil
}

func (b *Blinker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer b.set(0)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b.set(1)
		b.blinks.Add(1)

		open := time.NewTimer(b.cfg.Duration)
		select {
		case <-ctx.Done():
			open.Stop()
			return
		case <-open.C:
		}
		b.set(0)
	}
}

func (b *Blinker) set(w float64) {
	if err := b.rig.SetBlendshape(b.cfg.Blendshape, w); err != nil {
		b.logger.Debug("blink skipped", "error", err)
	}
}

// Stop ends blinking, leaving the eyes open. Safe to call more than once.
func (b *Blinker) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the blinker is active.
func (b *Blinker) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancel != nil
}

// Blinks returns how many blinks have started.
func (b *Blinker) Blinks() uint64 { return b.blinks.Load() }
