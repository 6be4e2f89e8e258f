// Package pipeline runs the per-frame perception loop and owns the
// lifecycle of every device, model and session it touches.
//
// Each tick submits the newest camera frame to the detector (skipped while
// a call is in flight), folds any completed detection into the smoothed
// landmarks and presence state, then hands the result to a Renderer.
package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-facefx/pkg/capture"
	"github.com/teslashibe/go-facefx/pkg/detection"
	"github.com/teslashibe/go-facefx/pkg/landmark"
	"github.com/teslashibe/go-facefx/pkg/presence"
)

// FrameSource provides the latest camera frame.
type FrameSource interface {
	Latest() (capture.Frame, bool)
}

// Detector is the single-flight landmark detector.
type Detector interface {
	Submit(frame image.Image, timestampMs int64) bool
	Poll() (detection.Outcome, bool)
}

// Frame is what a renderer sees on one tick.
type Frame struct {
	Now       time.Time
	Camera    image.Image    // nil before the first camera frame
	Landmarks landmark.Set   // smoothed; nil when Lost or never detected
	Presence  presence.State // state after this tick
	Opacity   float64
}

// Renderer draws one tick's output.
type Renderer interface {
	Render(f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f Frame) error

// Render calls fn(f).
func (fn RendererFunc) Render(f Frame) error { return fn(f) }

// State is the loop's cross-tick state: the smoothed landmarks and the
// presence tracker. It is only touched by Tick.
type State struct {
	Smoother *landmark.Smoother
	Tracker  *presence.Tracker
}

// NewState creates empty state: no landmarks, presence Lost.
func NewState(alpha float64, cfg presence.Config) *State {
	return &State{
		Smoother: landmark.NewSmoother(alpha),
		Tracker:  presence.NewTracker(cfg),
	}
}

// Step folds one tick into the state. detected carries the raw set from a
// successful detection, or nil for a tick without one.
func (s *State) Step(now time.Time, detected landmark.Set) (landmark.Set, presence.State, float64) {
	if detected != nil {
		s.Smoother.Update(detected)
		s.Tracker.Observe(now)
	} else {
		s.Tracker.Advance(now)
		if !s.Tracker.KeepLandmarks() {
			s.Smoother.Reset()
		}
	}
	return s.Smoother.Current(), s.Tracker.State(), s.Tracker.Opacity()
}

// Reset returns the state to empty and Lost.
func (s *State) Reset() {
	s.Smoother.Reset()
	s.Tracker.Reset()
}

// LoopStats counts loop activity.
type LoopStats struct {
	Ticks        uint64         `json:"ticks"`
	Submitted    uint64         `json:"submitted"`
	Detections   uint64         `json:"detections"`
	RenderErrors uint64         `json:"render_errors"`
	Presence     presence.State `json:"presence"`
	Opacity      float64        `json:"opacity"`
}

// Loop drives the tick sequence. Tick may be called directly, with
// synthetic times, or Run drives it from a ticker.
type Loop struct {
	src      FrameSource
	det      Detector
	renderer Renderer
	state    *State
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	epoch   time.Time
	lastSeq uint64
	stats   LoopStats
}

// NewLoop creates a loop. det may be nil, in which case presence only
// advances.
func NewLoop(src FrameSource, det Detector, renderer Renderer, state *State, interval time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		src:      src,
		det:      det,
		renderer: renderer,
		state:    state,
		interval: interval,
		logger:   logger,
	}
}

// Tick runs one frame at now and returns what was rendered.
func (l *Loop) Tick(now time.Time) Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.epoch.IsZero() {
		l.epoch = now
	}
	l.stats.Ticks++

	var camera image.Image
	if frame, ok := l.src.Latest(); ok {
		camera = frame.Image
		if l.det != nil && frame.Seq != l.lastSeq {
			if l.det.Submit(frame.Image, now.Sub(l.epoch).Milliseconds()) {
				l.lastSeq = frame.Seq
				l.stats.Submitted++
			}
		}
	}

	var detected landmark.Set
	if l.det != nil {
		if out, ok := l.det.Poll(); ok && out.Detected() {
			detected = out.Landmarks
			l.stats.Detections++
		}
	}

	set, st, opacity := l.state.Step(now, detected)
	l.stats.Presence = st
	l.stats.Opacity = opacity

	f := Frame{
		Now:       now,
		Camera:    camera,
		Landmarks: set,
		Presence:  st,
		Opacity:   opacity,
	}
	if err := l.renderer.Render(f); err != nil {
		l.stats.RenderErrors++
		l.logger.Warn("render failed", "error", err)
	}
	return f
}

// Run ticks at the loop interval until ctx is done. No tick starts after
// Run returns.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("render loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("render loop stopped")
			return
		case now := <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			l.Tick(now)
		}
	}
}

// Stats returns a snapshot of loop counters.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
