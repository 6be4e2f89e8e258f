// Package presence turns "time since the last successful detection" into
// an overlay opacity and a decision on whether held landmarks may still be
// drawn.
package presence

import (
	"fmt"
	"time"
)

// State is the presence of the tracked subject.
type State int

const (
	// Lost means no subject: opacity 0 and landmarks discarded.
	Lost State = iota
	// Active means a detection succeeded within ActiveWindow.
	Active
	// Grace holds the last landmarks at full opacity.
	Grace
	// Fading ramps opacity linearly down to 0.
	Fading
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Lost:
		return "lost"
	case Active:
		return "active"
	case Grace:
		return "grace"
	case Fading:
		return "fading"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name for JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{Lost, Active, Grace, Fading} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown presence state %q", b)
}

// Config holds presence timing.
type Config struct {
	ActiveWindow time.Duration `yaml:"active_window" json:"active_window"` // Detections this recent count as Active
	Hold         time.Duration `yaml:"hold" json:"hold"`                   // Full opacity until this much time has elapsed
	Fade         time.Duration `yaml:"fade" json:"fade"`                   // Linear fade length after Hold
}

// DefaultConfig returns the observed production timing: 5s hold, 1s fade.
func DefaultConfig() Config {
	return Config{
		ActiveWindow: 250 * time.Millisecond,
		Hold:         5 * time.Second,
		Fade:         1 * time.Second,
	}
}

// Validate checks the timing is usable.
func (c Config) Validate() error {
	if c.ActiveWindow < 0 {
		return fmt.Errorf("active_window must not be negative, got %v", c.ActiveWindow)
	}
	if c.Hold < c.ActiveWindow {
		return fmt.Errorf("hold (%v) must be at least active_window (%v)", c.Hold, c.ActiveWindow)
	}
	if c.Fade <= 0 {
		return fmt.Errorf("fade must be positive, got %v", c.Fade)
	}
	return nil
}

// Tracker is the presence state machine. It is driven by explicit
// timestamps so the render loop owns the clock.
// Not safe for concurrent use.
type Tracker struct {
	cfg          Config
	lastDetected time.Time
	seen         bool
	state        State
	opacity      float64
}

// NewTracker creates a tracker in the Lost state.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, state: Lost}
}

// Observe records a successful detection at now. The tracker returns to
// Active regardless of its current state.
func (t *Tracker) Observe(now time.Time) {
	t.lastDetected = now
	t.seen = true
	t.state = Active
	t.opacity = 1
}

// Advance moves the clock to now without a detection and returns the
// resulting state.
func (t *Tracker) Advance(now time.Time) State {
	if !t.seen {
		t.state = Lost
		t.opacity = 0
		return t.state
	}
	t.state, t.opacity = Evaluate(t.cfg, now.Sub(t.lastDetected))
	return t.state
}

// State returns the state as of the last Observe or Advance.
func (t *Tracker) State() State { return t.state }

// Opacity returns the overlay opacity in [0,1].
func (t *Tracker) Opacity() float64 { return t.opacity }

// KeepLandmarks reports whether held landmarks may still be drawn.
func (t *Tracker) KeepLandmarks() bool { return t.state != Lost }

// LastDetected returns the time of the last detection and whether there
// has been one.
func (t *Tracker) LastDetected() (time.Time, bool) { return t.lastDetected, t.seen }

// Reset returns the tracker to its initial Lost state.
func (t *Tracker) Reset() {
	*t = Tracker{cfg: t.cfg, state: Lost}
}

// Evaluate maps elapsed time since the last detection to a state and
// opacity. Opacity is 1 through Hold, falls linearly to exactly 0 at
// Hold+Fade, and the state becomes Lost strictly after that.
func Evaluate(cfg Config, elapsed time.Duration) (State, float64) {
	if elapsed < 0 {
		elapsed = 0
	}
	switch {
	case elapsed <= cfg.ActiveWindow:
		return Active, 1
	case elapsed <= cfg.Hold:
		return Grace, 1
	case elapsed <= cfg.Hold+cfg.Fade:
		opacity := 1 - float64(elapsed-cfg.Hold)/float64(cfg.Fade)
		if opacity < 0 {
			opacity = 0
		}
		return Fading, opacity
	default:
		return Lost, 0
	}
}
