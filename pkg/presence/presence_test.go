package presence

import (
	"math"
	"testing"
	"time"
)

func TestTracker_InitialLost(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	if tr.State() != Lost {
		t.Errorf("initial state: got %v, want lost", tr.State())
	}
	if tr.Opacity() != 0 {
		t.Errorf("initial opacity: got %v, want 0", tr.Opacity())
	}

	// Advancing without ever detecting stays Lost
	if s := tr.Advance(time.Now()); s != Lost {
		t.Errorf("advance before first detection: got %v", s)
	}
}

func TestEvaluate(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		elapsed time.Duration
		state   State
		opacity float64
	}{
		{"just detected", 0, Active, 1},
		{"inside active window", 200 * time.Millisecond, Active, 1},
		{"grace", 2 * time.Second, Grace, 1},
		{"end of hold", 5 * time.Second, Grace, 1},
		{"quarter fade", 5250 * time.Millisecond, Fading, 0.75},
		{"half fade", 5500 * time.Millisecond, Fading, 0.5},
		{"end of fade", 6 * time.Second, Fading, 0},
		{"lost", 6001 * time.Millisecond, Lost, 0},
		{"long gone", time.Minute, Lost, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state, opacity := Evaluate(cfg, tc.elapsed)
			if state != tc.state {
				t.Errorf("state: got %v, want %v", state, tc.state)
			}
			if math.Abs(opacity-tc.opacity) > 1e-9 {
				t.Errorf("opacity: got %v, want %v", opacity, tc.opacity)
			}
		})
	}
}

func TestEvaluate_NonIncreasingAfterHold(t *testing.T) {
	cfg := DefaultConfig()
	prev := 1.0
	for e := cfg.Hold; e <= cfg.Hold+cfg.Fade+time.Second; e += 10 * time.Millisecond {
		_, opacity := Evaluate(cfg, e)
		if opacity > prev {
			t.Fatalf("opacity increased at %v: %v > %v", e, opacity, prev)
		}
		prev = opacity
	}
}

func TestTracker_ObserveResetsFromAnyState(t *testing.T) {
	cfg := DefaultConfig()
	start := time.Unix(1000, 0)

	for _, gap := range []time.Duration{3 * time.Second, 5500 * time.Millisecond, 30 * time.Second} {
		tr := NewTracker(cfg)
		tr.Observe(start)
		tr.Advance(start.Add(gap))

		tr.Observe(start.Add(gap))
		if tr.State() != Active {
			t.Errorf("gap %v: state after observe %v, want active", gap, tr.State())
		}
		if tr.Opacity() != 1 {
			t.Errorf("gap %v: opacity after observe %v, want 1", gap, tr.Opacity())
		}
	}
}

func TestTracker_KeepLandmarks(t *testing.T) {
	cfg := DefaultConfig()
	start := time.Unix(0, 0)
	tr := NewTracker(cfg)

	if tr.KeepLandmarks() {
		t.Error("lost tracker should not keep landmarks")
	}

	tr.Observe(start)
	tr.Advance(start.Add(5500 * time.Millisecond))
	if !tr.KeepLandmarks() {
		t.Error("fading tracker should keep landmarks")
	}

	tr.Advance(start.Add(7 * time.Second))
	if tr.KeepLandmarks() {
		t.Error("lost tracker should drop landmarks")
	}
}

// Detection succeeds every tick for 2s then fails for 6s.
func TestTracker_DetectThenLose(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTracker(cfg)
	start := time.Unix(0, 0)
	tick := 10 * time.Millisecond

	for at := time.Duration(0); at <= 8*time.Second+tick; at += tick {
		now := start.Add(at)
		if at <= 2*time.Second {
			tr.Observe(now)
		} else {
			tr.Advance(now)
		}

		var want float64
		switch {
		case at <= 7*time.Second: // detecting, then grace until 5s after the last hit
			want = 1
		case at <= 8*time.Second:
			want = 1 - float64(at-7*time.Second)/float64(cfg.Fade)
		default:
			want = 0
		}

		if math.Abs(tr.Opacity()-want) > 1e-9 {
			t.Fatalf("t=%v: opacity %v, want %v", at, tr.Opacity(), want)
		}
	}

	if tr.State() != Lost {
		t.Errorf("final state: got %v, want lost", tr.State())
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Fade = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero fade")
	}

	bad = DefaultConfig()
	bad.Hold = 10 * time.Millisecond
	if err := bad.Validate(); err == nil {
		t.Error("expected error for hold shorter than active window")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Observe(time.Now())
	tr.Reset()

	if tr.State() != Lost || tr.Opacity() != 0 {
		t.Errorf("after reset: %v %v", tr.State(), tr.Opacity())
	}
	if _, seen := tr.LastDetected(); seen {
		t.Error("reset should forget the last detection")
	}
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, st := range []State{Lost, Active, Grace, Fading} {
		b, err := st.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var got State
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != st {
			t.Errorf("round trip %v = %v", st, got)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("dozing")); err == nil {
		t.Error("expected error for unknown state")
	}
}
