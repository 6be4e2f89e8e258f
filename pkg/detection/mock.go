package detection

import (
	"context"
	"image"
	"sync"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// Mock implements Model for testing and demos.
type Mock struct {
	// DetectFunc is called when DetectForVideo is invoked.
	DetectFunc func(frame image.Image, timestampMs int64) (Result, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu     sync.Mutex
	calls  []int64
	closed int
}

// NewMock returns a mock that always detects set.
func NewMock(set landmark.Set) *Mock {
	return &Mock{
		DetectFunc: func(image.Image, int64) (Result, error) {
			if set == nil {
				return Result{}, nil
			}
			return Result{Landmarks: []landmark.Set{set.Clone()}}, nil
		},
	}
}

// DetectForVideo records the timestamp and calls DetectFunc.
func (m *Mock) DetectForVideo(frame image.Image, timestampMs int64) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, timestampMs)
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn == nil {
		return Result{}, nil
	}
	return fn(frame, timestampMs)
}

// Close records the call and calls CloseFunc.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed++
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Calls returns the timestamps passed to DetectForVideo.
func (m *Mock) Calls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.calls))
	copy(out, m.calls)
	return out
}

// CloseCount returns how many times Close was called.
func (m *Mock) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockFactory returns a factory that hands out m.
func MockFactory(m *Mock) ModelFactory {
	return func(context.Context, ModelOptions) (Model, error) {
		return m, nil
	}
}

// SyntheticFace returns a centred, frontal landmark set for a topology,
// used by the demo backend and tests.
func SyntheticFace(topo landmark.Topology) landmark.Set {
	set := make(landmark.Set, topo.Count)
	for i := range set {
		set[i] = landmark.Landmark{X: 0.5, Y: 0.5}
	}
	place := func(idx int, x, y float64) {
		if idx >= 0 && idx < len(set) {
			set[idx] = landmark.Landmark{X: x, Y: y}
		}
	}
	place(topo.RightEye, 0.42, 0.40)
	place(topo.LeftEye, 0.58, 0.40)
	place(topo.BetweenEyes, 0.50, 0.40)
	place(topo.Forehead, 0.50, 0.28)
	place(topo.NoseTip, 0.50, 0.50)
	place(topo.MouthRight, 0.45, 0.56)
	place(topo.MouthLeft, 0.55, 0.56)
	if topo.RightEar != topo.RightEye {
		place(topo.RightEar, 0.36, 0.45)
		place(topo.LeftEar, 0.64, 0.45)
	}
	place(topo.RightShoulder, 0.35, 0.80)
	place(topo.LeftShoulder, 0.65, 0.80)
	place(topo.RightElbow, 0.30, 0.95)
	place(topo.LeftElbow, 0.70, 0.95)
	return set
}
