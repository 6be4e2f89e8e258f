package landmark

import "fmt"

// DefaultAlpha weights the new reading at 10%, giving heavy inertia.
const DefaultAlpha = 0.1

// Smooth blends raw into previous componentwise:
//
//	out[i] = alpha*raw[i] + (1-alpha)*previous[i]
//
// With no previous set, raw is returned unchanged. The two sets must have
// the same length; a mismatch means the model changed underneath the
// caller and is treated as a programming error.
func Smooth(raw, previous Set, alpha float64) Set {
	if previous == nil {
		return raw
	}
	if len(raw) != len(previous) {
		panic(fmt.Sprintf("landmark: smoothing sets of different length (%d vs %d)", len(raw), len(previous)))
	}

	out := make(Set, len(raw))
	for i := range raw {
		out[i] = Landmark{
			X: alpha*raw[i].X + (1-alpha)*previous[i].X,
			Y: alpha*raw[i].Y + (1-alpha)*previous[i].Y,
			Z: alpha*raw[i].Z + (1-alpha)*previous[i].Z,
		}
	}
	return out
}

// Smoother holds the last smoothed set between frames.
// It is owned by the render loop and is not safe for concurrent use.
type Smoother struct {
	alpha float64
	last  Set
}

// NewSmoother creates a smoother. alpha is clamped to [0,1].
func NewSmoother(alpha float64) *Smoother {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Smoother{alpha: alpha}
}

// Alpha returns the blend weight of new readings.
func (s *Smoother) Alpha() float64 { return s.alpha }

// Update blends raw into the held state and returns the new smoothed set.
func (s *Smoother) Update(raw Set) Set {
	s.last = Smooth(raw, s.last, s.alpha)
	return s.last
}

// Current returns the held smoothed set, or nil.
func (s *Smoother) Current() Set { return s.last }

// Reset discards the held set so stale geometry is never reused.
func (s *Smoother) Reset() { s.last = nil }
