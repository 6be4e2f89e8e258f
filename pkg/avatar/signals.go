package avatar

import (
	"math"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// depthEpsilon is the smallest ear depth difference treated as real depth.
// Detectors without depth report Z as zero.
const depthEpsilon = 1e-6

// Signals are the raw measurements for one frame.
type Signals struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Mouth float64 `json:"mouth"`
}

// Value returns one signal by name.
func (s Signals) Value(sig Signal) float64 {
	switch sig {
	case SignalYaw:
		return s.Yaw
	case SignalPitch:
		return s.Pitch
	case SignalMouth:
		return s.Mouth
	default:
		return 0
	}
}

// Measure derives signals from a landmark set. ok is false when the set
// lacks the ears, nose or mouth corners.
//
// Yaw is the angle of the right-to-left ear vector in the X/Z plane. When
// the model gives no depth, it falls back to the nose's horizontal offset
// from the ear midpoint relative to half the ear span.
func Measure(set landmark.Set, topo landmark.Topology) (Signals, bool) {
	right, ok1 := topo.Lookup(set, landmark.RoleRightEar)
	left, ok2 := topo.Lookup(set, landmark.RoleLeftEar)
	nose, ok3 := topo.Lookup(set, landmark.RoleNoseTip)
	mouthR, ok4 := topo.Lookup(set, landmark.RoleMouthRight)
	mouthL, ok5 := topo.Lookup(set, landmark.RoleMouthLeft)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return Signals{}, false
	}

	dx := left.X - right.X
	dz := left.Z - right.Z

	var yaw float64
	if math.Abs(dz) > depthEpsilon {
		yaw = math.Atan2(dz, math.Abs(dx))
	} else if half := math.Abs(dx) / 2; half > 0 {
		mid := landmark.MidLandmark(left, right)
		yaw = math.Atan2(nose.X-mid.X, half)
	}

	mouth := landmark.MidLandmark(mouthL, mouthR)

	return Signals{
		Yaw:   yaw,
		Pitch: nose.Y - 0.5,
		Mouth: math.Abs(mouth.Y - nose.Y),
	}, true
}
