package avatar

import (
	"fmt"
	"math"
)

// Signal is a geometric measurement derived from landmarks.
type Signal string

const (
	SignalYaw   Signal = "yaw"   // head turn, radians before sensitivity
	SignalPitch Signal = "pitch" // nose height offset from frame centre
	SignalMouth Signal = "mouth" // nose to mouth distance, normalized units
)

// BoneMapping routes one signal to a joint axis or a blendshape.
//
// The signal is first remapped from [InMin, InMax] to [0,1] when that
// range is set, then multiplied by Sensitivity and clamped to [Min, Max].
type BoneMapping struct {
	Signal      Signal  `json:"signal"`
	Joint       string  `json:"joint,omitempty"`
	Axis        Axis    `json:"axis,omitempty"`
	Blendshape  string  `json:"blendshape,omitempty"`
	Sensitivity float64 `json:"sensitivity"`
	InMin       float64 `json:"in_min,omitempty"`
	InMax       float64 `json:"in_max,omitempty"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

// Apply converts a raw signal value to the mapped output.
func (m BoneMapping) Apply(v float64) float64 {
	if m.InMax > m.InMin {
		v = remap(v, m.InMin, m.InMax)
	}
	return clamp(v*m.Sensitivity, m.Min, m.Max)
}

// Validate checks the mapping targets exactly one channel.
func (m BoneMapping) Validate() error {
	switch m.Signal {
	case SignalYaw, SignalPitch, SignalMouth:
	default:
		return fmt.Errorf("%w: unknown signal %q", ErrInvalidAvatar, m.Signal)
	}
	hasJoint := m.Joint != ""
	hasShape := m.Blendshape != ""
	if hasJoint == hasShape {
		return fmt.Errorf("%w: mapping for %s needs exactly one of joint or blendshape", ErrInvalidAvatar, m.Signal)
	}
	if hasJoint {
		switch m.Axis {
		case AxisX, AxisY, AxisZ:
		default:
			return fmt.Errorf("%w: mapping for %s has axis %q", ErrInvalidAvatar, m.Signal, m.Axis)
		}
	}
	if m.Min > m.Max {
		return fmt.Errorf("%w: mapping for %s has min > max", ErrInvalidAvatar, m.Signal)
	}
	return nil
}

// DefaultMappings returns the standard head and jaw table.
func DefaultMappings() []BoneMapping {
	return []BoneMapping{
		{
			Signal:      SignalYaw,
			Joint:       "Head",
			Axis:        AxisY,
			Sensitivity: 1.5,
			Min:         -math.Pi / 3,
			Max:         math.Pi / 3,
		},
		{
			Signal:      SignalPitch,
			Joint:       "Head",
			Axis:        AxisX,
			Sensitivity: 0.5 * math.Pi,
			Min:         -math.Pi / 4,
			Max:         math.Pi / 4,
		},
		{
			Signal:      SignalMouth,
			Blendshape:  "jawOpen",
			Sensitivity: 1,
			InMin:       0.02,
			InMax:       0.08,
			Min:         0,
			Max:         1,
		},
	}
}
