// Package avatar drives a skeletal, blendshape-based avatar from face
// landmarks: head yaw and pitch, jaw opening, and a free-running blink.
//
// Avatars are JSON documents listing joints, blendshapes and static pose
// corrections. The default avatar is embedded; custom ones load from disk.
package avatar

// Euler is a joint rotation in radians.
type Euler struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Axis selects one Euler component.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// With returns e with the axis component set to v.
func (e Euler) With(axis Axis, v float64) Euler {
	switch axis {
	case AxisX:
		e.X = v
	case AxisY:
		e.Y = v
	case AxisZ:
		e.Z = v
	}
	return e
}

// Add returns the componentwise sum.
func (e Euler) Add(o Euler) Euler {
	return Euler{X: e.X + o.X, Y: e.Y + o.Y, Z: e.Z + o.Z}
}

// Snapshot is the full rig state at one instant.
type Snapshot struct {
	Avatar      string             `json:"avatar"`
	Joints      map[string]Euler   `json:"joints"`
	Blendshapes map[string]float64 `json:"blendshapes"`
	Seq         uint64             `json:"seq"`
}

// Rig is a posable avatar.
type Rig interface {
	// SetJointRotation sets a joint's rotation on top of its rest pose.
	SetJointRotation(joint string, rot Euler) error

	// SetBlendshape sets a blendshape weight, clamped to [0,1].
	SetBlendshape(name string, weight float64) error

	// Snapshot returns a copy of the current state.
	Snapshot() Snapshot
}

// Document is the JSON form of an avatar.
type Document struct {
	// Description is a human-readable description of the avatar.
	Description string `json:"description"`

	// Joints are the named joints the rig exposes.
	Joints []string `json:"joints"`

	// Blendshapes are the morph target channels the rig exposes.
	Blendshapes []string `json:"blendshapes"`

	// PoseCorrections are static rest offsets, typically bringing arms
	// down from a T-pose. Applied once when the avatar is loaded.
	PoseCorrections map[string]Euler `json:"pose_corrections"`

	// Mappings override DefaultMappings when present.
	Mappings []BoneMapping `json:"mappings,omitempty"`
}

// Avatar is a loaded avatar document.
type Avatar struct {
	Name string
	Document
}
