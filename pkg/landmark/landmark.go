// Package landmark defines the normalized landmark sets produced by
// face and pose detectors, the fixed index topologies of each model
// kind, and the temporal smoothing applied between frames.
package landmark

import "fmt"

// Landmark is one normalized point. X and Y are in [0,1] relative to the
// frame; Z is model-relative depth.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Set is the ordered landmark collection from a single detection.
// Semantic positions are fixed per model kind; see Topology.
type Set []Landmark

// Len returns the number of landmarks, treating nil as empty.
func (s Set) Len() int { return len(s) }

// At returns the landmark at index i. ok is false when the index is
// negative (role not provided by the topology) or out of range.
func (s Set) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(s) {
		return Landmark{}, false
	}
	return s[i], true
}

// Clone returns a copy that does not alias s.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Kind identifies which detector produced a set.
type Kind string

const (
	KindFaceMesh Kind = "face_mesh"
	KindPose     Kind = "pose"
	KindFace5    Kind = "face5"
)

// None marks a role the topology does not provide.
const None = -1

// Topology lists the fixed indices of the semantic roles used by the
// compositor and the avatar retargeter.
type Topology struct {
	Kind  Kind
	Count int

	RightEye      int
	LeftEye       int
	BetweenEyes   int
	Forehead      int
	NoseTip       int
	MouthRight    int
	MouthLeft     int
	RightEar      int
	LeftEar       int
	RightShoulder int
	LeftShoulder  int
	RightElbow    int
	LeftElbow     int
}

// FaceMesh is the 478-point face landmarker layout.
var FaceMesh = Topology{
	Kind:          KindFaceMesh,
	Count:         478,
	RightEye:      33,
	LeftEye:       263,
	BetweenEyes:   168,
	Forehead:      10,
	NoseTip:       1,
	MouthRight:    61,
	MouthLeft:     291,
	RightEar:      234,
	LeftEar:       454,
	RightShoulder: None,
	LeftShoulder:  None,
	RightElbow:    None,
	LeftElbow:     None,
}

// Pose is the 33-point body pose layout.
var Pose = Topology{
	Kind:          KindPose,
	Count:         33,
	RightEye:      5,
	LeftEye:       2,
	BetweenEyes:   None,
	Forehead:      None,
	NoseTip:       0,
	MouthRight:    10,
	MouthLeft:     9,
	RightEar:      8,
	LeftEar:       7,
	RightShoulder: 12,
	LeftShoulder:  11,
	RightElbow:    14,
	LeftElbow:     13,
}

// Face5 is the YuNet layout: two eyes, nose tip and two mouth corners.
// The eyes stand in for the ears as the lateral pair.
var Face5 = Topology{
	Kind:          KindFace5,
	Count:         5,
	RightEye:      0,
	LeftEye:       1,
	BetweenEyes:   None,
	Forehead:      None,
	NoseTip:       2,
	MouthRight:    3,
	MouthLeft:     4,
	RightEar:      0,
	LeftEar:       1,
	RightShoulder: None,
	LeftShoulder:  None,
	RightElbow:    None,
	LeftElbow:     None,
}

// TopologyFor returns the topology of a model kind.
func TopologyFor(kind Kind) (Topology, error) {
	switch kind {
	case KindFaceMesh:
		return FaceMesh, nil
	case KindPose:
		return Pose, nil
	case KindFace5:
		return Face5, nil
	default:
		return Topology{}, fmt.Errorf("unknown landmark kind %q", kind)
	}
}

// Role names a semantic position independent of the model kind.
type Role string

const (
	RoleRightEye      Role = "right_eye"
	RoleLeftEye       Role = "left_eye"
	RoleBetweenEyes   Role = "between_eyes"
	RoleForehead      Role = "forehead"
	RoleNoseTip       Role = "nose_tip"
	RoleMouthRight    Role = "mouth_right"
	RoleMouthLeft     Role = "mouth_left"
	RoleRightEar      Role = "right_ear"
	RoleLeftEar       Role = "left_ear"
	RoleRightShoulder Role = "right_shoulder"
	RoleLeftShoulder  Role = "left_shoulder"
	RoleRightElbow    Role = "right_elbow"
	RoleLeftElbow     Role = "left_elbow"
)

// Index returns the landmark index for role, or None.
func (t Topology) Index(role Role) int {
	switch role {
	case RoleRightEye:
		return t.RightEye
	case RoleLeftEye:
		return t.LeftEye
	case RoleBetweenEyes:
		return t.BetweenEyes
	case RoleForehead:
		return t.Forehead
	case RoleNoseTip:
		return t.NoseTip
	case RoleMouthRight:
		return t.MouthRight
	case RoleMouthLeft:
		return t.MouthLeft
	case RoleRightEar:
		return t.RightEar
	case RoleLeftEar:
		return t.LeftEar
	case RoleRightShoulder:
		return t.RightShoulder
	case RoleLeftShoulder:
		return t.LeftShoulder
	case RoleRightElbow:
		return t.RightElbow
	case RoleLeftElbow:
		return t.LeftElbow
	default:
		return None
	}
}

// Lookup returns the landmark for role in s.
func (t Topology) Lookup(s Set, role Role) (Landmark, bool) {
	return s.At(t.Index(role))
}
