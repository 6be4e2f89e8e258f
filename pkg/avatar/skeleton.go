package avatar

import (
	"fmt"
	"sync"
)

// Skeleton is an in-memory Rig. Joint rotations are stored on top of the
// rest pose set by the avatar's pose corrections. Safe for concurrent use.
type Skeleton struct {
	name string

	mu          sync.RWMutex
	rest        map[string]Euler
	joints      map[string]Euler
	blendshapes map[string]float64
	seq         uint64
}

// NewSkeleton builds the rig for an avatar and applies its pose
// corrections as the rest pose.
func NewSkeleton(a *Avatar) (*Skeleton, error) {
	s := &Skeleton{
		name:        a.Name,
		rest:        make(map[string]Euler, len(a.Joints)),
		joints:      make(map[string]Euler, len(a.Joints)),
		blendshapes: make(map[string]float64, len(a.Blendshapes)),
	}
	for _, j := range a.Joints {
		s.rest[j] = Euler{}
		s.joints[j] = Euler{}
	}
	for _, b := range a.Blendshapes {
		s.blendshapes[b] = 0
	}

	for joint, offset := range a.PoseCorrections {
		if _, ok := s.rest[joint]; !ok {
			return nil, fmt.Errorf("%w: pose correction for %q", ErrUnknownJoint, joint)
		}
		s.rest[joint] = offset
		s.joints[joint] = offset
	}
	return s, nil
}

// SetJointRotation sets joint to its rest pose plus rot.
func (s *Skeleton) SetJointRotation(joint string, rot Euler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rest, ok := s.rest[joint]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJoint, joint)
	}
	s.joints[joint] = rest.Add(rot)
	s.seq++
	return nil
}

// SetBlendshape sets a blendshape weight, clamped to [0,1].
func (s *Skeleton) SetBlendshape(name string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blendshapes[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBlendshape, name)
	}
	s.blendshapes[name] = clamp(weight, 0, 1)
	s.seq++
	return nil
}

// Joint returns a joint's current rotation.
func (s *Skeleton) Joint(name string) (Euler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.joints[name]
	return e, ok
}

// Blendshape returns a blendshape's current weight.
func (s *Skeleton) Blendshape(name string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.blendshapes[name]
	return w, ok
}

// Snapshot returns a copy of the current state.
func (s *Skeleton) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Avatar:      s.name,
		Joints:      make(map[string]Euler, len(s.joints)),
		Blendshapes: make(map[string]float64, len(s.blendshapes)),
		Seq:         s.seq,
	}
	for k, v := range s.joints {
		snap.Joints[k] = v
	}
	for k, v := range s.blendshapes {
		snap.Blendshapes[k] = v
	}
	return snap
}

var _ Rig = (*Skeleton)(nil)
