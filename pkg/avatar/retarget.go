package avatar

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-facefx/pkg/landmark"
	"github.com/teslashibe/go-facefx/pkg/presence"
)

// Retargeter maps landmark geometry onto a rig through a mapping table.
type Retargeter struct {
	rig      Rig
	topo     landmark.Topology
	mappings []BoneMapping
	logger   *slog.Logger

	mu      sync.Mutex
	last    Signals
	applied uint64
	frozen  uint64
}

// NewRetargeter validates mappings (DefaultMappings when nil) and binds
// them to rig.
func NewRetargeter(rig Rig, topo landmark.Topology, mappings []BoneMapping, logger *slog.Logger) (*Retargeter, error) {
	if mappings == nil {
		mappings = DefaultMappings()
	}
	for _, m := range mappings {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retargeter{
		rig:      rig,
		topo:     topo,
		mappings: mappings,
		logger:   logger,
	}, nil
}

// Update drives the rig from set. Geometry channels only move while the
// subject is Active or in Grace; otherwise they hold their last pose.
// It reports whether the rig was updated.
func (r *Retargeter) Update(set landmark.Set, state presence.State) (bool, error) {
	if state != presence.Active && state != presence.Grace {
		r.mu.Lock()
		r.frozen++
		r.mu.Unlock()
		return false, nil
	}

	sig, ok := Measure(set, r.topo)
	if !ok {
		return false, nil
	}

	joints := make(map[string]Euler)
	var order []string
	for _, m := range r.mappings {
		v := m.Apply(sig.Value(m.Signal))
		if m.Joint != "" {
			if _, seen := joints[m.Joint]; !seen {
				order = append(order, m.Joint)
			}
			joints[m.Joint] = joints[m.Joint].With(m.Axis, v)
			continue
		}
		if err := r.rig.SetBlendshape(m.Blendshape, v); err != nil {
			return false, fmt.Errorf("retarget %s: %w", m.Signal, err)
		}
	}
	for _, j := range order {
		if err := r.rig.SetJointRotation(j, joints[j]); err != nil {
			return false, fmt.Errorf("retarget joint: %w", err)
		}
	}

	r.mu.Lock()
	r.last = sig
	r.applied++
	r.mu.Unlock()
	return true, nil
}

// LastSignals returns the most recently applied measurements.
func (r *Retargeter) LastSignals() Signals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// RetargetStats counts retargeter activity.
type RetargetStats struct {
	Applied uint64 `json:"applied"`
	Frozen  uint64 `json:"frozen"`
}

// Stats returns a snapshot of the counters.
func (r *Retargeter) Stats() RetargetStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RetargetStats{Applied: r.applied, Frozen: r.frozen}
}

// Rig returns the driven rig.
func (r *Retargeter) Rig() Rig { return r.rig }
