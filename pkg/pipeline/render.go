package pipeline

import (
	"sync/atomic"

	"github.com/teslashibe/go-facefx/pkg/avatar"
	"github.com/teslashibe/go-facefx/pkg/compositor"
)

// overlayRenderer draws the 2D filter scene.
type overlayRenderer struct {
	comp     *compositor.Compositor
	settings *settingsStore
}

func (r *overlayRenderer) Render(f Frame) error {
	s := r.settings.Load()
	r.comp.Render(compositor.Scene{
		Camera:     f.Camera,
		Landmarks:  f.Landmarks,
		Opacity:    f.Opacity,
		Background: s.Background,
		Filter:     s.Filter,
	})
	return nil
}

// avatarRenderer retargets the rig and sketches it onto the canvas.
type avatarRenderer struct {
	retargeter *avatar.Retargeter
	rig        avatar.Rig
	sketch     avatar.Sketch
	canvas     *compositor.Canvas
	last       atomic.Pointer[avatar.Snapshot]
}

func (r *avatarRenderer) Render(f Frame) error {
	if _, err := r.retargeter.Update(f.Landmarks, f.Presence); err != nil {
		return err
	}
	snap := r.rig.Snapshot()
	r.sketch.Render(r.canvas, snap)
	r.last.Store(&snap)
	return nil
}

func (r *avatarRenderer) snapshot() (avatar.Snapshot, bool) {
	p := r.last.Load()
	if p == nil {
		return avatar.Snapshot{}, false
	}
	return *p, true
}
