// Package compositor draws the layered output frame: background, live
// camera, then a landmark-anchored overlay faded by presence opacity.
package compositor

import (
	"image"
	"image/color"
	"log/slog"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// ImageSource returns decoded images that are ready, without blocking.
// *assets.Cache[image.Image] satisfies it.
type ImageSource interface {
	Peek(uri string) (image.Image, bool)
}

// Scene is everything one frame needs.
type Scene struct {
	Camera     image.Image  // live frame, nil before the first frame
	Landmarks  landmark.Set // smoothed set, nil when absent
	Opacity    float64      // overlay alpha from presence
	Background string       // background URI, "" for none
	Filter     string       // filter name, "" or FilterNone for none
}

// Result reports what was drawn.
type Result struct {
	Background bool
	Overlay    bool
	Rect       Rect
}

// Stats counts compositor activity.
type Stats struct {
	Frames   uint64 `json:"frames"`
	Overlays uint64 `json:"overlays"`
	Pending  uint64 `json:"pending"` // frames whose selected asset was not ready
}

// Compositor renders scenes onto a canvas.
type Compositor struct {
	canvas  *Canvas
	topo    landmark.Topology
	images  ImageSource
	filters map[string]FilterSpec
	scaler  draw.Scaler
	logger  *slog.Logger

	frames   atomic.Uint64
	overlays atomic.Uint64
	pending  atomic.Uint64
}

// New creates a compositor. filters defaults to DefaultFilters.
func New(canvas *Canvas, topo landmark.Topology, images ImageSource, filters map[string]FilterSpec, logger *slog.Logger) *Compositor {
	if filters == nil {
		filters = DefaultFilters()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		canvas:  canvas,
		topo:    topo,
		images:  images,
		filters: filters,
		scaler:  draw.BiLinear,
		logger:  logger,
	}
}

// Canvas returns the output canvas.
func (c *Compositor) Canvas() *Canvas { return c.canvas }

// Filters returns the overlay catalog.
func (c *Compositor) Filters() map[string]FilterSpec { return c.filters }

// Render draws one frame. Assets that are not ready are skipped and picked
// up on a later frame once loaded.
func (c *Compositor) Render(scene Scene) Result {
	var res Result
	c.canvas.Draw(func(dst *image.RGBA) {
		res = c.draw(dst, scene)
	})
	c.frames.Add(1)
	if res.Overlay {
		c.overlays.Add(1)
	}
	return res
}

func (c *Compositor) draw(dst *image.RGBA, scene Scene) Result {
	var res Result
	bounds := dst.Bounds()

	draw.Draw(dst, bounds, image.Transparent, image.Point{}, draw.Src)

	if scene.Background != "" {
		if bg, ok := c.images.Peek(scene.Background); ok {
			c.scaler.Scale(dst, bounds, bg, bg.Bounds(), draw.Over, nil)
			res.Background = true
		} else {
			c.pending.Add(1)
		}
	}

	if scene.Camera != nil {
		c.scaler.Scale(dst, bounds, scene.Camera, scene.Camera.Bounds(), draw.Over, nil)
	}

	if scene.Opacity <= 0 || scene.Landmarks == nil || scene.Filter == "" || scene.Filter == FilterNone {
		return res
	}
	spec, ok := c.filters[scene.Filter]
	if !ok {
		return res
	}
	overlay, ok := c.images.Peek(spec.URI)
	if !ok {
		c.pending.Add(1)
		return res
	}

	ob := overlay.Bounds()
	rect, ok := OverlayRect(scene.Landmarks, c.topo, spec, ob.Dx(), ob.Dy(), bounds.Dx(), bounds.Dy())
	if !ok {
		return res
	}
	r := rect.Bounds()
	if r.Empty() || !r.Overlaps(bounds) {
		return res
	}

	scaled := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	c.scaler.Scale(scaled, scaled.Bounds(), overlay, ob, draw.Src, nil)

	opacity := min(scene.Opacity, 1)
	mask := image.NewUniform(color.Alpha16{A: uint16(opacity * 0xffff)})
	draw.DrawMask(dst, r, scaled, image.Point{}, mask, image.Point{}, draw.Over)

	res.Overlay = true
	res.Rect = rect
	return res
}

// Stats returns a snapshot of the counters.
func (c *Compositor) Stats() Stats {
	return Stats{
		Frames:   c.frames.Load(),
		Overlays: c.overlays.Load(),
		Pending:  c.pending.Load(),
	}
}
