package compositor

import (
	"image"
	"math"
	"sort"

	"github.com/teslashibe/go-facefx/pkg/landmark"
)

// FilterSpec places an overlay asset relative to landmark anchors.
//
// Width is the pixel distance between Left and Right times WidthScale;
// height follows the asset's aspect ratio. The overlay is centred
// horizontally on the anchor midpoint and vertically on Vertical (or the
// anchor midpoint when the topology lacks it), then shifted by
// VerticalOffset overlay heights.
type FilterSpec struct {
	Name           string        `yaml:"name" json:"name"`
	URI            string        `yaml:"uri" json:"uri"`
	Left           landmark.Role `yaml:"left" json:"left"`
	Right          landmark.Role `yaml:"right" json:"right"`
	Vertical       landmark.Role `yaml:"vertical" json:"vertical"`
	WidthScale     float64       `yaml:"width_scale" json:"width_scale"`
	VerticalOffset float64       `yaml:"vertical_offset" json:"vertical_offset"`
}

// FilterNone disables the overlay.
const FilterNone = "none"

// DefaultFilters returns the builtin overlay catalog.
func DefaultFilters() map[string]FilterSpec {
	return map[string]FilterSpec{
		"glasses": {
			Name:       "glasses",
			URI:        "builtin:glasses",
			Left:       landmark.RoleLeftEye,
			Right:      landmark.RoleRightEye,
			Vertical:   landmark.RoleBetweenEyes,
			WidthScale: 2.1,
		},
		"hat": {
			Name:           "hat",
			URI:            "builtin:hat",
			Left:           landmark.RoleLeftEye,
			Right:          landmark.RoleRightEye,
			Vertical:       landmark.RoleForehead,
			WidthScale:     2.6,
			VerticalOffset: -0.75,
		},
		"mustache": {
			Name:           "mustache",
			URI:            "builtin:mustache",
			Left:           landmark.RoleMouthLeft,
			Right:          landmark.RoleMouthRight,
			WidthScale:     1.6,
			VerticalOffset: -0.35,
		},
	}
}

// FilterNames returns the sorted names in a catalog.
func FilterNames(filters map[string]FilterSpec) []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rect is an overlay placement in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Bounds rounds r to integer pixels.
func (r Rect) Bounds() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.W)), y0+int(math.Round(r.H)))
}

// OverlayRect computes where spec's asset goes for a landmark set. It is a
// pure function of its inputs. ok is false when the set is absent, an
// anchor is missing or the result would be degenerate.
func OverlayRect(set landmark.Set, topo landmark.Topology, spec FilterSpec, assetW, assetH, canvasW, canvasH int) (Rect, bool) {
	if set == nil || assetW <= 0 || assetH <= 0 || spec.WidthScale <= 0 {
		return Rect{}, false
	}

	left, ok := topo.Lookup(set, spec.Left)
	if !ok {
		return Rect{}, false
	}
	right, ok := topo.Lookup(set, spec.Right)
	if !ok {
		return Rect{}, false
	}

	pl := left.ToPixel(canvasW, canvasH)
	pr := right.ToPixel(canvasW, canvasH)
	mid := landmark.Midpoint(pl, pr)

	w := landmark.Distance(pl, pr) * spec.WidthScale
	if w < 1 {
		return Rect{}, false
	}
	h := w * float64(assetH) / float64(assetW)

	cy := mid.Y
	if v, ok := topo.Lookup(set, spec.Vertical); ok {
		cy = v.ToPixel(canvasW, canvasH).Y
	}

	return Rect{
		X: mid.X - w/2,
		Y: cy - h/2 + spec.VerticalOffset*h,
		W: w,
		H: h,
	}, true
}
