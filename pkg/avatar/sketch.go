package avatar

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/teslashibe/go-facefx/pkg/compositor"
)

// ellipseSegments is the polygon resolution used for round shapes.
const ellipseSegments = 48

// Sketch renders a rig snapshot as a flat 2D figure: torso, head, eyes and
// jaw. Head yaw shifts the features sideways, pitch moves them vertically,
// jawOpen opens the mouth and eyeBlink closes the eyes.
type Sketch struct {
	Background color.RGBA
	Skin       color.RGBA
	Body       color.RGBA
	Feature    color.RGBA
}

// DefaultSketch returns the standard palette.
func DefaultSketch() Sketch {
	return Sketch{
		Background: color.RGBA{R: 24, G: 28, B: 40, A: 255},
		Skin:       color.RGBA{R: 236, G: 200, B: 170, A: 255},
		Body:       color.RGBA{R: 70, G: 110, B: 180, A: 255},
		Feature:    color.RGBA{R: 40, G: 30, B: 30, A: 255},
	}
}

// Render draws snap onto the canvas.
func (s Sketch) Render(c *compositor.Canvas, snap Snapshot) {
	c.Draw(func(dst *image.RGBA) {
		s.Draw(dst, snap)
	})
}

// Draw paints snap into dst, replacing its contents.
func (s Sketch) Draw(dst *image.RGBA, snap Snapshot) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(s.Background), image.Point{}, draw.Src)

	w, h := float64(b.Dx()), float64(b.Dy())
	yaw, pitch := headAngles(snap)
	jaw := snap.Blendshapes["jawOpen"]
	blink := snap.Blendshapes["eyeBlink"]

	r := math.Min(w, h) * 0.22
	cx := w / 2
	cy := h*0.42 + math.Sin(pitch)*r*0.5

	// Torso sits still; the head turns over it.
	s.fill(dst, s.Body, rectPath(cx-r*1.5, h*0.42+r*0.9, cx+r*1.5, h))
	s.fill(dst, s.Skin, ellipsePath(cx, h*0.42+r*0.9, r*0.35, r*0.3))
	s.fill(dst, s.Skin, ellipsePath(cx, cy, r*math.Max(0.7, math.Cos(yaw)), r*1.15))

	fx := cx + math.Sin(yaw)*r*0.6
	eyeDX := r * 0.38 * math.Cos(yaw)
	eyeY := cy - r*0.25
	eyeH := r * 0.12 * (1 - clamp(blink, 0, 1))
	if eyeH < 1 {
		eyeH = 1
	}
	s.fill(dst, s.Feature, ellipsePath(fx-eyeDX, eyeY, r*0.1, eyeH))
	s.fill(dst, s.Feature, ellipsePath(fx+eyeDX, eyeY, r*0.1, eyeH))

	s.fill(dst, s.Feature, ellipsePath(fx, cy+r*0.08, r*0.05, r*0.05))

	mouthH := r * (0.03 + 0.25*clamp(jaw, 0, 1))
	s.fill(dst, s.Feature, ellipsePath(fx, cy+r*0.5, r*0.3*math.Cos(yaw), mouthH))
}

// headAngles sums the head and neck rotations.
func headAngles(snap Snapshot) (yaw, pitch float64) {
	for _, j := range []string{"Neck", "Head"} {
		e := snap.Joints[j]
		yaw += e.Y
		pitch += e.X
	}
	return yaw, pitch
}

type point struct{ x, y float64 }

func ellipsePath(cx, cy, rx, ry float64) []point {
	pts := make([]point, ellipseSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / ellipseSegments
		pts[i] = point{cx + rx*math.Cos(a), cy + ry*math.Sin(a)}
	}
	return pts
}

func rectPath(x0, y0, x1, y1 float64) []point {
	return []point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func (s Sketch) fill(dst *image.RGBA, c color.RGBA, pts []point) {
	if len(pts) < 3 {
		return
	}
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(clamp(pts[0].x, 0, w)), float32(clamp(pts[0].y, 0, h)))
	for _, p := range pts[1:] {
		z.LineTo(float32(clamp(p.x, 0, w)), float32(clamp(p.y, 0, h)))
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}
