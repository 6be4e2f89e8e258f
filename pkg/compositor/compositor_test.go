package compositor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facefx/pkg/detection"
	"github.com/teslashibe/go-facefx/pkg/landmark"
)

type fakeImages map[string]image.Image

func (f fakeImages) Peek(uri string) (image.Image, bool) {
	img, ok := f[uri]
	return img, ok
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	green = color.RGBA{0, 255, 0, 255}
)

func testFilters() map[string]FilterSpec {
	filters := DefaultFilters()
	for name, spec := range filters {
		spec.URI = "test:" + name
		filters[name] = spec
	}
	return filters
}

func newTestCompositor(images fakeImages) *Compositor {
	return New(NewCanvas(640, 480), landmark.Face5, images, testFilters(), nil)
}

func pixel(c *Compositor, x, y int) color.RGBA {
	img, _ := c.Canvas().Snapshot()
	return img.RGBAAt(x, y)
}

func TestOverlayRect_Glasses(t *testing.T) {
	face := detection.SyntheticFace(landmark.Face5)
	spec := DefaultFilters()["glasses"]

	rect, ok := OverlayRect(face, landmark.Face5, spec, 210, 70, 640, 480)
	require.True(t, ok)

	// Eyes at x=0.42/0.58 of 640 are 102.4px apart; no between-eyes point
	// in Face5 so the eye line at y=192 centres the overlay.
	assert.InDelta(t, 215.04, rect.W, 1e-9)
	assert.InDelta(t, 71.68, rect.H, 1e-9)
	assert.InDelta(t, 212.48, rect.X, 1e-9)
	assert.InDelta(t, 156.16, rect.Y, 1e-9)
}

func TestOverlayRect_Deterministic(t *testing.T) {
	face := detection.SyntheticFace(landmark.FaceMesh)
	for name, spec := range DefaultFilters() {
		a, okA := OverlayRect(face, landmark.FaceMesh, spec, 300, 100, 1280, 720)
		b, okB := OverlayRect(face.Clone(), landmark.FaceMesh, spec, 300, 100, 1280, 720)
		require.True(t, okA, name)
		assert.Equal(t, okA, okB, name)
		assert.Equal(t, a, b, name)
		assert.Equal(t, a.Bounds(), b.Bounds(), name)
	}
}

func TestOverlayRect_VerticalAnchor(t *testing.T) {
	face := detection.SyntheticFace(landmark.FaceMesh)
	spec := DefaultFilters()["hat"]

	rect, ok := OverlayRect(face, landmark.FaceMesh, spec, 260, 180, 640, 480)
	require.True(t, ok)

	// Forehead at y=0.28 of 480, shifted up 0.75 of the hat height
	wantY := 0.28*480 - rect.H/2 - 0.75*rect.H
	assert.InDelta(t, wantY, rect.Y, 1e-9)
}

func TestOverlayRect_Rejects(t *testing.T) {
	face := detection.SyntheticFace(landmark.Face5)
	spec := DefaultFilters()["glasses"]

	_, ok := OverlayRect(nil, landmark.Face5, spec, 210, 70, 640, 480)
	assert.False(t, ok, "nil set")

	_, ok = OverlayRect(face, landmark.Face5, spec, 0, 70, 640, 480)
	assert.False(t, ok, "zero-width asset")

	_, ok = OverlayRect(face[:2], landmark.Face5, DefaultFilters()["mustache"], 160, 50, 640, 480)
	assert.False(t, ok, "missing mouth anchors")

	collapsed := face.Clone()
	collapsed[1] = collapsed[0]
	_, ok = OverlayRect(collapsed, landmark.Face5, spec, 210, 70, 640, 480)
	assert.False(t, ok, "coincident anchors")
}

func TestRender_LayerOrder(t *testing.T) {
	images := fakeImages{
		"bg":           solid(64, 48, blue),
		"test:glasses": solid(210, 70, red),
	}
	c := newTestCompositor(images)

	res := c.Render(Scene{Background: "bg"})
	assert.True(t, res.Background)
	assert.Equal(t, blue, pixel(c, 10, 10), "background stretched to canvas")

	camera := solid(320, 240, green)
	res = c.Render(Scene{
		Camera:     camera,
		Background: "bg",
		Landmarks:  detection.SyntheticFace(landmark.Face5),
		Opacity:    1,
		Filter:     "glasses",
	})
	require.True(t, res.Overlay)
	assert.Equal(t, green, pixel(c, 10, 10), "camera covers background")

	center := res.Rect.Bounds()
	cx, cy := (center.Min.X+center.Max.X)/2, (center.Min.Y+center.Max.Y)/2
	assert.Equal(t, red, pixel(c, cx, cy), "overlay on top")
}

func TestRender_NoOverlayWithoutLandmarksOrOpacity(t *testing.T) {
	images := fakeImages{"test:glasses": solid(210, 70, red)}
	c := newTestCompositor(images)
	camera := solid(64, 48, green)
	face := detection.SyntheticFace(landmark.Face5)

	tests := []struct {
		name  string
		scene Scene
	}{
		{"no landmarks", Scene{Camera: camera, Opacity: 1, Filter: "glasses"}},
		{"zero opacity", Scene{Camera: camera, Landmarks: face, Opacity: 0, Filter: "glasses"}},
		{"filter none", Scene{Camera: camera, Landmarks: face, Opacity: 1, Filter: FilterNone}},
		{"unknown filter", Scene{Camera: camera, Landmarks: face, Opacity: 1, Filter: "monocle"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := c.Render(tc.scene)
			assert.False(t, res.Overlay)
			assert.Equal(t, green, pixel(c, 320, 192), "no overlay pixels")
		})
	}
}

func TestRender_PendingAssetSkipped(t *testing.T) {
	images := fakeImages{}
	c := newTestCompositor(images)
	scene := Scene{
		Camera:     solid(64, 48, green),
		Landmarks:  detection.SyntheticFace(landmark.Face5),
		Opacity:    1,
		Filter:     "glasses",
		Background: "bg-not-loaded",
	}

	res := c.Render(scene)
	assert.False(t, res.Overlay)
	assert.False(t, res.Background)
	assert.Equal(t, uint64(2), c.Stats().Pending)

	// Asset arrives; next frame draws it
	images["test:glasses"] = solid(210, 70, red)
	res = c.Render(scene)
	assert.True(t, res.Overlay)
}

func TestRender_OpacityBlends(t *testing.T) {
	images := fakeImages{"test:glasses": solid(210, 70, red)}
	c := newTestCompositor(images)

	res := c.Render(Scene{
		Camera:    solid(64, 48, color.RGBA{0, 0, 0, 255}),
		Landmarks: detection.SyntheticFace(landmark.Face5),
		Opacity:   0.5,
		Filter:    "glasses",
	})
	require.True(t, res.Overlay)

	b := res.Rect.Bounds()
	p := pixel(c, (b.Min.X+b.Max.X)/2, (b.Min.Y+b.Max.Y)/2)
	assert.InDelta(t, 128, int(p.R), 2)
	assert.Equal(t, uint8(255), p.A)
}

func TestRender_FilterSwitchTakesEffectNextFrame(t *testing.T) {
	images := fakeImages{"test:glasses": solid(210, 70, red)}
	c := newTestCompositor(images)
	scene := Scene{
		Camera:    solid(64, 48, green),
		Landmarks: detection.SyntheticFace(landmark.Face5),
		Opacity:   1,
		Filter:    "glasses",
	}

	require.True(t, c.Render(scene).Overlay)

	scene.Filter = FilterNone
	assert.False(t, c.Render(scene).Overlay)
	assert.Equal(t, green, pixel(c, 320, 192))
	assert.Equal(t, uint64(1), c.Stats().Overlays)
}

func TestCanvas_SnapshotIsCopy(t *testing.T) {
	canvas := NewCanvas(4, 4)
	canvas.Draw(func(dst *image.RGBA) { dst.SetRGBA(0, 0, red) })

	snap, seq := canvas.Snapshot()
	assert.Equal(t, uint64(1), seq)

	canvas.Draw(func(dst *image.RGBA) { dst.SetRGBA(0, 0, blue) })
	assert.Equal(t, red, snap.RGBAAt(0, 0))

	raw := make([]byte, 4*4*4)
	assert.Equal(t, uint64(2), canvas.CopyPix(raw))
	assert.Equal(t, []byte{0, 0, 255, 255}, raw[:4])
}
