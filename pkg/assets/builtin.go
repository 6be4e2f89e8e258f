package assets

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"time"
)

// Builtin assets are drawn in-process so the demo runs without asset files.
var (
	builtinImages = map[string]func() image.Image{
		"glasses":  drawGlasses,
		"hat":      drawHat,
		"mustache": drawMustache,
		"bg1":      func() image.Image { return drawGradient(color.NRGBA{20, 30, 80, 255}, color.NRGBA{120, 40, 140, 255}) },
		"bg2":      func() image.Image { return drawGradient(color.NRGBA{10, 90, 60, 255}, color.NRGBA{200, 220, 120, 255}) },
	}

	builtinAudio = map[string]func() *AudioClip{
		"track1": func() *AudioClip { return synthArpeggio([]float64{261.63, 329.63, 392.00, 523.25}, 4*time.Second) },
		"track2": func() *AudioClip { return synthArpeggio([]float64{220.00, 277.18, 329.63, 440.00}, 4*time.Second) },
	}
)

// BuiltinImage returns a generated image by name.
func BuiltinImage(name string) (image.Image, error) {
	gen, ok := builtinImages[name]
	if !ok {
		return nil, fmt.Errorf("%w: builtin image %q", ErrNotFound, name)
	}
	return gen(), nil
}

// BuiltinAudio returns a generated clip by name.
func BuiltinAudio(name string) (*AudioClip, error) {
	gen, ok := builtinAudio[name]
	if !ok {
		return nil, fmt.Errorf("%w: builtin audio %q", ErrNotFound, name)
	}
	return gen(), nil
}

// BuiltinNames lists generated assets, images first.
func BuiltinNames() (images, audio []string) {
	for name := range builtinImages {
		images = append(images, name)
	}
	for name := range builtinAudio {
		audio = append(audio, name)
	}
	sort.Strings(images)
	sort.Strings(audio)
	return images, audio
}

func fillEllipse(img *image.NRGBA, cx, cy, rx, ry float64, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			dy := (float64(y) + 0.5 - cy) / ry
			if dx*dx+dy*dy <= 1 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// drawGlasses is 210x70: two lenses joined by a bridge.
func drawGlasses() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 210, 70))
	frame := color.NRGBA{15, 15, 15, 255}
	lens := color.NRGBA{40, 60, 90, 200}
	fillEllipse(img, 55, 35, 45, 30, frame)
	fillEllipse(img, 155, 35, 45, 30, frame)
	fillEllipse(img, 55, 35, 38, 23, lens)
	fillEllipse(img, 155, 35, 38, 23, lens)
	fillRect(img, image.Rect(98, 28, 112, 36), frame)
	return img
}

// drawHat is 260x180: a crown over a wide brim.
func drawHat() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 260, 180))
	felt := color.NRGBA{30, 25, 25, 255}
	band := color.NRGBA{160, 20, 30, 255}
	fillRect(img, image.Rect(55, 10, 205, 150), felt)
	fillRect(img, image.Rect(55, 115, 205, 135), band)
	fillEllipse(img, 130, 155, 128, 22, felt)
	return img
}

// drawMustache is 160x50.
func drawMustache() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 160, 50))
	hair := color.NRGBA{60, 35, 20, 255}
	fillEllipse(img, 50, 25, 48, 18, hair)
	fillEllipse(img, 110, 25, 48, 18, hair)
	return img
}

// drawGradient is a 640x480 vertical gradient.
func drawGradient(top, bottom color.NRGBA) image.Image {
	const w, h = 640, 480
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	lerp := func(a, b uint8, t float64) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*t) }
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h-1)
		c := color.NRGBA{lerp(top.R, bottom.R, t), lerp(top.G, bottom.G, t), lerp(top.B, bottom.B, t), 255}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// synthArpeggio plays notes in turn with a short attack and release.
func synthArpeggio(notes []float64, length time.Duration) *AudioClip {
	total := int(length.Seconds() * ClipSampleRate)
	per := total / len(notes)
	samples := make([]int16, total)
	for i := range samples {
		note := notes[min(i/per, len(notes)-1)]
		pos := i % per
		env := math.Min(1, math.Min(float64(pos)/480, float64(per-pos)/2400))
		v := 0.2 * env * math.Sin(2*math.Pi*note*float64(i)/ClipSampleRate)
		samples[i] = int16(v * 32767)
	}
	return &AudioClip{Samples: samples, SampleRate: ClipSampleRate}
}
