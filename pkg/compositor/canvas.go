package compositor

import (
	"image"
	"image/jpeg"
	"io"
	"sync"
)

// Canvas is the output surface. The render loop draws into it; the
// recorder and preview take copies.
type Canvas struct {
	mu  sync.RWMutex
	img *image.RGBA
	seq uint64
}

// NewCanvas creates a w×h canvas.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Draw runs fn with exclusive access to the pixels and bumps the frame
// sequence.
func (c *Canvas) Draw(fn func(dst *image.RGBA)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.img)
	c.seq++
}

// Seq returns the number of completed draws.
func (c *Canvas) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Snapshot returns a copy of the current pixels and their sequence number.
func (c *Canvas) Snapshot() (*image.RGBA, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := &image.RGBA{
		Pix:    make([]uint8, len(c.img.Pix)),
		Stride: c.img.Stride,
		Rect:   c.img.Rect,
	}
	copy(out.Pix, c.img.Pix)
	return out, c.seq
}

// CopyPix copies raw RGBA bytes into dst, which must hold w*h*4 bytes,
// and returns the sequence number of the copied frame.
func (c *Canvas) CopyPix(dst []byte) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	copy(dst, c.img.Pix)
	return c.seq
}

// EncodeJPEG writes the current frame as JPEG.
func (c *Canvas) EncodeJPEG(w io.Writer, quality int) error {
	img, _ := c.Snapshot()
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
