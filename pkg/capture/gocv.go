package capture

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// GoCVCamera reads frames from a V4L2 or platform camera through OpenCV.
type GoCVCamera struct {
	device string
	mirror bool

	mu      sync.Mutex
	vc      *gocv.VideoCapture
	frame   gocv.Mat
	flipped gocv.Mat
	closed  bool
	width   int
	height  int
}

// devicePath returns the V4L2 node for a numeric device on Linux.
func devicePath(device string) (string, bool) {
	if n, err := strconv.Atoi(device); err == nil {
		return fmt.Sprintf("/dev/video%d", n), true
	}
	if len(device) > 5 && device[:5] == "/dev/" {
		return device, true
	}
	return "", false
}

// probeDevice checks the device node before OpenCV does, since OpenCV
// reports every failure as a bare false.
func probeDevice(device string) error {
	path, ok := devicePath(device)
	if !ok {
		return nil
	}
	if _, err := os.Stat("/dev"); err != nil {
		// Not a Linux device tree; let OpenCV decide
		return nil
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return classify(err)
	}
	return f.Close()
}

// OpenGoCVCamera opens cfg.Device and requests the configured resolution.
func OpenGoCVCamera(cfg Config) (*GoCVCamera, error) {
	if err := probeDevice(cfg.Device); err != nil {
		return nil, err
	}

	var id interface{} = cfg.Device
	if n, err := strconv.Atoi(cfg.Device); err == nil {
		id = n
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNoDevice, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s did not open", ErrNoDevice, cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &GoCVCamera{
		device:  cfg.Device,
		mirror:  cfg.Mirror,
		vc:      vc,
		frame:   gocv.NewMat(),
		flipped: gocv.NewMat(),
		width:   int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(vc.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// ReadFrame grabs the next frame and converts it to RGBA.
func (c *GoCVCamera) ReadFrame() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("read frame from %s failed", c.device)
	}

	src := c.frame
	if c.mirror {
		gocv.Flip(c.frame, &c.flipped, 1)
		src = c.flipped
	}

	img, err := src.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

// Size returns the negotiated frame size.
func (c *GoCVCamera) Size() (int, int) { return c.width, c.height }

// Name returns "gocv".
func (c *GoCVCamera) Name() string { return "gocv" }

// Close releases the device. A ReadFrame in progress finishes first.
func (c *GoCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	c.flipped.Close()
	return c.vc.Close()
}
