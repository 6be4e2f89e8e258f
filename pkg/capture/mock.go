package capture

import (
	"image"
	"image/color"
	"sync"
	"time"
)

// MockCamera renders a synthetic scene at the configured frame rate: a
// grey gradient with a skin-toned disc where a face would be.
type MockCamera struct {
	width    int
	height   int
	interval time.Duration

	mu     sync.Mutex
	closed bool
	frames int
	next   time.Time
	done   chan struct{}

	// ReadFunc overrides frame generation when set.
	ReadFunc func() (*image.RGBA, error)
}

// NewMockCamera creates a mock camera.
func NewMockCamera(cfg Config) *MockCamera {
	interval := time.Second / 30
	if cfg.Framerate > 0 {
		interval = time.Second / time.Duration(cfg.Framerate)
	}
	return &MockCamera{
		width:    cfg.Width,
		height:   cfg.Height,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// ReadFrame waits for the next frame slot and renders it.
func (m *MockCamera) ReadFrame() (*image.RGBA, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	now := time.Now()
	if m.next.IsZero() {
		m.next = now
	}
	wait := m.next.Sub(now)
	m.next = m.next.Add(m.interval)
	m.frames++
	n := m.frames
	fn := m.ReadFunc
	m.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-m.done:
			return nil, ErrClosed
		}
	}

	if fn != nil {
		return fn()
	}
	return m.render(n), nil
}

func (m *MockCamera) render(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		g := uint8(60 + 120*y/m.height)
		for x := 0; x < m.width; x++ {
			img.SetRGBA(x, y, color.RGBA{g, g, g, 255})
		}
	}

	// Face disc drifts slightly so consecutive frames differ
	cx := m.width/2 + (n%20 - 10)
	cy := m.height / 2
	r := m.height / 5
	skin := color.RGBA{224, 172, 140, 255}
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
				img.SetRGBA(x, y, skin)
			}
		}
	}
	return img
}

// Frames returns how many frames have been read.
func (m *MockCamera) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Closed reports whether Close has been called.
func (m *MockCamera) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Size returns the frame size.
func (m *MockCamera) Size() (int, int) { return m.width, m.height }

// Name returns "mock".
func (m *MockCamera) Name() string { return "mock" }

// Close stops frame delivery.
func (m *MockCamera) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
