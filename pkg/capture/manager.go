package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-facefx/pkg/audioio"
)

// Frame is the most recent camera image.
type Frame struct {
	Image *image.RGBA
	Seq   uint64
	At    time.Time
}

// MicOpener creates a microphone source.
type MicOpener func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error)

// Option configures a Manager.
type Option func(*Manager)

// WithCameraOpener replaces the camera factory.
func WithCameraOpener(open CameraOpener) Option {
	return func(m *Manager) { m.openCamera = open }
}

// WithMicOpener replaces the microphone factory.
func WithMicOpener(open MicOpener) Option {
	return func(m *Manager) { m.openMic = open }
}

// Stats counts capture activity.
type Stats struct {
	Open       bool   `json:"open"`
	Camera     string `json:"camera"`
	Microphone string `json:"microphone,omitempty"`
	Frames     uint64 `json:"frames"`
	ReadErrors uint64 `json:"read_errors"`
}

// Manager acquires the camera and optional microphone and keeps the latest
// frame available to readers. The render loop and recorder read from it
// but never acquire devices themselves.
type Manager struct {
	cfg        Config
	logger     *slog.Logger
	openCamera CameraOpener
	openMic    MicOpener

	mu     sync.Mutex
	open   bool
	closed bool
	cam    Camera
	mic    audioio.Source
	cancel context.CancelFunc
	done   chan struct{}

	latest     atomic.Pointer[Frame]
	frames     atomic.Uint64
	readErrors atomic.Uint64
}

// NewManager creates a manager. Devices are not touched until Open.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		openCamera: OpenCamera,
		openMic:    audioio.NewSource,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open acquires the camera, then the microphone if enabled, and starts
// reading frames. On any failure everything already acquired is released.
// Permission problems are reported as ErrPermissionDenied.
func (m *Manager) Open(ctx context.Context) (err error) {
	if errs := m.cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid capture config: %v", errs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.open {
		return ErrAlreadyOpen
	}

	cam, err := m.openCamera(m.cfg)
	if err != nil {
		return fmt.Errorf("open camera: %w", classify(err))
	}
	defer func() {
		if err != nil {
			cam.Close()
		}
	}()

	var mic audioio.Source
	if m.cfg.Microphone {
		mic, err = m.openMic(m.cfg.Audio, m.logger)
		if err != nil {
			return fmt.Errorf("open microphone: %w", classify(err))
		}
		// The microphone lives until Close, not until ctx ends.
		if err = mic.Start(context.WithoutCancel(ctx)); err != nil {
			mic.Close()
			return fmt.Errorf("start microphone: %w", classify(err))
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cam = cam
	m.mic = mic
	m.cancel = cancel
	m.done = make(chan struct{})
	m.open = true

	go m.readLoop(loopCtx, cam, m.done)

	w, h := cam.Size()
	m.logger.Info("capture opened",
		"camera", cam.Name(),
		"width", w,
		"height", h,
		"microphone", mic != nil,
	)
	return nil
}

func (m *Manager) readLoop(ctx context.Context, cam Camera, done chan struct{}) {
	defer close(done)

	backoff := 10 * time.Millisecond
	for ctx.Err() == nil {
		img, err := cam.ReadFrame()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			if m.readErrors.Add(1)%100 == 1 {
				m.logger.Warn("camera read failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		seq := m.frames.Add(1)
		m.latest.Store(&Frame{Image: img, Seq: seq, At: time.Now()})
	}
}

// Latest returns the newest frame. ok is false until the first frame
// has been read.
func (m *Manager) Latest() (Frame, bool) {
	f := m.latest.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Ready reports whether at least one frame is available.
func (m *Manager) Ready() bool {
	return m.latest.Load() != nil
}

// Mic returns the microphone source, or nil when disabled or not open.
func (m *Manager) Mic() audioio.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mic
}

// Size returns the camera frame size, or the configured size before Open.
func (m *Manager) Size() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cam != nil {
		return m.cam.Size()
	}
	return m.cfg.Width, m.cfg.Height
}

// Stats returns a snapshot of capture activity.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := Stats{Open: m.open}
	if m.cam != nil {
		s.Camera = m.cam.Name()
	}
	if m.mic != nil {
		s.Microphone = m.mic.Name()
	}
	m.mu.Unlock()

	s.Frames = m.frames.Load()
	s.ReadErrors = m.readErrors.Load()
	return s
}

// Close stops reading and releases both devices. It is safe to call more
// than once and on a manager that never opened.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	wasOpen := m.open
	m.open = false
	cam, mic, cancel, done := m.cam, m.mic, m.cancel, m.done
	m.mu.Unlock()

	if !wasOpen {
		return nil
	}

	cancel()
	var errs []error
	if err := cam.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}
	<-done

	if mic != nil {
		if err := mic.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close microphone: %w", err))
		}
	}

	m.logger.Info("capture closed", "frames", m.frames.Load())
	return errors.Join(errs...)
}
