package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/teslashibe/go-facefx/pkg/audioio"
)

func mockConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.Framerate = 100
	cfg.Audio.Backend = audioio.BackendMock
	return cfg
}

// countingMic wraps the mock source to observe Close calls.
type countingMic struct {
	*audioio.MockSource
	closes int
}

func (c *countingMic) Close() error {
	c.closes++
	return c.MockSource.Close()
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestManager_OpenReadClose(t *testing.T) {
	var cam *MockCamera
	var mic *countingMic
	m := NewManager(mockConfig(), nil,
		WithCameraOpener(func(cfg Config) (Camera, error) {
			cam = NewMockCamera(cfg)
			return cam, nil
		}),
		WithMicOpener(func(cfg audioio.Config, logger *slog.Logger) (audioio.Source, error) {
			mic = &countingMic{MockSource: audioio.NewMockSource(cfg, logger)}
			return mic, nil
		}),
	)

	if m.Ready() {
		t.Fatal("manager should not be ready before Open")
	}
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := m.Open(context.Background()); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("expected ErrAlreadyOpen, got %v", err)
	}

	waitUntil(t, m.Ready)
	frame, ok := m.Latest()
	if !ok || frame.Image.Bounds() != image.Rect(0, 0, 640, 480) || frame.Seq == 0 {
		t.Errorf("unexpected frame: %+v", frame)
	}
	if m.Mic() == nil {
		t.Error("microphone should be available")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if !cam.Closed() {
		t.Error("camera not released")
	}
	if mic.closes != 1 {
		t.Errorf("microphone closed %d times, want 1", mic.closes)
	}
	if err := m.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestManager_MicFailureReleasesCamera(t *testing.T) {
	var cam *MockCamera
	m := NewManager(mockConfig(), nil,
		WithCameraOpener(func(cfg Config) (Camera, error) {
			cam = NewMockCamera(cfg)
			return cam, nil
		}),
		WithMicOpener(func(audioio.Config, *slog.Logger) (audioio.Source, error) {
			return nil, fmt.Errorf("open /dev/snd: %w", os.ErrPermission)
		}),
	)
	defer m.Close()

	err := m.Open(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if !cam.Closed() {
		t.Error("camera must be released when the microphone fails")
	}
	if m.Stats().Open {
		t.Error("manager should not report open")
	}
}

func TestManager_CameraErrorsClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"permission", &fs.PathError{Op: "open", Path: "/dev/video0", Err: fs.ErrPermission}, ErrPermissionDenied},
		{"missing", &fs.PathError{Op: "open", Path: "/dev/video9", Err: fs.ErrNotExist}, ErrNoDevice},
		{"already classified", ErrNoDevice, ErrNoDevice},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(mockConfig(), nil, WithCameraOpener(func(Config) (Camera, error) {
				return nil, tc.err
			}))
			err := m.Open(context.Background())
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, tc.err) {
				t.Errorf("original error lost: %v", err)
			}
		})
	}
}

func TestManager_ReadErrorsAreNotFatal(t *testing.T) {
	calls := 0
	m := NewManager(mockConfig(), nil, WithCameraOpener(func(cfg Config) (Camera, error) {
		cam := NewMockCamera(cfg)
		cam.ReadFunc = func() (*image.RGBA, error) {
			calls++
			if calls <= 2 {
				return nil, errors.New("dropped frame")
			}
			return image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)), nil
		}
		return cam, nil
	}))
	m.cfg.Microphone = false
	defer m.Close()

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitUntil(t, m.Ready)

	stats := m.Stats()
	if stats.ReadErrors != 2 {
		t.Errorf("read errors: got %d, want 2", stats.ReadErrors)
	}
	if stats.Microphone != "" {
		t.Errorf("no microphone expected, got %q", stats.Microphone)
	}
}

func TestManager_CloseWithoutOpen(t *testing.T) {
	m := NewManager(mockConfig(), nil)
	if err := m.Close(); err != nil {
		t.Errorf("Close on unopened manager failed: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config invalid: %v", errs)
	}

	bad := cfg
	bad.Width = 10
	bad.Framerate = 0
	bad.Backend = "v4l"
	if errs := bad.Validate(); len(errs) != 3 {
		t.Errorf("expected 3 errors, got %v", errs)
	}

	for _, name := range []string{PresetDefault, PresetLow, Preset720p, Preset1080p, PresetSilent} {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := p.Validate(); len(errs) != 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestMockCamera_PacesAndStops(t *testing.T) {
	cfg := mockConfig()
	cfg.Framerate = 50
	cam := NewMockCamera(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := cam.ReadFrame(); err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
	}
	// Frames 0, 20ms, 40ms
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("frames not paced: %v for 3 frames at 50fps", elapsed)
	}

	cam.Close()
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDevicePath(t *testing.T) {
	tests := []struct {
		device string
		want   string
		ok     bool
	}{
		{"0", "/dev/video0", true},
		{"2", "/dev/video2", true},
		{"/dev/video4", "/dev/video4", true},
		{"rtsp://camera.local/stream", "", false},
	}
	for _, tc := range tests {
		got, ok := devicePath(tc.device)
		if got != tc.want || ok != tc.ok {
			t.Errorf("devicePath(%q) = %q, %v; want %q, %v", tc.device, got, ok, tc.want, tc.ok)
		}
	}
}
