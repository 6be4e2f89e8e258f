package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-facefx/pkg/assets"
	"github.com/teslashibe/go-facefx/pkg/audioio"
	"github.com/teslashibe/go-facefx/pkg/avatar"
	"github.com/teslashibe/go-facefx/pkg/capture"
	"github.com/teslashibe/go-facefx/pkg/compositor"
	"github.com/teslashibe/go-facefx/pkg/detection"
	"github.com/teslashibe/go-facefx/pkg/landmark"
	"github.com/teslashibe/go-facefx/pkg/presence"
	"github.com/teslashibe/go-facefx/pkg/recorder"
)

// auxWait bounds how long StartRecording waits for the selected audio
// track to load.
const auxWait = 2 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithCaptureOptions passes options to the capture manager.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(c *Controller) { c.captureOpts = append(c.captureOpts, opts...) }
}

// WithModelFactory overrides the detector backend.
func WithModelFactory(f detection.ModelFactory) Option {
	return func(c *Controller) { c.modelFactory = f }
}

// WithMuxer overrides the recording muxer.
func WithMuxer(f recorder.MuxerFactory) Option {
	return func(c *Controller) { c.muxer = f }
}

// Status is a snapshot of the whole pipeline.
type Status struct {
	Mode       Mode                    `json:"mode"`
	Open       bool                    `json:"open"`
	Presence   presence.State          `json:"presence"`
	Opacity    float64                 `json:"opacity"`
	Loop       LoopStats               `json:"loop"`
	Detection  detection.Stats         `json:"detection"`
	Capture    capture.Stats           `json:"capture"`
	Compositor *compositor.Stats       `json:"compositor,omitempty"`
	Retarget   *avatar.RetargetStats   `json:"retarget,omitempty"`
	Blinks     uint64                  `json:"blinks,omitempty"`
	Recording  *recorder.SessionStatus `json:"recording,omitempty"`
	Settings   Settings                `json:"settings"`
	Error      string                  `json:"error,omitempty"`
	Fatal      bool                    `json:"fatal,omitempty"`
}

// Controller owns the capture devices, detector, renderer, render loop
// and recorder for one capture mode. Open acquires everything in order;
// Close is the single teardown path and may be called at any point.
type Controller struct {
	cfg          Config
	logger       *slog.Logger
	captureOpts  []capture.Option
	modelFactory detection.ModelFactory
	muxer        recorder.MuxerFactory

	images   *assets.Cache[image.Image]
	audio    *assets.Cache[*assets.AudioClip]
	filters  map[string]compositor.FilterSpec
	settings settingsStore
	rec      *recorder.Recorder

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup

	mu         sync.Mutex
	opened     bool
	closed     bool
	capture    *capture.Manager
	detector   *detection.Detector
	canvas     *compositor.Canvas
	comp       *compositor.Compositor
	avatarR    *avatarRenderer
	blinker    *avatar.Blinker
	state      *State
	loop       *Loop
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	session    *recorder.Session
	recordings map[string]recorder.Blob
	lastErr    error
}

// New validates cfg and creates a closed controller.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	c := &Controller{
		cfg:        cfg,
		filters:    compositor.DefaultFilters(),
		recordings: make(map[string]recorder.Blob),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.modelFactory == nil {
		f, err := defaultFactory(cfg.Detector)
		if err != nil {
			return nil, err
		}
		c.modelFactory = f
	}

	recOpts := []recorder.Option{recorder.WithLogger(c.logger)}
	if c.muxer != nil {
		recOpts = append(recOpts, recorder.WithMuxer(c.muxer))
	}
	rec, err := recorder.New(cfg.Recorder, recOpts...)
	if err != nil {
		return nil, err
	}
	c.rec = rec

	if err := cfg.Settings.Validate(c.filters); err != nil {
		return nil, err
	}
	c.settings.Store(cfg.Settings)

	c.images = assets.NewImageCache(c.logger)
	c.audio = assets.NewAudioCache(c.logger)
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())
	return c, nil
}

func defaultFactory(cfg DetectorConfig) (detection.ModelFactory, error) {
	switch cfg.Backend {
	case BackendYuNet:
		return detection.YuNetFactory, nil
	case BackendRemote:
		return detection.RemoteFactory(cfg.RemoteURL), nil
	case BackendMock:
		topo, err := landmark.TopologyFor(cfg.Options.Kind)
		if err != nil {
			return nil, err
		}
		return detection.MockFactory(detection.NewMock(detection.SyntheticFace(topo))), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

// Open acquires the camera and microphone, initializes the model, builds
// the renderer for the configured mode and starts the render loop. On
// failure everything acquired so far is released and the error is kept
// for Status; IsFatal tells whether it should be shown to the user.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.opened {
		return ErrAlreadyOpen
	}

	if err := c.openLocked(ctx); err != nil {
		c.lastErr = err
		if rerr := c.releaseLocked(); rerr != nil {
			c.logger.Warn("release after failed open", "error", rerr)
		}
		c.logger.Error("pipeline open failed", "error", err, "fatal", IsFatal(err))
		return err
	}

	c.opened = true
	c.lastErr = nil
	c.prefetch(c.settings.Load())
	c.logger.Info("pipeline open", "mode", c.cfg.Mode, "detector", c.cfg.Detector.Backend)
	return nil
}

func (c *Controller) openLocked(ctx context.Context) error {
	c.capture = capture.NewManager(c.cfg.Capture, c.logger, c.captureOpts...)
	if err := c.capture.Open(ctx); err != nil {
		return err
	}

	det, err := detection.Open(ctx, c.cfg.Detector.Backend, c.modelFactory, c.cfg.Detector.Options, c.logger)
	if err != nil {
		return err
	}
	c.detector = det

	w, h := c.capture.Size()
	c.canvas = compositor.NewCanvas(w, h)

	var renderer Renderer
	switch c.cfg.Mode {
	case ModeOverlay:
		c.comp = compositor.New(c.canvas, det.Topology(), c.images, c.filters, c.logger)
		renderer = &overlayRenderer{comp: c.comp, settings: &c.settings}

	case ModeAvatar:
		a, err := avatar.Load(c.cfg.Avatar.Avatar)
		if err != nil {
			return err
		}
		rig, err := avatar.NewSkeleton(a)
		if err != nil {
			return err
		}
		rt, err := avatar.NewRetargeter(rig, det.Topology(), a.Mappings, c.logger)
		if err != nil {
			return err
		}
		c.blinker = avatar.NewBlinker(rig, c.cfg.Avatar.Blink, c.logger)
		if err := c.blinker.Start(context.Background()); err != nil {
			return err
		}
		c.avatarR = &avatarRenderer{
			retargeter: rt,
			rig:        rig,
			sketch:     avatar.DefaultSketch(),
			canvas:     c.canvas,
		}
		renderer = c.avatarR

	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.cfg.Mode)
	}

	c.state = NewState(c.cfg.SmoothingAlpha, c.cfg.Presence)
	c.loop = NewLoop(c.capture, det, renderer, c.state, time.Second/time.Duration(c.cfg.DisplayRate), c.logger)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.loopCancel = cancel
	c.loopDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		c.loop.Run(loopCtx)
	}(c.loopDone)
	return nil
}

// releaseLocked tears down whatever is held, in reverse order of
// acquisition. Every step tolerates a missing resource.
func (c *Controller) releaseLocked() error {
	var errs []error

	if c.loopCancel != nil {
		c.loopCancel()
		<-c.loopDone
		c.loopCancel, c.loopDone = nil, nil
	}
	if c.session != nil {
		c.rec.Discard(c.session)
		c.session = nil
	}
	if c.blinker != nil {
		c.blinker.Stop()
		c.blinker = nil
	}
	if c.detector != nil {
		if err := c.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
		c.detector = nil
	}
	if c.capture != nil {
		if err := c.capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release capture: %w", err))
		}
	}
	if c.state != nil {
		c.state.Reset()
	}
	c.opened = false
	return errors.Join(errs...)
}

// Close releases everything. It is safe to call at any point, including
// mid-recording and after a failed Open, and more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	err := c.releaseLocked()
	c.mu.Unlock()

	c.bgCancel()
	c.bgWG.Wait()
	c.images.Close()
	c.audio.Close()

	c.logger.Info("pipeline closed")
	return err
}

// ApplySettings validates and publishes new settings. Renderers pick them
// up on the next tick. Referenced assets are prefetched, and an active
// recording switches to the new audio track.
func (c *Controller) ApplySettings(s Settings) error {
	if err := s.Validate(c.filters); err != nil {
		return err
	}
	prev := c.settings.Load()
	c.settings.Store(s)
	c.prefetch(s)

	if s.AudioTrack != prev.AudioTrack {
		c.mu.Lock()
		session := c.session
		c.mu.Unlock()
		if session != nil {
			c.swapAux(session, s.AudioTrack)
		}
	}
	c.logger.Debug("settings applied", "filter", s.Filter, "background", s.Background, "audio_track", s.AudioTrack)
	return nil
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings { return c.settings.Load() }

// Catalog returns the built-in choices.
func (c *Controller) Catalog() Catalog { return NewCatalog(c.filters) }

func (c *Controller) prefetch(s Settings) {
	if spec, ok := c.filters[s.Filter]; ok {
		c.images.Prefetch(spec.URI)
	}
	c.images.Prefetch(s.Background)
	c.audio.Prefetch(s.AudioTrack)
}

// clipSource starts a looping playback source for a loaded clip.
func (c *Controller) clipSource(clip *assets.AudioClip) (audioio.Source, error) {
	src, err := audioio.NewPlayback(c.bgCtx, clip.Samples, clip.SampleRate, true, c.logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// swapAux replaces the session's aux input once the track is loaded. A
// track that fails to load leaves the recording without music.
func (c *Controller) swapAux(session *recorder.Session, uri string) {
	if uri == "" {
		if err := session.SetAux(nil); err != nil && !errors.Is(err, recorder.ErrSessionClosed) {
			c.logger.Warn("remove audio track", "error", err)
		}
		return
	}

	fut := c.audio.Get(uri)
	c.bgWG.Add(1)
	go func() {
		defer c.bgWG.Done()
		clip, err := fut.Wait(c.bgCtx)
		if err != nil {
			return
		}
		if c.settings.Load().AudioTrack != uri || session.Finished() {
			return
		}
		src, err := c.clipSource(clip)
		if err != nil {
			c.logger.Warn("start audio track", "uri", uri, "error", err)
			return
		}
		if err := session.SetAux(src); err != nil {
			if !errors.Is(err, recorder.ErrSessionClosed) {
				c.logger.Warn("switch audio track", "uri", uri, "error", err)
			}
		}
	}()
}

// StartRecording begins recording the canvas with the microphone and the
// selected audio track.
func (c *Controller) StartRecording(ctx context.Context) (*recorder.Session, error) {
	var aux audioio.Source
	if uri := c.settings.Load().AudioTrack; uri != "" {
		wctx, cancel := context.WithTimeout(ctx, auxWait)
		clip, err := c.audio.Get(uri).Wait(wctx)
		cancel()
		if err != nil {
			c.logger.Warn("recording without audio track", "uri", uri, "error", err)
		} else if aux, err = c.clipSource(clip); err != nil {
			c.logger.Warn("recording without audio track", "uri", uri, "error", err)
			aux = nil
		}
	}

	c.mu.Lock()
	err := c.recordableLocked()
	capt, canvas := c.capture, c.canvas
	c.mu.Unlock()
	if err != nil {
		if aux != nil {
			aux.Close()
		}
		return nil, err
	}

	// Starting the muxer can block; Status and Close stay responsive.
	s, err := c.rec.Start(ctx, canvas, capt.Mic(), aux)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.closed {
			return nil, ErrClosed
		}
		if !errors.Is(err, recorder.ErrAlreadyRecording) {
			c.lastErr = err
		}
		return nil, err
	}
	if rerr := c.recordableLocked(); rerr != nil || c.capture != capt {
		c.rec.Discard(s)
		if rerr == nil {
			rerr = ErrNotOpen
		}
		return nil, rerr
	}
	c.session = s
	return s, nil
}

func (c *Controller) recordableLocked() error {
	switch {
	case c.closed:
		return ErrClosed
	case !c.opened:
		return ErrNotOpen
	case c.session != nil:
		return recorder.ErrAlreadyRecording
	}
	return nil
}

// StopRecording finalizes the active recording and keeps the blob for one
// download with TakeRecording. An empty recording is an error and nothing
// is kept.
func (c *Controller) StopRecording() (recorder.Blob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return recorder.Blob{}, ErrNotRecording
	}
	s := c.session
	c.session = nil

	blob, err := c.rec.Stop(s)
	if err != nil {
		c.lastErr = err
		return recorder.Blob{}, err
	}
	c.recordings[blob.ID.String()] = blob
	return blob, nil
}

// TakeRecording returns a finished recording and forgets it.
func (c *Controller) TakeRecording(id string) (recorder.Blob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blob, ok := c.recordings[id]
	delete(c.recordings, id)
	return blob, ok
}

// Recording returns the active session, or nil.
func (c *Controller) Recording() *recorder.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Canvas returns the output canvas, or nil before Open.
func (c *Controller) Canvas() *compositor.Canvas {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvas
}

// AvatarSnapshot returns the last rendered rig state in avatar mode.
func (c *Controller) AvatarSnapshot() (avatar.Snapshot, bool) {
	c.mu.Lock()
	r := c.avatarR
	c.mu.Unlock()
	if r == nil {
		return avatar.Snapshot{}, false
	}
	return r.snapshot()
}

// Loop returns the render loop, or nil when not open.
func (c *Controller) Loop() *Loop {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop
}

// Status returns a snapshot of the pipeline.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Mode:     c.cfg.Mode,
		Open:     c.opened,
		Settings: c.settings.Load(),
	}
	if c.loop != nil {
		st.Loop = c.loop.Stats()
		st.Presence = st.Loop.Presence
		st.Opacity = st.Loop.Opacity
	}
	if c.detector != nil {
		st.Detection = c.detector.Stats()
	}
	if c.capture != nil {
		st.Capture = c.capture.Stats()
	}
	if c.comp != nil {
		cs := c.comp.Stats()
		st.Compositor = &cs
	}
	if c.avatarR != nil {
		rs := c.avatarR.retargeter.Stats()
		st.Retarget = &rs
	}
	if c.blinker != nil {
		st.Blinks = c.blinker.Blinks()
	}
	if c.session != nil {
		ss := c.session.Status()
		st.Recording = &ss
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
		st.Fatal = IsFatal(c.lastErr)
	}
	return st
}
