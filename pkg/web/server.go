// Package web serves the pipeline over HTTP: status, settings and
// recording control as JSON, plus live preview and avatar feeds over
// websocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facefx/pkg/avatar"
	"github.com/teslashibe/go-facefx/pkg/compositor"
	"github.com/teslashibe/go-facefx/pkg/hub"
	"github.com/teslashibe/go-facefx/pkg/pipeline"
	"github.com/teslashibe/go-facefx/pkg/recorder"
)

// Pipeline is the part of the controller the server drives.
type Pipeline interface {
	Status() pipeline.Status
	Settings() pipeline.Settings
	ApplySettings(pipeline.Settings) error
	Catalog() pipeline.Catalog
	StartRecording(ctx context.Context) (*recorder.Session, error)
	StopRecording() (recorder.Blob, error)
	TakeRecording(id string) (recorder.Blob, bool)
	Canvas() *compositor.Canvas
	AvatarSnapshot() (avatar.Snapshot, bool)
}

// Config configures the server.
type Config struct {
	Addr        string `yaml:"addr" json:"addr"`
	PreviewRate int    `yaml:"preview_rate" json:"preview_rate"` // frames per second pushed to viewers
	JPEGQuality int    `yaml:"jpeg_quality" json:"jpeg_quality"`
	StaticDir   string `yaml:"static_dir" json:"static_dir"` // optional UI assets
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		PreviewRate: 15,
		JPEGQuality: 70,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.PreviewRate <= 0 || c.PreviewRate > 60 {
		errs = append(errs, errors.New("preview_rate must be in 1..60"))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, errors.New("jpeg_quality must be in 1..100"))
	}
	return errors.Join(errs...)
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	p      Pipeline
	logger *slog.Logger
	app    *fiber.App

	preview *hub.Hub
	avatar  *hub.Hub

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds the fiber app and its routes.
func NewServer(cfg Config, p Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		p:       p,
		logger:  logger,
		preview: hub.New("preview", logger),
		avatar:  hub.New("avatar", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facefx",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(cors.New())
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handlePutSettings)
	api.Post("/recording/start", s.handleStartRecording)
	api.Post("/recording/stop", s.handleStopRecording)
	api.Get("/recordings/:id", s.handleDownload)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/preview", websocket.New(s.feed(s.preview)))
	app.Get("/ws/avatar", websocket.New(s.feed(s.avatar)))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start runs the hubs and the feed publisher. Serve or Listen accept
// connections afterwards.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.preview.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.avatar.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.publish(ctx)
	}()
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("http listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops the feeds and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.app.ShutdownWithContext(ctx)
}

// publish pushes new canvas frames and rig snapshots to whoever watches.
// Nothing is encoded while a feed has no viewers.
func (s *Server) publish(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.PreviewRate))
	defer ticker.Stop()

	var lastFrame, lastRig uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.preview.ClientCount() > 0 {
				if frame, seq, ok := s.encodePreview(lastFrame); ok {
					lastFrame = seq
					s.preview.BroadcastBinary(frame)
				}
			}
			if s.avatar.ClientCount() > 0 {
				if snap, ok := s.p.AvatarSnapshot(); ok && snap.Seq != lastRig {
					lastRig = snap.Seq
					if err := s.avatar.BroadcastJSON(snap); err != nil {
						s.logger.Warn("encode avatar snapshot", "error", err)
					}
				}
			}
		}
	}
}

func (s *Server) feed(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		if c := hub.NewClient(h, conn); c != nil {
			c.Run()
		}
	}
}
