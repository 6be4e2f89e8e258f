// facefx - live face filters and avatar puppeteering from a local camera
//
// Serves a preview and recording API over HTTP. Configuration comes from
// an optional YAML file, FACEFX_* environment variables and flags, in
// increasing priority.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-facefx/internal/config"
	"github.com/teslashibe/go-facefx/internal/log"
	"github.com/teslashibe/go-facefx/pkg/avatar"
	"github.com/teslashibe/go-facefx/pkg/pipeline"
	"github.com/teslashibe/go-facefx/pkg/web"
)

var (
	configPath   = flag.String("config", "", "YAML config file")
	addr         = flag.String("addr", "", "HTTP listen address (overrides config)")
	mode         = flag.String("mode", "", "overlay or avatar (overrides config)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	printConfig  = flag.Bool("print-config", false, "Print the effective config and exit")
	listAvatars  = flag.Bool("list-avatars", false, "List built-in avatars and exit")
	shutdownWait = flag.Duration("shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
)

func main() {
	flag.Parse()

	if *listAvatars {
		names, err := avatar.ListEmbedded()
		if err != nil {
			fmt.Fprintf(os.Stderr, "facefx: %v\n", err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "facefx: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *mode != "" {
		cfg.Pipeline.Mode = pipeline.Mode(*mode)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if *printConfig {
		return writeConfig(os.Stdout, cfg)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctrl, err := pipeline.New(cfg.Pipeline, pipeline.WithLogger(log.For("pipeline")))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoOpen {
		if err := ctrl.Open(ctx); err != nil {
			// The server still runs so the status endpoint can report why.
			logger.Error("pipeline did not open", "error", err, "fatal", pipeline.IsFatal(err))
		}
	}

	srv := web.NewServer(cfg.Web, ctrl, log.For("web"))
	srv.Start(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen() }()

	logger.Info("facefx running",
		"addr", cfg.Web.Addr,
		"mode", cfg.Pipeline.Mode,
		"detector", cfg.Pipeline.Detector.Backend,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), *shutdownWait)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := ctrl.Close(); err != nil {
		errs = append(errs, fmt.Errorf("pipeline close: %w", err))
	}
	return errors.Join(errs...)
}

func writeConfig(w io.Writer, cfg config.Config) error {
	out, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
