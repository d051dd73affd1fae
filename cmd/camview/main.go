package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"camview/internal/capture"
	"camview/internal/config"
	"camview/internal/display"
	"camview/internal/logging"
	"camview/internal/pipeline"
	"camview/internal/planar"
	"camview/internal/server"
	"camview/internal/transform"
	"camview/internal/version"
)

func main() {
	cfg, err := config.Parse("camview", os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logging.Setup(cfg.LogLevel, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logrus.WithField("function", "main")

	if err := run(cfg); err != nil {
		log.WithField("error", err).Fatal("camview failed")
	}
}

func run(cfg config.Config) error {
	log := logrus.WithField("function", "run")

	// Validated by config.Parse.
	format, _ := planar.ParseFormat(cfg.InputFormat)
	src, err := capture.Open(capture.Options{
		Kind:   cfg.Source,
		Input:  cfg.Input,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
		Loop:   cfg.Loop,
		Binary: cfg.FFmpeg,
	})
	if err != nil {
		return err
	}
	tr, err := transform.ByName(cfg.Transform, cfg.TransformOptions())
	if err != nil {
		return err
	}

	canvas := display.NewCanvasBackend(cfg.ViewWidth, cfg.ViewHeight, color.RGBA{A: 255})
	surface := display.NewSurface(canvas)
	gw := transform.NewGateway(tr, surface, transform.WithMaxInFlight(cfg.MaxInFlight))
	pipe := pipeline.New(src, gw, surface, pipeline.Options{
		OutWidth:  cfg.OutWidth,
		OutHeight: cfg.OutHeight,
		Refresh:   cfg.Refresh(),
	})

	srv, err := server.New(server.Config{
		EncoderWidth:  cfg.ViewWidth,
		EncoderHeight: cfg.ViewHeight,
		EncoderFPS:    cfg.EncoderFPS,
		FFmpeg:        cfg.FFmpeg,
	}, canvas, func() any { return pipe.Snapshot() })
	if err != nil {
		return err
	}
	defer srv.Close()

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":      "http://" + httpSrv.Addr,
			"version":   version.String(),
			"source":    cfg.Source,
			"transform": cfg.Transform,
		}).Info("camview listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	pipeCtx, cancelPipe := context.WithCancel(ctx)
	defer cancelPipe()
	pipeDone := make(chan error, 1)
	go func() { pipeDone <- pipe.Run(pipeCtx) }()

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
		cancelPipe()
		<-pipeDone
	case err := <-pipeDone:
		if err != nil {
			runErr = err
			break
		}
		if ctx.Err() == nil {
			log.Info("Capture finished, serving the last frame until shutdown")
			select {
			case <-ctx.Done():
			case runErr = <-serveErr:
			}
		}
	case <-ctx.Done():
		<-pipeDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Info("camview stopped")
	return runErr
}
