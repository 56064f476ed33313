// lenslated captures the screen, extracts on-screen text, and serves
// translated overlay diffs to rendering clients over WebSocket.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lenslate/lenslate/internal/cache"
	"github.com/lenslate/lenslate/internal/config"
	"github.com/lenslate/lenslate/internal/differ"
	"github.com/lenslate/lenslate/internal/extract"
	"github.com/lenslate/lenslate/internal/frame"
	"github.com/lenslate/lenslate/internal/merge"
	"github.com/lenslate/lenslate/internal/overlay"
	"github.com/lenslate/lenslate/internal/pipeline"
	"github.com/lenslate/lenslate/internal/server"
	"github.com/lenslate/lenslate/internal/style"
	"github.com/lenslate/lenslate/internal/translate"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()

	engine, err := extract.NewTesseract(cfg.SourceLang, cfg.OCRMinConfidence)
	if err != nil {
		slog.Error("failed to initialize OCR engine", "lang", cfg.SourceLang, "error", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	translator := translate.NewResilient(translate.NewClient(cfg.TranslateAddr, cfg.TranslateAPIKey))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The sidecar being down at startup is not fatal; the circuit breaker
	// covers it once requests start flowing.
	if err := translator.Health(ctx); err != nil {
		slog.Warn("translation sidecar unreachable", "addr", cfg.TranslateAddr, "error", err)
	}

	pipe := pipeline.New(
		pipeline.Config{
			CaptureRate: cfg.CaptureRate,
			SourceLang:  cfg.SourceLang,
			TargetLang:  cfg.TargetLang,
			ShowPending: cfg.ShowPending,
		},
		frame.NewSource(cfg.CaptureRegion),
		differ.New(differ.Config{
			Threshold:       cfg.DiffThreshold,
			PixelDelta:      uint8(cfg.DiffPixelDelta),
			MaxHashDistance: cfg.DiffHashDistance,
		}),
		engine,
		merge.New(merge.Config{
			MinHorizontalOverlap: cfg.MergeMinOverlap,
			WrapGapRatio:         cfg.MergeWrapGapRatio,
			MaxGapRatio:          cfg.MergeMaxGapRatio,
		}),
		merge.NewMatcher(cfg.IdentityOverlap),
		style.New(style.Config{DefaultFG: cfg.DefaultFG, DefaultBG: cfg.DefaultBG}),
		cache.New(cfg.CacheCapacity),
		translator,
	)

	srv := server.New(pipe)
	renderer := overlay.NewRenderer(srv)
	pipe.SetPublisher(renderer)

	go renderer.Run(ctx)
	pipe.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("lenslated starting",
			"http", cfg.HTTPAddr,
			"translate", cfg.TranslateAddr,
			"langs", cfg.SourceLang+"->"+cfg.TargetLang)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	pipe.Stop()
	slog.Info("shutdown complete")
}
