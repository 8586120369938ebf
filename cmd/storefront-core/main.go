package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storefront-cache/internal/config"
	"github.com/goliatone/go-storefront-cache/pkg/di"
)

var (
	warmOnce = flag.Bool("warm-once", false, "Warm the analytics cache for the configured stores once and exit")
	migrate  = flag.Bool("migrate", false, "Create the database schema and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}
	defer container.Close()

	logger := container.Logger()

	// The container creates the schema while wiring.
	if *migrate {
		logger.Info("schema ready")
		return
	}

	if *warmOnce {
		report := container.Warmer().Run(ctx)
		logger.WithFields(logrus.Fields{
			"warmed": report.Warmed,
			"failed": report.Failed,
			"purged": report.Purged,
		}).Info("warm-once finished")
		if report.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	if err := container.Warmer().Start(); err != nil {
		logger.WithError(err).Fatal("failed to start analytics warmer")
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      container.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("storefront core listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	case err := <-errc:
		if err != nil {
			logger.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	if err := container.Warmer().Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("warmer shutdown incomplete")
	}

	logger.Info("storefront core stopped")
}
