package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aipowergrid/imagine-mint/internal/app"
	"github.com/aipowergrid/imagine-mint/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appInstance, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise app: %w", err)
	}
	defer func() {
		if err := appInstance.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           appInstance.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(appInstance.StopStreams)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("🪄 imagine-mint API listening on %s", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// In-flight /imagine runs may be mid-mint; give them the full grace.
		log.Printf("shutting down, waiting up to %s for in-flight requests", cfg.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
