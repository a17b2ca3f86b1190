package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/app"
	"github.com/FrenchMajesty/shoewall/internal/config"
	"github.com/FrenchMajesty/shoewall/internal/server"
)

func main() {
	httpPort := flag.String("http-port", "", "HTTP port (overrides HTTP_PORT)")
	indexCatalog := flag.Bool("index-catalog", false, "embed every catalog shoe into the vector index and exit")
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	cfg := config.Load()
	if *httpPort != "" {
		cfg.HTTPPort = strings.TrimPrefix(*httpPort, ":")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger, *indexCatalog, *migrateOnly); err != nil {
		logger.Error("shoewall stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger, indexCatalog, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrateOnly && cfg.DatabaseURL == "" {
		return errors.New("-migrate-only needs DATABASE_URL")
	}

	db, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrateOnly {
		logger.Info("migrations applied")
		return nil
	}

	if indexCatalog {
		resolver, err := app.NewResolver(cfg, db, logger)
		if err != nil {
			return err
		}
		specs, err := db.ListShoes(ctx)
		if err != nil {
			return err
		}
		if err := resolver.Index(ctx, specs); err != nil {
			return fmt.Errorf("index catalog: %w", err)
		}
		return nil
	}

	svc, visionStage, err := app.Service(cfg, db, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Analysis:       svc,
		Profiles:       db,
		Scans:          db,
		Health:         db,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		VisionMock:     visionStage.Mocked(),
		RankingMock:    cfg.RankingMock,
		Logger:         logger,
	}).HTTPServer(":" + cfg.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			"port", cfg.HTTPPort,
			"environment", cfg.Environment,
			"vision_mock", visionStage.Mocked(),
			"ranking_mock", cfg.RankingMock,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("http server gracefully stopped")
	return nil
}
