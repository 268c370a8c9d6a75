package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/server/api"
	"possync/internal/app/server/config"
	"possync/internal/infrastructure/storage/postgres"
	"possync/internal/utils/logger"
)

const purgeInterval = time.Hour

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(ctx, cfg.DB.DatabaseURI, log)
	if err != nil {
		log.Error("failed to init storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	services := api.NewServices(storage, cfg, log)
	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(services, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go purgeTokens(ctx, postgres.NewTokenRepository(storage.Pool(), log), log)

	go func() {
		log.Info("server started", slog.String("addr", cfg.Server.RunAddress), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func purgeTokens(ctx context.Context, repo *postgres.TokenRepository, log *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge refresh tokens", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				log.Debug("expired refresh tokens purged", slog.Int64("count", n))
			}
		}
	}
}
