package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-schedule/internal/app"
	"wisefido-schedule/internal/config"
	httpapi "wisefido-schedule/internal/http"
	"wisefido-schedule/internal/service"

	"owl-common/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-schedule")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize schedule engine", zap.Error(err))
	}
	defer deps.Close()

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterScheduleRoutes(httpapi.NewEventHandler(deps.SeriesService, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}
