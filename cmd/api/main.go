package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"miniforge/internal/app"
	"miniforge/internal/config"
	"miniforge/internal/jobqueue"
	"miniforge/internal/pipeline"
	"miniforge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	router, err := app.BuildRouter(cfg)
	if err != nil {
		log.Fatalf("llm router: %v", err)
	}
	defer router.Close()

	store, closeStore, err := app.BuildJobStore(cfg)
	if err != nil {
		log.Fatalf("job store: %v", err)
	}
	defer closeStore()

	worker := &jobqueue.Worker{
		Store:    store,
		Pipeline: pipeline.NewExecutor(router),
		Deployer: app.BuildOrchestrator(cfg),
		Projects: app.BuildProjectStore(),
	}

	handler := server.NewHandler(store, worker, cfg.Jobs.TTL)
	srv := server.New(cfg.Port, handler.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.SweepLoop(ctx, store, cfg.Jobs.SweepInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}
