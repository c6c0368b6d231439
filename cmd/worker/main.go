// Standalone worker: drains pending jobs oldest-first. Useful when job load
// outgrows the API process's in-request claims.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"miniforge/internal/app"
	"miniforge/internal/config"
	"miniforge/internal/jobqueue"
	"miniforge/internal/pipeline"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.SweepLoop(ctx, store, cfg.Jobs.SweepInterval)

	interval := pollInterval()
	log.Printf("worker: polling every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker: stopping")
			return
		case <-ticker.C:
		}

		job, res, err := worker.ClaimAndRun(ctx, "")
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Printf("worker: claim: %v", err)
			}
			continue
		}
		if res == jobqueue.Claimed {
			log.Printf("worker: claimed job %s", job.ID)
		}
	}
}

func pollInterval() time.Duration {
	raw := os.Getenv("WORKER_POLL_INTERVAL")
	if raw == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}
