// Package app wires configuration into the concrete stores, clients, and
// orchestrators the binaries share.
package app

import (
	"context"
	"log"
	"os"
	"time"

	"miniforge/internal/config"
	"miniforge/internal/deploy"
	"miniforge/internal/jobqueue"
	"miniforge/internal/llm"
	llmclient "miniforge/internal/llmclient"
	"miniforge/internal/projectstore"
)

// BuildRouter wires one route per pipeline stage. Without an API key the fake
// client answers every stage, which keeps local runs offline.
func BuildRouter(cfg *config.Config) (*llm.Router, error) {
	factory := fakeFactory
	if cfg.LLM.APIKey != "" {
		factory = geminiFactory
	}
	router := llm.NewRouter(factory)

	primary := cfg.LLM.PrimaryModel
	fallback := cfg.LLM.FallbackModel
	routes := map[string]llm.Route{
		"g0": {Primary: primary, Fallback: fallback, MaxTokens: 4096, Temperature: 0.2},
		"g1": {Primary: primary, Fallback: fallback, MaxTokens: 2048, Temperature: 0.1},
		"g2": {Primary: primary, Fallback: fallback, MaxTokens: 4096, Temperature: 0.2},
		"g3": {Primary: primary, Fallback: fallback, MaxTokens: 16384, Temperature: 0.3},
		"g4": {Primary: primary, Fallback: fallback, MaxTokens: 16384, Temperature: 0.1},
	}
	for stage, route := range routes {
		if err := router.SetRoute(stage, route); err != nil {
			return nil, err
		}
	}
	return router, nil
}

func geminiFactory(ctx context.Context, model string, cfg llm.GenConfig) (llmclient.LLMClient, error) {
	cli, err := llm.NewGeminiClient(ctx, model, cfg)
	if err != nil {
		return nil, err
	}
	return llm.Chain(cli, llm.Retry(3, time.Second)), nil
}

func fakeFactory(_ context.Context, _ string, _ llm.GenConfig) (llmclient.LLMClient, error) {
	return llm.NewFakeClient(), nil
}

// BuildJobStore returns the configured store plus a close func.
func BuildJobStore(cfg *config.Config) (jobqueue.Store, func(), error) {
	if cfg.Jobs.PostgresDSN == "" {
		log.Printf("job store: in-memory")
		return jobqueue.NewMemoryStore(), func() {}, nil
	}
	pg, err := jobqueue.NewPostgresStore(cfg.Jobs.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("job store: postgres")
	return pg, func() { _ = pg.Close() }, nil
}

// BuildOrchestrator falls back to the in-memory diff store when S3 is not
// configured or not reachable at startup.
func BuildOrchestrator(cfg *config.Config) *deploy.Orchestrator {
	client := deploy.NewBuildHostClient(cfg.BuildHost.URL, cfg.BuildHost.RequestTimeout)
	var diffs deploy.DiffStore = deploy.NewMemoryDiffStore()
	if cfg.Diff.Enabled {
		s3, err := deploy.NewS3DiffStore(deploy.S3Config{
			Endpoint:  cfg.Diff.Endpoint,
			Region:    cfg.Diff.Region,
			AccessKey: cfg.Diff.AccessKey,
			SecretKey: cfg.Diff.SecretKey,
			Bucket:    cfg.Diff.Bucket,
			UseSSL:    cfg.Diff.UseSSL,
		})
		if err != nil {
			log.Printf("diff store: s3 unavailable, using memory: %v", err)
		} else {
			diffs = s3
		}
	}
	orch := deploy.NewOrchestrator(client, diffs)
	orch.PollInterval = cfg.BuildHost.PollInterval
	orch.MaxPolls = cfg.BuildHost.MaxPolls
	return orch
}

func BuildProjectStore() projectstore.Store {
	if dir := os.Getenv("PROJECTS_DIR"); dir != "" {
		return projectstore.NewDirStore(dir)
	}
	return projectstore.NewMemoryStore()
}

// SweepLoop periodically reaps expired jobs until ctx is done.
func SweepLoop(ctx context.Context, store jobqueue.Store, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Sweep(ctx, time.Now())
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: removed %d expired jobs", n)
			}
		}
	}
}
