package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	llmclient "miniforge/internal/llmclient"
)

// Route fixes the model pair and generation budget for one pipeline stage.
type Route struct {
	Primary     string
	Fallback    string
	MaxTokens   int32
	Temperature float32
}

// ClientFactory builds a client for a model under a route's budget.
type ClientFactory func(ctx context.Context, model string, cfg GenConfig) (llmclient.LLMClient, error)

var ErrNoRoute = errors.New("llm: no route registered for stage")

// Router maps each pipeline stage to a primary/fallback model pair. When the
// primary reports overload the fallback is substituted transparently; the
// stage contract is unaffected by which backend answered.
type Router struct {
	mu      sync.RWMutex
	routes  map[string]Route
	clients map[string]llmclient.LLMClient
	factory ClientFactory
}

func NewRouter(factory ClientFactory) *Router {
	return &Router{
		routes:  map[string]Route{},
		clients: map[string]llmclient.LLMClient{},
		factory: factory,
	}
}

// SetRoute registers or replaces the route for a stage.
func (r *Router) SetRoute(stage string, route Route) error {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return fmt.Errorf("llm: route stage is required")
	}
	if strings.TrimSpace(route.Primary) == "" {
		return fmt.Errorf("llm: route for %s has no primary model", stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[stage] = route
	return nil
}

// Call runs a stage prompt against the stage's primary model, degrading to
// the fallback when the primary is overloaded.
func (r *Router) Call(ctx context.Context, stage, prompt string, input any) (json.RawMessage, error) {
	r.mu.RLock()
	route, ok := r.routes[stage]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, stage)
	}

	ctx = WithStage(ctx, stage)
	cli, err := r.client(ctx, route.Primary, route)
	if err != nil {
		return nil, err
	}
	raw, err := cli.GenerateJSON(ctx, prompt, input)
	if err == nil || !errors.Is(err, llmclient.ErrOverloaded) || route.Fallback == "" {
		return raw, err
	}

	log.Printf("llm router: %s overloaded on stage %s, falling back to %s", route.Primary, stage, route.Fallback)
	fb, ferr := r.client(ctx, route.Fallback, route)
	if ferr != nil {
		return nil, ferr
	}
	return fb.GenerateJSON(ctx, prompt, input)
}

// Close releases every cached client.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for key, cli := range r.clients {
		if err := cli.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.clients, key)
	}
	return first
}

func (r *Router) client(ctx context.Context, model string, route Route) (llmclient.LLMClient, error) {
	key := fmt.Sprintf("%s|%d|%.2f", model, route.MaxTokens, route.Temperature)
	r.mu.RLock()
	cli, ok := r.clients[key]
	r.mu.RUnlock()
	if ok {
		return cli, nil
	}

	built, err := r.factory(ctx, model, GenConfig{MaxTokens: route.MaxTokens, Temperature: route.Temperature})
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cli, ok := r.clients[key]; ok {
		_ = built.Close()
		return cli, nil
	}
	r.clients[key] = built
	return built, nil
}

// StageCaller is what the pipeline executor depends on.
type StageCaller interface {
	Call(ctx context.Context, stage, prompt string, input any) (json.RawMessage, error)
}
