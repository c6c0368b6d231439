package llm

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	genai "google.golang.org/genai"

	llmclient "miniforge/internal/llmclient"
)

// GenConfig carries the per-stage generation budget set by the router.
type GenConfig struct {
	MaxTokens   int32
	Temperature float32
}

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	model string
	cfg   GenConfig
}

func NewGeminiClient(ctx context.Context, model string, cfg GenConfig) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	return &GeminiClient{cli: cli, model: model, cfg: cfg}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// GenerateJSON sends the concatenated prompt/input and requests application/json.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	stage := StageFrom(ctx)
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, stage, prompt, input)
	}

	in, _ := json.MarshalIndent(input, "", "  ")
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)
	log.Printf("LLM request (%s): %d bytes", stage, len(full))

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			MaxOutputTokens:  g.cfg.MaxTokens,
			Temperature:      genai.Ptr(g.cfg.Temperature),
		},
	)
	if err != nil {
		err = classify(err)
	} else if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		err = llmclient.ErrInvalidJSON
	}
	if err != nil {
		if hook := HookFrom(ctx); hook != nil {
			hook.After(ctx, stage, nil, err)
		}
		return nil, err
	}
	raw := json.RawMessage(resp.Candidates[0].Content.Parts[0].Text)
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, stage, raw, nil)
	}
	return raw, nil
}

// classify maps overload-class transport errors onto ErrOverloaded so the
// router can fall back. The genai error surface is stringly-typed; matching
// on status markers is the practical option.
func classify(err error) error {
	msg := err.Error()
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "503", "UNAVAILABLE", "overloaded"} {
		if strings.Contains(msg, marker) {
			return &overloadError{cause: err}
		}
	}
	return err
}

type overloadError struct{ cause error }

func (e *overloadError) Error() string { return "overloaded: " + e.cause.Error() }
func (e *overloadError) Unwrap() error { return llmclient.ErrOverloaded }
