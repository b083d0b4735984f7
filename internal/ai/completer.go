package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KaramelBytes/salesloom-cli/internal/logging"
)

// CompleterOptions selects a provider and fixes the generation settings.
type CompleterOptions struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Runtime     RuntimeConfig
	Logger      *slog.Logger
}

// Completer sends single-prompt completions with fixed settings.
// A Completer without a runtime reports itself unavailable.
type Completer struct {
	rt          Runtime
	provider    string
	model       string
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

// NewCompleter resolves the provider runtime. A hosted provider without an
// API key yields an unavailable Completer rather than an error, so the
// session can still start and report the problem per question.
func NewCompleter(o CompleterOptions) (*Completer, error) {
	c := &Completer{
		provider:    o.Provider,
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		log:         logging.OrNop(o.Logger),
	}
	rt, ok := GetRuntime(o.Provider, o.Runtime)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (use groq, openrouter or ollama)", o.Provider)
	}
	if NeedsKey(o.Provider) && o.Runtime.APIKey == "" {
		return c, nil
	}
	c.rt = rt
	return c, nil
}

// Available reports whether Complete can reach a model.
func (c *Completer) Available() bool { return c != nil && c.rt != nil }

// Model returns the configured model name.
func (c *Completer) Model() string { return c.model }

// Complete sends prompt as a single user message and returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}
	start := time.Now()
	resp, err := c.rt.Generate(ctx, GenerateRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		c.log.Warn("model request failed", "provider", c.provider, "model", c.model, "err", err)
		return "", fmt.Errorf("%s completion: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	attrs := []any{
		"provider", c.provider,
		"model", c.model,
		"duration", time.Since(start).Round(time.Millisecond),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	}
	if resp.RequestID != "" {
		attrs = append(attrs, "request_id", resp.RequestID)
	}
	if cost, ok := EstimateCostUSD(c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
		attrs = append(attrs, "cost_usd", fmt.Sprintf("%.6f", cost))
	}
	c.log.Info("model round-trip", attrs...)
	return resp.Text(), nil
}
