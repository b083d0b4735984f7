package ai

import "context"

// Runtime is a minimal interface implemented by AI backends: the hosted
// OpenAI-compatible APIs and local runtimes such as Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// Default endpoints.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOllamaHost = "http://127.0.0.1:11434"
)

// Providers lists the registered provider names.
func Providers() []string {
	return []string{ProviderGroq, ProviderOpenRouter, ProviderOllama}
}

// NeedsKey reports whether the provider authenticates with an API key.
func NeedsKey(provider string) bool { return provider != ProviderOllama }
