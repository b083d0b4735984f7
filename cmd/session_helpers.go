package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/salesloom-cli/internal/config"
	"github.com/KaramelBytes/salesloom-cli/internal/pipeline"
	"github.com/KaramelBytes/salesloom-cli/internal/plan"
	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
)

// runtimeConfig maps the HTTP and retry settings onto the runtime registry
// config.
func runtimeConfig(c *cfgpkg.Global) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    1,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Host:        c.OllamaHost,
	}
	if c.HTTPTimeoutSec > 0 {
		rc.HTTPTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
	}
	if c.RetryMaxAttempts > 0 {
		rc.RetryMax = c.RetryMaxAttempts
	}
	if c.RetryBaseDelayMs > 0 {
		rc.BaseDelay = time.Duration(c.RetryBaseDelayMs) * time.Millisecond
	}
	if c.RetryMaxDelayMs > 0 {
		rc.MaxDelay = time.Duration(c.RetryMaxDelayMs) * time.Millisecond
	}
	return rc
}

func planLimits(c *cfgpkg.Global) plan.Limits {
	lim := plan.DefaultLimits()
	if c.ExecTimeoutSec > 0 {
		lim.Timeout = time.Duration(c.ExecTimeoutSec) * time.Second
	}
	if c.MaxResultRows > 0 {
		lim.MaxRows = c.MaxResultRows
	}
	if c.MaxGroups > 0 {
		lim.MaxGroups = c.MaxGroups
	}
	return lim
}

// openSession builds the completer and pipeline from config and loads the
// datasets. Setup problems that still allow a session are printed to stderr
// as warnings.
func openSession(ctx context.Context, c *cfgpkg.Global, stderr io.Writer) (*session.Session, error) {
	comp, err := ai.NewCompleter(ai.CompleterOptions{
		Provider:    c.Provider,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Runtime:     runtimeConfig(c),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if !comp.Available() {
		fmt.Fprintf(stderr, "⚠ Warning: no API key for provider %q. Set %s or run 'salesloom config set api_key <key>'.\n", c.Provider, keyEnvName(c.Provider))
	}
	s := session.New(session.Options{
		DataDir: c.DataDir,
		Pipeline: &pipeline.Pipeline{
			LLM:        comp,
			Limits:     planLimits(c),
			TokenLimit: c.ResultTokenLimit,
			Logger:     logger,
		},
		Logger: logger,
	})
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	if s.Collection().Len() == 0 {
		fmt.Fprintf(stderr, "⚠ Warning: no datasets found in %s\n", c.DataDir)
	}
	warnContextWindow(stderr, c.Model, s.Summary())
	return s, nil
}

// warnContextWindow flags a dataset summary that alone nearly fills the
// model's context window.
func warnContextWindow(w io.Writer, model, summary string) {
	mi, ok := ai.LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return
	}
	tokens := utils.CountTokens(summary)
	if tokens > mi.ContextTokens*8/10 {
		fmt.Fprintf(w, "⚠ Warning: dataset summary is ~%d tokens, close to the %d-token context window of %s\n", tokens, mi.ContextTokens, model)
	}
}

func keyEnvName(provider string) string {
	switch provider {
	case ai.ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// providerHint explains a model failure in terms of what the user can change.
func providerHint(c *cfgpkg.Global, err error) string {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unreach):
		return fmt.Sprintf("Ollama not reachable at %s. Ensure it is running or set 'ollama_host'.", unreach.Host)
	case errors.As(err, &authErr):
		return fmt.Sprintf("authentication failed: check %s or 'api_key' in ~/.salesloom/config.yaml", keyEnvName(c.Provider))
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Sprintf("rate limited, try again in ~%ds", int(rlErr.RetryAfter.Seconds()))
		}
		return "rate limited, try again shortly or raise --retry-max"
	case errors.As(err, &nfErr):
		if c.Provider == ai.ProviderOllama {
			return fmt.Sprintf("local model not available; install it with 'ollama pull %s'", c.Model)
		}
		return fmt.Sprintf("model %q is not available from %s; see 'salesloom models'", c.Model, c.Provider)
	case errors.As(err, &qErr):
		return "quota/billing issue, check your provider account"
	case errors.As(err, &sErr):
		return "provider appears unavailable (server error), retry later"
	case errors.Is(err, context.DeadlineExceeded):
		return "the model call timed out; raise --http-timeout"
	}
	return ""
}
