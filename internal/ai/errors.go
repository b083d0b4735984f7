package ai

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned by a Completer that was built without a usable
// credential.
var ErrUnavailable = errors.New("LLM not initialized. Check API Key.")

// ErrMissingKey is returned by Client.Generate when no API key is set.
var ErrMissingKey = errors.New("API key is missing")

// ErrEmptyResponse is returned when the provider answers with no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Typed provider errors. Groq, OpenRouter and Ollama failures are all
// classified into these so the CLI can print one hint per failure kind,
// whichever provider is configured.

// AuthError is a rejected credential (401/403 from Groq or OpenRouter).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError is a 429. RetryAfter is set when the provider sent a
// Retry-After header.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError means the configured model cannot serve the request:
// unknown, decommissioned on Groq, or not pulled into the local Ollama.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError is any other rejected request, usually a 400.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError is a billing or credit problem, recognized by the
// quota_exceeded code or the wording of the message.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError is a 5xx. These are retried when retry_max_attempts > 1.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError is a transport failure before any HTTP status, typically
// an Ollama host that is not running.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
