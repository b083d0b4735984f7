package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndFile(t *testing.T) {
	t.Setenv("SALESLOOM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model: llama-3.1-8b-instant\ndata_dir: ./sales\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Model != "llama-3.1-8b-instant" || c.DataDir != "./sales" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Provider != "groq" || c.RetryMaxAttempts != 1 || c.Temperature != 0 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.MaxResultRows != 50 || c.ExecTimeoutSec != 30 {
		t.Fatalf("unexpected execution bounds: %+v", c)
	}
}

func TestLoadEnvOverridesAndKeyFallback(t *testing.T) {
	t.Setenv("SALESLOOM_API_KEY", "")
	t.Setenv("SALESLOOM_MODEL", "openai/gpt-oss-120b")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: GROQ\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Model != "openai/gpt-oss-120b" {
		t.Fatalf("env override ignored: %q", c.Model)
	}
	if c.Provider != "groq" {
		t.Fatalf("provider not normalized: %q", c.Provider)
	}
	if c.APIKey != "gsk_test" {
		t.Fatalf("expected GROQ_API_KEY fallback, got %q", c.APIKey)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("SALESLOOM_MODEL", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	in := &Global{APIKey: "k", Provider: "openrouter", Model: "openai/gpt-4o-mini", MaxTokens: 256, DataDir: "Data"}
	if err := Save(in, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Provider != "openrouter" || out.Model != "openai/gpt-4o-mini" || out.MaxTokens != 256 || out.APIKey != "k" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
