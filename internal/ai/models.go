package ai

import (
	"encoding/json"
	"os"
	"sort"
)

// Model metadata and simple pricing helpers for UX warnings.
// Prices are illustrative; check the provider's pricing page.

type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	// Groq
	"openai/gpt-oss-20b": {
		Name:          "openai/gpt-oss-20b",
		ContextTokens: 131072,
		InputPerK:     0.0001,
		OutputPerK:    0.0005,
	},
	"openai/gpt-oss-120b": {
		Name:          "openai/gpt-oss-120b",
		ContextTokens: 131072,
		InputPerK:     0.00015,
		OutputPerK:    0.00075,
	},
	"llama-3.1-8b-instant": {
		Name:          "llama-3.1-8b-instant",
		ContextTokens: 131072,
		InputPerK:     0.00005,
		OutputPerK:    0.00008,
	},
	"llama-3.3-70b-versatile": {
		Name:          "llama-3.3-70b-versatile",
		ContextTokens: 131072,
		InputPerK:     0.00059,
		OutputPerK:    0.00079,
	},
	// OpenRouter
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		ContextTokens: 128000,
		InputPerK:     0.0006,
		OutputPerK:    0.0024,
	},
	"meta-llama/llama-3.1-70b-instruct": {
		Name:          "meta-llama/llama-3.1-70b-instruct",
		ContextTokens: 131072,
	},
	// Common local (Ollama) tags
	"llama3.1:8b": {
		Name:          "llama3.1:8b",
		ContextTokens: 8192,
	},
	"qwen2.5:7b": {
		Name:          "qwen2.5:7b",
		ContextTokens: 32768,
	},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "openai/gpt-oss-20b": {"Name":"openai/gpt-oss-20b","ContextTokens":131072,"InputPerK":0.0001,"OutputPerK":0.0005} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns the catalog sorted by name.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
