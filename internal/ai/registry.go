package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get builds the named provider. An empty model selects the provider default.
func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Settings carries the connection details of every built-in provider.
type Settings struct {
	Timeout time.Duration

	GeminiBaseURL string
	GeminiAPIKey  string
	GeminiModel   string

	OllamaBaseURL string
	OllamaModel   string

	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
}

// NewDefaultRegistry registers gemini, ollama and openrouter.
func NewDefaultRegistry(s Settings) *Registry {
	reg := NewRegistry()
	reg.Register(geminiName, func(_ context.Context, model string) (Provider, error) {
		return NewGeminiProvider(s.GeminiBaseURL, s.GeminiAPIKey, pick(model, s.GeminiModel), s.Timeout), nil
	})
	reg.Register(ollamaName, func(_ context.Context, model string) (Provider, error) {
		return NewOllamaProvider(s.OllamaBaseURL, pick(model, s.OllamaModel), s.Timeout), nil
	})
	reg.Register(openRouterName, func(_ context.Context, model string) (Provider, error) {
		return NewOpenRouterProvider(s.OpenRouterBaseURL, s.OpenRouterAPIKey, pick(model, s.OpenRouterModel),
			s.OpenRouterSiteURL, s.OpenRouterAppName, s.Timeout), nil
	})
	return reg
}

func pick(model, fallback string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return fallback
}
