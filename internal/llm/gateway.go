// Package llm is the completion gateway: it hides every supported model backend
// behind one "prompt in, text out" capability with a single failure type.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/gcp"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// Backend is one provider's implementation of the completion capability.
// An empty model selects the provider's default.
type Backend interface {
	Complete(ctx context.Context, prompt, model string, temperature float32) (string, error)
}

// Request bundles the inputs of a single gateway call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float32
	Provider    Provider
}

type backendFactory func(ctx context.Context) (Backend, error)

// Gateway dispatches completion calls to the backend registered for each provider.
// Backends are built on first use and reused; the gateway is safe for concurrent use.
type Gateway struct {
	defaultProvider string
	factories       map[Provider]backendFactory

	mu       sync.Mutex
	backends map[Provider]Backend
	closers  []func() error
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithBackend registers a ready-made backend, replacing any configured one.
func WithBackend(p Provider, b Backend) Option {
	return func(g *Gateway) {
		g.factories[p] = func(context.Context) (Backend, error) { return b, nil }
	}
}

// NewGateway builds the dispatch table from configuration. Only providers with enough
// configuration to be usable are registered.
func NewGateway(cfg config.LLMConfig, opts ...Option) *Gateway {
	g := &Gateway{
		defaultProvider: cfg.DefaultProvider,
		factories:       make(map[Provider]backendFactory),
		backends:        make(map[Provider]Backend),
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	if cfg.OpenAI.APIKey != "" {
		g.factories[ProviderOpenAI] = func(context.Context) (Backend, error) {
			return &openAIBackend{cfg: cfg.OpenAI, httpClient: httpClient}, nil
		}
	}
	if cfg.HuggingFace.APIKey != "" {
		g.factories[ProviderHuggingFace] = func(context.Context) (Backend, error) {
			return &huggingFaceBackend{cfg: cfg.HuggingFace, httpClient: httpClient}, nil
		}
	}
	if cfg.Custom.Endpoint != "" {
		g.factories[ProviderCustom] = func(context.Context) (Backend, error) {
			return &customBackend{cfg: cfg.Custom, httpClient: httpClient}, nil
		}
	}
	if cfg.Gemini.ProjectID != "" {
		g.factories[ProviderGemini] = func(ctx context.Context) (Backend, error) {
			vertexClient, err := gcp.NewVertexClient(ctx, cfg.Gemini.ProjectID, cfg.Gemini.Region)
			if err != nil {
				return nil, err
			}
			g.closers = append(g.closers, vertexClient.Close)
			return &geminiBackend{
				defaultModel: cfg.Gemini.DefaultModel,
				timeout:      cfg.Timeout,
				newModel: func(name string, temperature float32) contentGenerator {
					return vertexClient.AuditModel(name, temperature, maxOutputTokens)
				},
			}, nil
		}
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProviderFor parses a provider name, falling back to the configured default when empty.
func (g *Gateway) ProviderFor(name string) (Provider, error) {
	if strings.TrimSpace(name) == "" {
		name = g.defaultProvider
	}
	return ParseProvider(name)
}

// Backend returns the backend for p. A provider that is unknown, unconfigured or whose
// client cannot be created is a configuration error, reported before any call is made.
func (g *Gateway) Backend(ctx context.Context, p Provider) (Backend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.backends[p]; ok {
		return b, nil
	}
	factory, ok := g.factories[p]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s is not configured", models.ErrConfiguration, p)
	}
	b, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize provider %s: %v", models.ErrConfiguration, p, err)
	}
	g.backends[p] = b
	slog.Info("Completion backend initialized.", "provider", p.String())
	return b, nil
}

// Complete resolves the backend for req.Provider and sends the prompt.
func (g *Gateway) Complete(ctx context.Context, req Request) (string, error) {
	b, err := g.Backend(ctx, req.Provider)
	if err != nil {
		return "", err
	}
	return b.Complete(ctx, req.Prompt, req.Model, req.Temperature)
}

// Close releases any clients the backends hold.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var firstErr error
	for _, closeFn := range g.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	g.closers = nil
	return firstErr
}
