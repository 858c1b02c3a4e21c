package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
	"github.com/Lllllllleong/complianceauditflow/internal/llm"
	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// DefaultPromptTemperature applies when a prompt request does not set one.
const DefaultPromptTemperature float32 = 0.2

// PromptFunction sends free-form prompts through the completion gateway.
type PromptFunction struct {
	gateway *llm.Gateway
}

func NewPrompt(ctx context.Context) (*PromptFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("LLM prompt function initialized.", "defaultProvider", cfg.LLM.DefaultProvider)
	return NewPromptWithGateway(llm.NewGateway(cfg.LLM)), nil
}

func NewPromptWithGateway(gateway *llm.Gateway) *PromptFunction {
	return &PromptFunction{gateway: gateway}
}

// Process returns the model's answer. An unknown or unconfigured provider is reported
// as models.ErrConfiguration, a failed call as *llm.CompletionError.
func (f *PromptFunction) Process(ctx context.Context, req *models.PromptRequest) (*models.PromptResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	provider, err := f.gateway.ProviderFor(req.Provider)
	if err != nil {
		return nil, err
	}
	temperature := DefaultPromptTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	logCtx := slog.With("provider", provider.String(), "model", req.Model)
	text, err := f.gateway.Complete(ctx, llm.Request{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: temperature,
		Provider:    provider,
	})
	if err != nil {
		logCtx.Error("Prompt failed.", "error", err)
		return nil, err
	}
	logCtx.Info("Prompt answered.", "responseLength", len(text))
	return &models.PromptResponse{Response: text}, nil
}
