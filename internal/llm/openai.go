package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
)

type openAIBackend struct {
	cfg        config.OpenAIConfig
	httpClient *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (b *openAIBackend) Complete(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	if model == "" {
		model = b.cfg.DefaultModel
	}

	body, err := postJSON(ctx, b.httpClient, ProviderOpenAI, model, b.cfg.BaseURL+"/chat/completions", bearer(b.cfg.APIKey), openAIRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", completionErr(ProviderOpenAI, model, http.StatusOK, "failed to decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", completionErr(ProviderOpenAI, model, http.StatusOK, "response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
