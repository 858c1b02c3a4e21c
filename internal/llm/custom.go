package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
)

type customBackend struct {
	cfg        config.CustomConfig
	httpClient *http.Client
}

type customRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Model       string  `json:"model,omitempty"`
}

// customTextKeys are tried in order against an object response.
var customTextKeys = []string{"response", "text", "content", "result"}

func (b *customBackend) Complete(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	body, err := postJSON(ctx, b.httpClient, ProviderCustom, model, b.cfg.Endpoint, bearer(b.cfg.APIKey), customRequest{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
		Model:       model,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(parseCustomBody(body)), nil
}

// parseCustomBody never fails: a body that matches no known shape is returned as-is,
// leaving it to the interpreter to decide whether it holds an evaluation.
func parseCustomBody(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range customTextKeys {
			if v, ok := obj[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
				return fmt.Sprint(v)
			}
		}
		return string(body)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	return string(body)
}
