package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/config"
)

// openAIModelNames are replaced by the Hugging Face default, since callers often
// leave an OpenAI model name in place when switching provider.
var openAIModelNames = map[string]bool{
	"gpt-3.5-turbo": true,
	"gpt-4":         true,
	"gpt-4-turbo":   true,
}

type huggingFaceBackend struct {
	cfg        config.HuggingFaceConfig
	httpClient *http.Client
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float32 `json:"temperature"`
	DoSample     bool    `json:"do_sample"`
}

type hfRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters *hfParameters `json:"parameters,omitempty"`
}

func (b *huggingFaceBackend) Complete(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	if model == "" || openAIModelNames[model] {
		model = b.cfg.DefaultModel
	}

	payload := hfRequest{Inputs: prompt}
	lower := strings.ToLower(model)
	if !strings.Contains(lower, "flan-t5") && !strings.Contains(lower, "text2text") {
		payload.Parameters = &hfParameters{
			MaxNewTokens: 256,
			Temperature:  temperature,
			DoSample:     true,
		}
	}

	body, err := postJSON(ctx, b.httpClient, ProviderHuggingFace, model, b.cfg.BaseURL+model, bearer(b.cfg.APIKey), payload)
	if err != nil {
		return "", err
	}
	text, err := parseHuggingFaceBody(body)
	if err != nil {
		return "", &CompletionError{Provider: ProviderHuggingFace, Model: model, StatusCode: http.StatusOK, Cause: err}
	}
	return strings.TrimSpace(text), nil
}

// parseHuggingFaceBody handles the list and object shapes the inference API returns
// for generation, text-to-text and translation models.
func parseHuggingFaceBody(body []byte) (string, error) {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("empty result list")
		}
		for _, key := range []string{"generated_text", "translation_text"} {
			if s, ok := list[0][key].(string); ok {
				return s, nil
			}
		}
		return fmt.Sprint(list[0]), nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if s, ok := obj["generated_text"].(string); ok {
			return s, nil
		}
		if e, ok := obj["error"]; ok {
			return "", fmt.Errorf("hugging face API error: %v", e)
		}
		return string(body), nil
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("undecodable response body: %s", truncate(string(body), 200))
}
