package llm

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// contentGenerator is the slice of *genai.GenerativeModel the backend needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type geminiBackend struct {
	defaultModel string
	timeout      time.Duration
	newModel     func(name string, temperature float32) contentGenerator
}

func (b *geminiBackend) Complete(ctx context.Context, prompt, model string, temperature float32) (string, error) {
	if model == "" {
		model = b.defaultModel
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.newModel(model, temperature).GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", &CompletionError{Provider: ProviderGemini, Model: model, Cause: err}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		// A prompt blocked by safety filters comes back without candidates.
		return "", completionErr(ProviderGemini, model, 0, "response contained no candidates")
	}
	return extractGeminiText(resp), nil
}

// extractGeminiText concatenates the text parts of the first candidate. A candidate
// with no text is a legitimate empty answer, not a failure.
func extractGeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(content.String())
}
