package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// AuditorSystemPrompt frames every Gemini evaluation call.
const AuditorSystemPrompt = "You are a meticulous compliance auditor. You evaluate one page of a document against one audit criterion at a time and answer only with the JSON object you are asked for, or with nothing at all when the page holds no evidence."

// VertexClient wraps the Vertex AI client used by the Gemini completion backend.
type VertexClient struct {
	baseClient *genai.Client
}

// NewVertexClient creates a new Vertex AI client for the given project and region.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{baseClient: baseClient}, nil
}

// AuditModel returns a generative model configured for evaluation calls.
// Models are cheap handles, so one is built per call to honour per-call temperature.
func (c *VertexClient) AuditModel(name string, temperature float32, maxOutputTokens int32) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(name)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AuditorSystemPrompt)},
	}
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(maxOutputTokens)
	model.SetTopP(0.8)
	model.SetTopK(40)
	// Audit documents routinely quote clinical and incident content.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return model
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
