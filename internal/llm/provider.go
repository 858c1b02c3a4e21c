package llm

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/complianceauditflow/internal/models"
)

// Provider is the closed set of completion backends the gateway can dispatch to.
type Provider int

const (
	// ProviderOpenAI is any OpenAI-compatible chat completions API.
	ProviderOpenAI Provider = iota + 1
	// ProviderGemini is Gemini served through Vertex AI.
	ProviderGemini
	// ProviderHuggingFace is the Hugging Face hosted inference API.
	ProviderHuggingFace
	// ProviderCustom is a self-hosted JSON endpoint.
	ProviderCustom
)

var providerNames = map[Provider]string{
	ProviderOpenAI:      "openai",
	ProviderGemini:      "gemini",
	ProviderHuggingFace: "huggingface",
	ProviderCustom:      "custom",
}

func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// ParseProvider maps a provider name onto the enum. Unknown names are configuration errors.
func ParseProvider(name string) (Provider, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for p, n := range providerNames {
		if n == normalized {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported LLM provider %q", models.ErrConfiguration, name)
}

// Providers lists every known provider in declaration order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini, ProviderHuggingFace, ProviderCustom}
}
