// Package config reads the process environment once at start-up into an explicit
// Config value that is passed to the completion gateway and the audit engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all settings shared by the audit services.
type Config struct {
	LLM   LLMConfig
	Audit AuditConfig
	Store StoreConfig
}

// LLMConfig configures the completion gateway and every backend it can dispatch to.
type LLMConfig struct {
	DefaultProvider string
	Timeout         time.Duration
	OpenAI          OpenAIConfig
	Gemini          GeminiConfig
	HuggingFace     HuggingFaceConfig
	Custom          CustomConfig
}

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// GeminiConfig points at Vertex AI. Credentials come from the ambient service account.
type GeminiConfig struct {
	ProjectID    string
	Region       string
	DefaultModel string
}

type HuggingFaceConfig struct {
	APIKey       string
	BaseURL      string // model name is appended
	DefaultModel string
}

// CustomConfig is a self-hosted endpoint that accepts {"prompt", "temperature", "max_tokens", "model"}.
type CustomConfig struct {
	Endpoint string
	APIKey   string // optional, sent as a bearer token
}

// AuditConfig configures the audit engine and the criteria repository.
type AuditConfig struct {
	Concurrency   int
	CriteriaPaths []string // tried in order; local paths or gs:// URIs
}

// StoreConfig selects and configures the finding store.
type StoreConfig struct {
	Backend   string // "firestore" or "mysql"
	ProjectID string
	MySQL     MySQLConfig
}

type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// Load reads the configuration from environment variables, loading a .env file first if one exists.
func Load() (*Config, error) {
	// A missing .env file is normal in deployed functions.
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function, which keeps tests
// independent of the real process environment.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	timeout, err := time.ParseDuration(get("LLM_TIMEOUT", "60s"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT must be a positive duration, got %q", get("LLM_TIMEOUT", ""))
	}

	concurrency, err := strconv.Atoi(get("AUDIT_CONCURRENCY", "1"))
	if err != nil || concurrency < 1 {
		return nil, fmt.Errorf("AUDIT_CONCURRENCY must be a positive integer, got %q", get("AUDIT_CONCURRENCY", ""))
	}

	projectID := get("PROJECT_ID", "")

	cfg := &Config{
		LLM: LLMConfig{
			DefaultProvider: get("LLM_PROVIDER", "custom"),
			Timeout:         timeout,
			OpenAI: OpenAIConfig{
				APIKey:       get("OPENAI_API_KEY", ""),
				BaseURL:      strings.TrimRight(get("OPENAI_API_BASE", "https://api.openai.com/v1"), "/"),
				DefaultModel: get("OPENAI_DEFAULT_MODEL", "gpt-3.5-turbo"),
			},
			Gemini: GeminiConfig{
				ProjectID:    get("GEMINI_PROJECT_ID", projectID),
				Region:       get("GEMINI_REGION", "us-central1"),
				DefaultModel: get("GEMINI_DEFAULT_MODEL", "gemini-1.5-flash"),
			},
			HuggingFace: HuggingFaceConfig{
				APIKey:       get("HUGGINGFACE_API_KEY", ""),
				BaseURL:      get("HUGGINGFACE_API_URL", "https://api-inference.huggingface.co/models/"),
				DefaultModel: get("HUGGINGFACE_DEFAULT_MODEL", "HuggingFaceH4/zephyr-7b-beta"),
			},
			Custom: CustomConfig{
				Endpoint: get("CUSTOM_LLM_ENDPOINT", ""),
				APIKey:   get("CUSTOM_LLM_API_KEY", ""),
			},
		},
		Audit: AuditConfig{
			Concurrency:   concurrency,
			CriteriaPaths: splitList(get("CRITERIA_PATHS", "criteria/ncqa_audit_criteria.json,criteria/audit_criteria.json")),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(get("STORE_BACKEND", "firestore")),
			ProjectID: projectID,
			MySQL: MySQLConfig{
				Host:     get("DB_HOST", "localhost"),
				Port:     get("DB_PORT", "3306"),
				Username: get("DB_USERNAME", ""),
				Password: get("DB_PASSWORD", ""),
				Database: get("DB_DATABASE", "complianceaudit"),
			},
		},
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
