// Package translate drives machine translation of locale strings through
// HTTP-based AI providers: OpenAI, Google AI (Gemini), Anthropic, Groq,
// Ollama and any OpenAI-compatible endpoint.
//
// Every request carries exactly one string. A pool of workers, each with
// its own HTTP client, translates the queued units of one language pass and
// applies each success to a shared Session under a single lock.
package translate

import (
	"fmt"
	"sort"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGoogle       = "google"
	ProviderAnthropic    = "anthropic"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// DefaultProvider is used when no provider is configured.
const DefaultProvider = ProviderOpenAI

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for an AI translation service.
type Provider struct {
	// ID is the provider identifier (openai, google, groq, etc.).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
	// EnvKeys lists environment variables that may hold the API key.
	EnvKeys []string
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
			EnvKeys: []string{"OPENAI_API_KEY"},
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash",
			Timeout: 120 * time.Second,
			EnvKeys: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		},
		ProviderAnthropic: {
			ID:      ProviderAnthropic,
			Name:    "Anthropic",
			BaseURL: "https://api.anthropic.com/v1",
			Model:   "claude-3-5-haiku-latest",
			Timeout: 120 * time.Second,
			EnvKeys: []string{"ANTHROPIC_API_KEY"},
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
			EnvKeys: []string{"GROQ_API_KEY"},
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.1",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
			EnvKeys: []string{"OPENAI_API_KEY"},
		},
	}
}

// ProviderIDs returns the known provider IDs, sorted.
func ProviderIDs() []string {
	var ids []string
	for id := range DefaultProviders() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LookupProvider returns the default definition for id.
func LookupProvider(id string) (Provider, bool) {
	p, ok := DefaultProviders()[id]
	return p, ok
}

// NeedsAPIKey reports whether requests must be authenticated.
func (p Provider) NeedsAPIKey() bool {
	return p.ID != ProviderOllama
}

// Validate checks that the provider can be called.
func (p Provider) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("provider not set")
	}
	if p.BaseURL == "" {
		return fmt.Errorf("provider %q requires a base URL", p.ID)
	}
	if p.Model == "" {
		return fmt.Errorf("provider %q requires a model", p.ID)
	}
	if p.NeedsAPIKey() && p.APIKey == "" {
		return fmt.Errorf("provider %q requires an API key", p.ID)
	}
	return nil
}

func (p Provider) format() wireFormat {
	switch p.ID {
	case ProviderGoogle:
		return geminiGenerate{}
	case ProviderAnthropic:
		return anthropicMessages{}
	}
	return openAIChat{}
}
