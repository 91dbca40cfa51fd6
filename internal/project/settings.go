package project

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Provider selects the OpenAI-compatible endpoint used for generation.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderGroq       Provider = "groq"
	ProviderOpenRouter Provider = "openrouter"
)

// providerKeyEnv maps each provider to the env var holding its fallback key.
var providerKeyEnv = map[Provider]string{
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderGroq:       "GROQ_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Settings are the user's LLM and UI preferences. They are passed
// explicitly to every generate call.
type Settings struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
	APIKey   string   `json:"api_key,omitempty"`
	Theme    Theme    `json:"theme"`
}

// DefaultSettings returns openai / gpt-4o with the system theme.
func DefaultSettings() Settings {
	return Settings{Provider: ProviderOpenAI, Model: "gpt-4o", Theme: ThemeSystem}
}

// Normalize fills empty fields with defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.Provider == "" {
		s.Provider = d.Provider
	}
	if strings.TrimSpace(s.Model) == "" {
		s.Model = d.Model
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	return s
}

// Validate checks provider and theme against their enums.
func (s Settings) Validate() error {
	if _, ok := providerKeyEnv[s.Provider]; !ok {
		return fmt.Errorf("%w: provider %q must be one of: openai, groq, openrouter", ErrInvalidSettings, s.Provider)
	}
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidSettings)
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return fmt.Errorf("%w: theme %q must be one of: light, dark, system", ErrInvalidSettings, s.Theme)
	}
	return nil
}

// ResolveAPIKey returns the configured key, or the provider's env var.
func (s Settings) ResolveAPIKey() string {
	if s.APIKey != "" {
		return s.APIKey
	}
	return os.Getenv(providerKeyEnv[s.Provider])
}

// Redacted hides the API key for display, keeping the last four characters.
func (s Settings) Redacted() Settings {
	if n := len(s.APIKey); n > 0 {
		if n <= 4 {
			s.APIKey = "****"
		} else {
			s.APIKey = "****" + s.APIKey[n-4:]
		}
	}
	return s
}
