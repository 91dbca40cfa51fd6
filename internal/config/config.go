// Package config loads the ESP32 copilot process configuration.
//
// Configuration is a small YAML file. Every key is optional; missing keys
// fall back to defaults, and a missing file is the same as an empty one.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/esp32-copilot/internal/project"
)

// EnvPath names the env var pointing at the config file.
const EnvPath = "ESP32_COPILOT_CONFIG"

// Config is the process-level configuration.
type Config struct {
	// DataDir holds the SQLite database. Defaults to ~/.esp32-copilot.
	DataDir string `yaml:"data_dir"`
	// HTTPAddr is the listen address of the REST API.
	HTTPAddr string `yaml:"http_addr"`
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`
	// LLMTimeout bounds a single generation call.
	LLMTimeout      time.Duration    `yaml:"llm_timeout"`
	DefaultProvider project.Provider `yaml:"default_provider"`
	DefaultModel    string           `yaml:"default_model"`
	// CatalogFile replaces the embedded hardware catalog when set.
	CatalogFile    string `yaml:"catalog_file"`
	TargetHardware string `yaml:"target_hardware"`
}

// Default returns a Config with every default applied.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, ".esp32-copilot")
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8001"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 90 * time.Second
	}
	if c.DefaultProvider == "" {
		c.DefaultProvider = project.ProviderOpenAI
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "gpt-4o"
	}
	if c.TargetHardware == "" {
		c.TargetHardware = project.DefaultTargetHardware
	}
}

// Load reads a configuration YAML file and returns a Config with defaults
// applied. An empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.applyDefaults()

	if err := (project.Settings{Provider: cfg.DefaultProvider, Model: cfg.DefaultModel, Theme: project.ThemeSystem}).Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by ESP32_COPILOT_CONFIG.
func LoadFromEnv() (Config, error) {
	return Load(os.Getenv(EnvPath))
}

// DefaultSettings returns the user settings seeded from this config.
func (c Config) DefaultSettings() project.Settings {
	return project.Settings{
		Provider: c.DefaultProvider,
		Model:    c.DefaultModel,
		Theme:    project.ThemeSystem,
	}
}

// AllowsOrigin reports whether a browser origin passes the CORS list.
func (c Config) AllowsOrigin(origin string) bool {
	for _, o := range c.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
