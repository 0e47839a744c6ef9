package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Providers []Provider `yaml:"providers"`
	Targets   []Target   `yaml:"targets"`
	Defaults  Defaults   `yaml:"defaults"`
	Catalog   string     `yaml:"catalog"`
	Secrets   Secrets    `yaml:"secrets"`
	Results   Results    `yaml:"results"`
}

// Provider describes one upstream LLM API. Kind selects the wire format:
// "openai" covers every OpenAI-compatible vendor (OpenAI, OpenRouter,
// DeepSeek, xAI, NVIDIA NIM), "anthropic" the messages API.
type Provider struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Target is one provider/model pair prompts get fanned out to.
type Target struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	DisplayName string `yaml:"display_name"`
}

type Defaults struct {
	Concurrency    int `yaml:"concurrency"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxTokens      int `yaml:"max_tokens"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no providers defined")
	}
	byName := make(map[string]bool, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if byName[p.Name] {
			return fmt.Errorf("provider %q: defined twice", p.Name)
		}
		byName[p.Name] = true
		switch p.Kind {
		case "openai", "anthropic":
		case "":
			return fmt.Errorf("provider %q: kind is required", p.Name)
		default:
			return fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q: base_url is required", p.Name)
		}
		if p.APIKeyEnv == "" {
			return fmt.Errorf("provider %q: api_key_env is required", p.Name)
		}
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets defined")
	}
	for i, t := range cfg.Targets {
		if t.Provider == "" || t.Model == "" {
			return fmt.Errorf("target %d: provider and model are required", i)
		}
		if !byName[t.Provider] {
			return fmt.Errorf("target %d: provider %q not defined", i, t.Provider)
		}
	}

	if cfg.Defaults.Concurrency == 0 {
		cfg.Defaults.Concurrency = 3
	}
	if cfg.Defaults.Concurrency < 1 {
		return fmt.Errorf("defaults.concurrency must be at least 1")
	}
	if cfg.Defaults.TimeoutSeconds == 0 {
		cfg.Defaults.TimeoutSeconds = 30
	}
	if cfg.Defaults.TimeoutSeconds < 1 {
		return fmt.Errorf("defaults.timeout_seconds must be at least 1")
	}
	if cfg.Defaults.MaxTokens == 0 {
		cfg.Defaults.MaxTokens = 1024
	}
	if cfg.Catalog == "" {
		cfg.Catalog = "models.yaml"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return nil
}
