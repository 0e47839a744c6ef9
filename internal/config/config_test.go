package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kmarsh/promptarena/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Errorf("expected 1 provider, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name != "openrouter" {
		t.Errorf("expected provider name 'openrouter', got %q", cfg.Providers[0].Name)
	}
	if len(cfg.Targets) != 1 {
		t.Errorf("expected 1 target, got %d", len(cfg.Targets))
	}
	// Defaults fill in.
	if cfg.Defaults.Concurrency != 3 {
		t.Errorf("expected default concurrency 3, got %d", cfg.Defaults.Concurrency)
	}
	if cfg.Defaults.TimeoutSeconds != 30 {
		t.Errorf("expected default timeout 30, got %d", cfg.Defaults.TimeoutSeconds)
	}
	if cfg.Results.Dir != "results" {
		t.Errorf("expected default results dir, got %q", cfg.Results.Dir)
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Providers) != 5 {
		t.Errorf("expected 5 providers, got %d", len(cfg.Providers))
	}
	if cfg.Defaults.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.Defaults.Concurrency)
	}
	if cfg.Secrets.EnvFile != ".env" {
		t.Errorf("expected secrets env_file .env, got %q", cfg.Secrets.EnvFile)
	}
	for _, tg := range cfg.Targets {
		if tg.Provider == "anthropic" && tg.DisplayName == "" {
			t.Error("expected display_name on anthropic target")
		}
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load("nonexistent.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	_, err := config.Load("../../testdata/invalid.yaml")
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no providers", "targets:\n  - provider: a\n    model: m\n"},
		{"unknown kind", `
providers:
  - name: a
    kind: grpc
    base_url: http://x
    api_key_env: K
targets:
  - provider: a
    model: m
`},
		{"target without provider def", `
providers:
  - name: a
    kind: openai
    base_url: http://x
    api_key_env: K
targets:
  - provider: b
    model: m
`},
		{"no targets", `
providers:
  - name: a
    kind: openai
    base_url: http://x
    api_key_env: K
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			os.WriteFile(path, []byte(tt.content), 0o644)
			if _, err := config.Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
