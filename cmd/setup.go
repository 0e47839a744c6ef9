package cmd

import (
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/kmarsh/promptarena/internal/catalog"
	"github.com/kmarsh/promptarena/internal/config"
	"github.com/kmarsh/promptarena/internal/provider"
	"github.com/kmarsh/promptarena/internal/runner"
)

// loadEnvironment loads the config, its secrets env file, and the model
// catalog. A missing catalog is not fatal; pricing just reports zero.
func loadEnvironment() (*config.Config, *catalog.Catalog, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := config.LoadSecrets(cfg); err != nil {
		log.Printf("warning: loading secrets: %v", err)
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Printf("warning: loading catalog %s: %v", cfg.Catalog, err)
		cat = &catalog.Catalog{}
	}
	return cfg, cat, nil
}

// buildRegistry constructs one sender per configured provider. Providers
// whose key is not resolvable stay unregistered so their targets fail
// fast with a clear error instead of a doomed HTTP call.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	reg := provider.NewRegistry()
	for _, p := range cfg.Providers {
		key := p.APIKey()
		if key == "" {
			log.Printf("warning: provider %s: %s not set, skipping", p.Name, p.APIKeyEnv)
			continue
		}
		switch p.Kind {
		case "anthropic":
			reg.Register(p.Name, provider.NewAnthropicClient(p.BaseURL, key, cfg.Defaults.MaxTokens))
		default:
			reg.Register(p.Name, provider.NewOpenAIClient(p.BaseURL, key,
				provider.WithMaxTokens(cfg.Defaults.MaxTokens),
				provider.WithLogger(logger),
			))
		}
	}
	return reg
}

// buildTargets converts config targets into runner targets, enriched
// with catalog pricing and display names.
func buildTargets(cfg *config.Config, cat *catalog.Catalog) []runner.Target {
	targets := make([]runner.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		rt := runner.Target{
			Provider:    t.Provider,
			Model:       t.Model,
			DisplayName: t.DisplayName,
		}
		if info, ok := cat.Lookup(t.Provider, t.Model); ok {
			rt.InputCostPer1M = info.InputPer1M
			rt.OutputCostPer1M = info.OutputPer1M
			if rt.DisplayName == "" {
				rt.DisplayName = info.DisplayName
			}
		}
		targets = append(targets, rt)
	}
	return targets
}

// filterTargets keeps targets matching any selector. A selector matches
// a provider name, a bare model, or the full provider/model key.
func filterTargets(targets []runner.Target, selectors []string) []runner.Target {
	if len(selectors) == 0 {
		return targets
	}
	var filtered []runner.Target
	for _, t := range targets {
		for _, sel := range selectors {
			if sel == t.Provider || sel == t.Model || sel == t.Key() {
				filtered = append(filtered, t)
				break
			}
		}
	}
	return filtered
}

// findTarget resolves a provider/model selector against the configured
// targets.
func findTarget(targets []runner.Target, selector string) (runner.Target, bool) {
	for _, t := range targets {
		if selector == t.Key() || (!strings.Contains(selector, "/") && selector == t.Model) {
			return t, true
		}
	}
	return runner.Target{}, false
}

func timeoutFromFlags(cfg *config.Config, flagSeconds int) time.Duration {
	secs := cfg.Defaults.TimeoutSeconds
	if flagSeconds > 0 {
		secs = flagSeconds
	}
	return time.Duration(secs) * time.Second
}
