package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelInfo is the static metadata for one catalog entry. Prices are USD
// per million tokens.
type ModelInfo struct {
	DisplayName   string  `yaml:"display_name"`
	ContextWindow int     `yaml:"context_window"`
	InputPer1M    float64 `yaml:"input_per_1m"`
	OutputPer1M   float64 `yaml:"output_per_1m"`
}

// Catalog maps provider -> model -> metadata.
type Catalog struct {
	Providers map[string]map[string]ModelInfo
}

// Entry is a flattened catalog row for listing.
type Entry struct {
	Provider string
	Model    string
	Info     ModelInfo
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	var providers map[string]map[string]ModelInfo
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	return &Catalog{Providers: providers}, nil
}

// Lookup returns the catalog entry for a provider/model pair.
func (c *Catalog) Lookup(provider, model string) (ModelInfo, bool) {
	if c == nil || c.Providers == nil {
		return ModelInfo{}, false
	}
	models, ok := c.Providers[provider]
	if !ok {
		return ModelInfo{}, false
	}
	info, ok := models[model]
	return info, ok
}

// Cost calculates total cost for a request. Unknown models cost zero.
func (c *Catalog) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	info, ok := c.Lookup(provider, model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*info.InputPer1M + (float64(outputTokens)/1e6)*info.OutputPer1M
}

// Entries returns all catalog rows sorted by provider then model.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	var entries []Entry
	for provider, models := range c.Providers {
		for model, info := range models {
			entries = append(entries, Entry{Provider: provider, Model: model, Info: info})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].Model < entries[j].Model
	})
	return entries
}
