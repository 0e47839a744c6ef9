package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kmarsh/promptarena/internal/runner"
)

// Usage reports token counts for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is a provider-agnostic chat completion result.
type Completion struct {
	Text  string
	Usage Usage
}

// Sender issues one chat completion against a specific provider. One
// implementation exists per wire format; the Registry selects by
// provider id.
type Sender interface {
	Complete(ctx context.Context, model, prompt string) (*Completion, error)
}

// Registry maps provider ids (openrouter, deepseek, anthropic, ...) to
// their Sender implementations.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

func (r *Registry) Register(id string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[id] = s
}

func (r *Registry) Lookup(id string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[id]
	return s, ok
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.senders))
	for id := range r.senders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SendFunc adapts the registry to the runner's injected request capability.
func (r *Registry) SendFunc() runner.SendFunc {
	return func(ctx context.Context, t runner.Target, prompt string) (*runner.Response, error) {
		s, ok := r.Lookup(t.Provider)
		if !ok {
			return nil, fmt.Errorf("provider %q not configured (missing API key?)", t.Provider)
		}
		c, err := s.Complete(ctx, t.Model, prompt)
		if err != nil {
			return nil, err
		}
		return &runner.Response{
			Text:         c.Text,
			InputTokens:  c.Usage.InputTokens,
			OutputTokens: c.Usage.OutputTokens,
		}, nil
	}
}
