package probe

import (
	"context"
	"time"

	"github.com/kmarsh/promptarena/internal/runner"
)

// PingPrompt is the minimal prompt sent when checking connectivity.
const PingPrompt = "Reply with the single word: pong."

const probeTimeout = 10 * time.Second

// Status is the connectivity outcome for one provider.
type Status struct {
	Provider  string
	Model     string
	OK        bool
	LatencyMs int64
	Err       string
}

// Run checks connectivity for each target (one per provider, selected by
// the caller) by fanning a tiny prompt out through the runner. Probes for
// different providers run concurrently; a failing provider never blocks
// the others.
func Run(ctx context.Context, send runner.SendFunc, targets []runner.Target) ([]Status, error) {
	limit := len(targets)
	if limit > 4 {
		limit = 4
	}

	r := runner.New(send, runner.WithTimeout(probeTimeout))
	results, _, err := r.Run(ctx, &runner.Request{
		Prompt:      PingPrompt,
		Targets:     targets,
		Concurrency: limit,
	})
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, 0, len(results))
	for _, res := range results {
		statuses = append(statuses, Status{
			Provider:  res.Target.Provider,
			Model:     res.Target.Model,
			OK:        res.OK(),
			LatencyMs: res.LatencyMs,
			Err:       res.Err,
		})
	}
	return statuses, nil
}

// FirstPerProvider picks one representative target per provider,
// preserving the order providers first appear in.
func FirstPerProvider(targets []runner.Target) []runner.Target {
	seen := map[string]bool{}
	var picked []runner.Target
	for _, t := range targets {
		if seen[t.Provider] {
			continue
		}
		seen[t.Provider] = true
		picked = append(picked, t)
	}
	return picked
}
