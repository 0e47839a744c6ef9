package compare

import (
	"context"
	"fmt"

	"github.com/kmarsh/promptarena/internal/runner"
)

// Side aggregates the trials for one of the two compared targets.
type Side struct {
	Target        runner.Target
	Trials        int
	Succeeded     int
	Failed        int
	MeanLatencyMs float64
	MeanTokens    float64
	TotalCostUSD  float64
}

// Comparison is the outcome of an A/B run. It reports both sides'
// metrics without declaring a winner; reading the numbers is the
// caller's job.
type Comparison struct {
	Prompt string
	Trials int
	A      Side
	B      Side
}

// Run sends the same prompt to targets a and b, `trials` times each.
// Each trial is one two-target fan-out, so a trial's pair of requests
// runs concurrently while trials themselves are sequential.
func Run(ctx context.Context, send runner.SendFunc, a, b runner.Target, prompt string, trials int, opts ...runner.Option) (*Comparison, error) {
	if trials < 1 {
		return nil, fmt.Errorf("trials must be at least 1, got %d: %w", trials, runner.ErrInvalidInput)
	}
	if a.Key() == b.Key() {
		return nil, fmt.Errorf("cannot compare target %s against itself: %w", a.Key(), runner.ErrInvalidInput)
	}

	r := runner.New(send, opts...)
	cmp := &Comparison{Prompt: prompt, Trials: trials, A: Side{Target: a}, B: Side{Target: b}}

	var latA, latB, tokA, tokB float64
	for i := 0; i < trials; i++ {
		results, _, err := r.Run(ctx, &runner.Request{
			Prompt:      prompt,
			Targets:     []runner.Target{a, b},
			Concurrency: 2,
		})
		if err != nil {
			return nil, err
		}
		accumulate(&cmp.A, results[0], &latA, &tokA)
		accumulate(&cmp.B, results[1], &latB, &tokB)
	}

	finalize(&cmp.A, latA, tokA)
	finalize(&cmp.B, latB, tokB)
	return cmp, nil
}

func accumulate(s *Side, res runner.Result, latSum, tokSum *float64) {
	s.Trials++
	if res.OK() {
		s.Succeeded++
	} else {
		s.Failed++
	}
	*latSum += float64(res.LatencyMs)
	*tokSum += float64(res.TotalTokens)
	s.TotalCostUSD += res.CostUSD
}

func finalize(s *Side, latSum, tokSum float64) {
	if s.Trials == 0 {
		return
	}
	s.MeanLatencyMs = latSum / float64(s.Trials)
	s.MeanTokens = tokSum / float64(s.Trials)
}
