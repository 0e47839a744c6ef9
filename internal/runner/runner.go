package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Target is one provider/model pair a prompt gets sent to. Pricing is
// per million tokens; zero pricing means cost is reported as zero.
type Target struct {
	Provider        string
	Model           string
	DisplayName     string
	InputCostPer1M  float64
	OutputCostPer1M float64
}

// Key uniquely identifies a target within a run.
func (t Target) Key() string { return t.Provider + "/" + t.Model }

// Name returns the display name, falling back to the key.
func (t Target) Name() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Key()
}

// Response is what a SendFunc returns for a single successful request.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// SendFunc issues the actual provider call for one target. The concrete
// HTTP adapters live in internal/provider; tests inject stubs.
type SendFunc func(ctx context.Context, target Target, prompt string) (*Response, error)

// Request describes one fan-out: a prompt, the targets to send it to,
// and the maximum number of requests in flight at once.
type Request struct {
	Prompt      string
	Targets     []Target
	Concurrency int
}

// Result is the settled outcome for one target. Exactly one of Response
// or Err is populated.
type Result struct {
	Target       Target
	Response     string
	Err          string
	LatencyMs    int64
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// OK reports whether the target's request succeeded.
func (r Result) OK() bool { return r.Err == "" }

// Summary aggregates the settled results of a run (or a prefix of one,
// for progress snapshots).
type Summary struct {
	Total        int
	Succeeded    int
	Failed       int
	TotalCostUSD float64
	TotalTokens  int
	AvgLatencyMs float64
}

// ErrInvalidInput rejects a malformed Request before any request is issued.
var ErrInvalidInput = errors.New("invalid input")

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// Runner fans a prompt out to many targets in sequential batches of at
// most Request.Concurrency requests. One target failing never aborts the
// others; every target settles with exactly one Result.
type Runner struct {
	send       SendFunc
	timeout    time.Duration
	onProgress func(Summary)
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithProgress registers a callback invoked with a running Summary after
// each batch settles.
func WithProgress(fn func(Summary)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

func New(send SendFunc, opts ...Option) *Runner {
	r := &Runner{send: send, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one fan-out. Results are ordered by the original target
// order regardless of completion order. Canceling ctx stops new batches
// from starting; requests already in flight drain, and targets that never
// started settle with Err "canceled".
func (r *Runner) Run(ctx context.Context, req *Request) ([]Result, Summary, error) {
	if err := validate(req); err != nil {
		return nil, Summary{}, err
	}

	limit := req.Concurrency
	if limit > len(req.Targets) {
		limit = len(req.Targets)
	}

	results := make([]Result, len(req.Targets))
	for start := 0; start < len(req.Targets); start += limit {
		if ctx.Err() != nil {
			for i := start; i < len(req.Targets); i++ {
				results[i] = Result{Target: req.Targets[i], Err: "canceled"}
			}
			break
		}

		end := start + limit
		if end > len(req.Targets) {
			end = len(req.Targets)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = r.callOne(ctx, req.Targets[idx], req.Prompt)
			}(i)
		}
		wg.Wait()

		if r.onProgress != nil {
			r.onProgress(Summarize(results[:end]))
		}
	}

	return results, Summarize(results), nil
}

// callOne races one request against the per-request timeout and captures
// the outcome, success or failure, as a Result.
func (r *Runner) callOne(ctx context.Context, t Target, prompt string) Result {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.send(reqCtx, t, prompt)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			msg = "timeout"
		} else if errors.Is(err, context.Canceled) {
			msg = "canceled"
		}
		return Result{Target: t, Err: msg, LatencyMs: latency}
	}

	total := resp.InputTokens + resp.OutputTokens
	cost := float64(resp.InputTokens)/1e6*t.InputCostPer1M +
		float64(resp.OutputTokens)/1e6*t.OutputCostPer1M
	return Result{
		Target:       t,
		Response:     resp.Text,
		LatencyMs:    latency,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  total,
		CostUSD:      cost,
	}
}

func validate(req *Request) error {
	if req == nil {
		return fmt.Errorf("nil request: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("empty prompt: %w", ErrInvalidInput)
	}
	if len(req.Targets) == 0 {
		return fmt.Errorf("no targets: %w", ErrInvalidInput)
	}
	if req.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d: %w", req.Concurrency, ErrInvalidInput)
	}
	seen := make(map[string]bool, len(req.Targets))
	for _, t := range req.Targets {
		if seen[t.Key()] {
			return fmt.Errorf("duplicate target %s: %w", t.Key(), ErrInvalidInput)
		}
		seen[t.Key()] = true
	}
	return nil
}

// Summarize computes the aggregate over a set of settled results. Targets
// canceled before their request started carry no latency measurement and
// are excluded from the latency average.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	var latencySum int64
	var latencyN int
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.TotalCostUSD += r.CostUSD
		s.TotalTokens += r.TotalTokens
		if r.Err == "canceled" && r.LatencyMs == 0 {
			continue
		}
		latencySum += r.LatencyMs
		latencyN++
	}
	if latencyN > 0 {
		s.AvgLatencyMs = float64(latencySum) / float64(latencyN)
	}
	return s
}
