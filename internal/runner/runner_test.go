package runner_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kmarsh/promptarena/internal/runner"
)

func targets(n int) []runner.Target {
	ts := make([]runner.Target, n)
	for i := range ts {
		ts[i] = runner.Target{Provider: "stub", Model: fmt.Sprintf("model-%d", i)}
	}
	return ts
}

func okSend(ctx context.Context, t runner.Target, prompt string) (*runner.Response, error) {
	return &runner.Response{Text: "ok:" + t.Model, InputTokens: 10, OutputTokens: 20}, nil
}

func TestRunAllSucceed(t *testing.T) {
	r := runner.New(okSend)
	ts := targets(7)
	results, sum, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     ts,
		Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Target.Model != ts[i].Model {
			t.Errorf("result %d: got target %s, want %s", i, res.Target.Model, ts[i].Model)
		}
		if !res.OK() {
			t.Errorf("result %d: unexpected error %q", i, res.Err)
		}
		if res.TotalTokens != 30 {
			t.Errorf("result %d: got %d total tokens, want 30", i, res.TotalTokens)
		}
	}
	if sum.Succeeded != 7 || sum.Failed != 0 || sum.Total != 7 {
		t.Errorf("summary: got %+v", sum)
	}
	if sum.TotalTokens != 210 {
		t.Errorf("total tokens: got %d, want 210", sum.TotalTokens)
	}
}

func TestRunConcurrencyCap(t *testing.T) {
	var inFlight, peak atomic.Int32
	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &runner.Response{Text: "ok"}, nil
	}

	r := runner.New(send)
	_, _, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     targets(9),
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("observed %d requests in flight, limit was 2", p)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		if tg.Model == "model-1" {
			return nil, errors.New("boom")
		}
		return &runner.Response{Text: "ok"}, nil
	}

	r := runner.New(send)
	results, sum, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     targets(3),
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Err != "" || results[2].Err != "" {
		t.Errorf("expected targets 0 and 2 to succeed: %q, %q", results[0].Err, results[2].Err)
	}
	if results[1].Err != "boom" {
		t.Errorf("expected target 1 to fail with boom, got %q", results[1].Err)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 {
		t.Errorf("summary: got %+v", sum)
	}
}

func TestRunBatchOrdering(t *testing.T) {
	// Targets A, B with limit 2 form batch one; C must not start until
	// both have settled, even though B fails quickly.
	var mu sync.Mutex
	starts := map[string]time.Time{}
	ends := map[string]time.Time{}

	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		mu.Lock()
		starts[tg.Model] = time.Now()
		mu.Unlock()
		defer func() {
			mu.Lock()
			ends[tg.Model] = time.Now()
			mu.Unlock()
		}()
		switch tg.Model {
		case "B":
			time.Sleep(5 * time.Millisecond)
			return nil, errors.New("bad key")
		default:
			time.Sleep(20 * time.Millisecond)
			return &runner.Response{Text: "ok"}, nil
		}
	}

	ts := []runner.Target{
		{Provider: "p", Model: "A"},
		{Provider: "p", Model: "B"},
		{Provider: "p", Model: "C"},
	}
	r := runner.New(send)
	results, sum, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     ts,
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []struct {
		model string
		ok    bool
	}{{"A", true}, {"B", false}, {"C", true}}
	for i, w := range want {
		if results[i].Target.Model != w.model {
			t.Errorf("result %d: got %s, want %s", i, results[i].Target.Model, w.model)
		}
		if results[i].OK() != w.ok {
			t.Errorf("result %d (%s): ok=%v, want %v", i, w.model, results[i].OK(), w.ok)
		}
	}
	if sum.Failed != 1 {
		t.Errorf("failed: got %d, want 1", sum.Failed)
	}
	if starts["C"].Before(ends["A"]) || starts["C"].Before(ends["B"]) {
		t.Error("batch 2 started before batch 1 fully settled")
	}
}

func TestRunInvalidInput(t *testing.T) {
	var calls atomic.Int32
	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		calls.Add(1)
		return &runner.Response{Text: "ok"}, nil
	}
	r := runner.New(send)

	dup := runner.Target{Provider: "p", Model: "m"}
	tests := []struct {
		name string
		req  *runner.Request
	}{
		{"empty prompt", &runner.Request{Prompt: "", Targets: targets(2), Concurrency: 1}},
		{"whitespace prompt", &runner.Request{Prompt: "  \n\t ", Targets: targets(2), Concurrency: 1}},
		{"no targets", &runner.Request{Prompt: "hi", Concurrency: 1}},
		{"zero concurrency", &runner.Request{Prompt: "hi", Targets: targets(2), Concurrency: 0}},
		{"negative concurrency", &runner.Request{Prompt: "hi", Targets: targets(2), Concurrency: -3}},
		{"duplicate targets", &runner.Request{Prompt: "hi", Targets: []runner.Target{dup, dup}, Concurrency: 1}},
		{"nil request", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.Run(context.Background(), tt.req)
			if !errors.Is(err, runner.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero requests issued, got %d", calls.Load())
	}
}

func TestRunClampsConcurrency(t *testing.T) {
	r := runner.New(okSend)
	results, _, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     targets(2),
		Concurrency: 50,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestRunTimeout(t *testing.T) {
	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return &runner.Response{Text: "too late"}, nil
		}
	}
	r := runner.New(send, runner.WithTimeout(15*time.Millisecond))
	results, sum, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     targets(1),
		Concurrency: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Err != "timeout" {
		t.Errorf("got error %q, want timeout", results[0].Err)
	}
	if sum.Failed != 1 {
		t.Errorf("failed: got %d, want 1", sum.Failed)
	}
}

func TestRunProgressSnapshots(t *testing.T) {
	var snapshots []runner.Summary
	r := runner.New(okSend, runner.WithProgress(func(s runner.Summary) {
		snapshots = append(snapshots, s)
	}))
	_, _, err := r.Run(context.Background(), &runner.Request{
		Prompt:      "hello",
		Targets:     targets(5),
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 progress snapshots, got %d", len(snapshots))
	}
	wantTotals := []int{2, 4, 5}
	for i, s := range snapshots {
		if s.Total != wantTotals[i] {
			t.Errorf("snapshot %d: total %d, want %d", i, s.Total, wantTotals[i])
		}
	}
}

func TestRunCancelDrainsCurrentBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(okSend, runner.WithProgress(func(runner.Summary) {
		cancel() // after the first batch settles
	}))
	results, sum, err := r.Run(ctx, &runner.Request{
		Prompt:      "hello",
		Targets:     targets(6),
		Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if !results[0].OK() || !results[1].OK() {
		t.Error("first batch should have completed before cancellation")
	}
	for i := 2; i < 6; i++ {
		if results[i].Err != "canceled" {
			t.Errorf("result %d: got %q, want canceled", i, results[i].Err)
		}
	}
	if sum.Succeeded != 2 || sum.Failed != 4 {
		t.Errorf("summary: got %+v", sum)
	}
}

func TestRunIdempotent(t *testing.T) {
	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		if strings.HasSuffix(tg.Model, "2") {
			return nil, errors.New("deterministic failure")
		}
		return &runner.Response{Text: "echo:" + tg.Model, InputTokens: 5, OutputTokens: 7}, nil
	}
	req := &runner.Request{Prompt: "hello", Targets: targets(4), Concurrency: 2}

	r := runner.New(send)
	first, sum1, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, sum2, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for i := range first {
		if first[i].Response != second[i].Response || first[i].Err != second[i].Err {
			t.Errorf("result %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
	if sum1.Succeeded != sum2.Succeeded || sum1.Failed != sum2.Failed || sum1.TotalTokens != sum2.TotalTokens {
		t.Errorf("summaries differ: %+v vs %+v", sum1, sum2)
	}
}

func TestRunCostFromTargetPricing(t *testing.T) {
	send := func(ctx context.Context, tg runner.Target, prompt string) (*runner.Response, error) {
		return &runner.Response{Text: "ok", InputTokens: 1_000_000, OutputTokens: 500_000}, nil
	}
	r := runner.New(send)
	results, sum, err := r.Run(context.Background(), &runner.Request{
		Prompt: "hello",
		Targets: []runner.Target{
			{Provider: "p", Model: "m", InputCostPer1M: 3.0, OutputCostPer1M: 15.0},
		},
		Concurrency: 1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := 3.0 + 7.5
	if diff := results[0].CostUSD - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost: got %f, want %f", results[0].CostUSD, want)
	}
	if sum.TotalCostUSD != results[0].CostUSD {
		t.Errorf("summary cost: got %f, want %f", sum.TotalCostUSD, results[0].CostUSD)
	}
}

func TestSummarize(t *testing.T) {
	results := []runner.Result{
		{Response: "a", LatencyMs: 100, TotalTokens: 30, CostUSD: 0.01},
		{Err: "boom", LatencyMs: 50},
		{Err: "canceled"},
	}
	s := runner.Summarize(results)
	if s.Total != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("counts: got %+v", s)
	}
	if s.AvgLatencyMs != 75 {
		t.Errorf("avg latency: got %f, want 75 (canceled target excluded)", s.AvgLatencyMs)
	}
	if s.TotalTokens != 30 || s.TotalCostUSD != 0.01 {
		t.Errorf("aggregates: got %+v", s)
	}
}
